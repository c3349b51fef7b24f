package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downloadConfig struct {
	Inline        bool          `mapstructure:"inline"`
	StreamTimeout time.Duration `mapstructure:"stream_timeout"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	Profiles      []string      `mapstructure:"profiles"`
}

func (c *downloadConfig) ApplyDefaults() {
	if c.StreamTimeout == 0 {
		c.StreamTimeout = time.Minute
	}
}

func TestDecode(t *testing.T) {
	var c downloadConfig
	err := Decode(map[string]any{
		"inline":         true,
		"stream_timeout": "30s",
		"max_bytes":      int64(1024),
		"profiles":       "download,auth",
	}, &c)
	require.NoError(t, err)

	assert.True(t, c.Inline)
	assert.Equal(t, 30*time.Second, c.StreamTimeout)
	assert.Equal(t, int64(1024), c.MaxBytes)
	assert.Equal(t, []string{"download", "auth"}, c.Profiles)
}

func TestDecode_AppliesDefaults(t *testing.T) {
	var c downloadConfig
	require.NoError(t, Decode(nil, &c))
	assert.Equal(t, time.Minute, c.StreamTimeout)
}

func TestDecode_TypeMismatch(t *testing.T) {
	var c downloadConfig
	err := Decode(map[string]any{"inline": []int{1}}, &c)
	assert.Error(t, err)
}

func TestDecodeWithUnused_SortedKeys(t *testing.T) {
	var c downloadConfig
	unused, err := DecodeWithUnused(map[string]any{
		"inline": false,
		"zeta":   1,
		"alpha":  2,
	}, &c)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, unused)
	assert.Equal(t, time.Minute, c.StreamTimeout)
}

func TestMustDecodeStrict(t *testing.T) {
	var c downloadConfig
	assert.NoError(t, MustDecodeStrict(map[string]any{"inline": true}, &c))
	assert.Error(t, MustDecodeStrict(map[string]any{"typo_key": true}, &c))
}
