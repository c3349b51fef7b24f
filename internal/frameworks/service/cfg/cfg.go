// Package cfg decodes raw service and driver config tables into typed structs.
package cfg

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by config structs that fill in their own defaults.
type Setter interface {
	ApplyDefaults()
}

func newDecoder(c any, md *mapstructure.Metadata) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: md,
		Result:   c,
		TagName:  "mapstructure",
		// "30s" style strings for time.Duration fields, "a,b" for []string.
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
}

// Decode decodes input into the struct pointed to by c, then calls
// ApplyDefaults when c is a Setter.
func Decode(input map[string]any, c any) error {
	_, err := decode(input, c, false)
	return err
}

// DecodeWithUnused is Decode that also reports keys no field consumed, sorted.
func DecodeWithUnused(input map[string]any, c any) ([]string, error) {
	return decode(input, c, true)
}

// MustDecodeStrict fails when any input key is unused.
func MustDecodeStrict(input map[string]any, c any) error {
	unused, err := DecodeWithUnused(input, c)
	if err != nil {
		return err
	}
	if len(unused) > 0 {
		return fmt.Errorf("unused config keys: %v", unused)
	}
	return nil
}

func decode(input map[string]any, c any, trackUnused bool) ([]string, error) {
	var md *mapstructure.Metadata
	if trackUnused {
		md = &mapstructure.Metadata{}
	}
	decoder, err := newDecoder(c, md)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, err
	}
	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}
	if md == nil {
		return nil, nil
	}
	unused := md.Unused
	sort.Strings(unused)
	return unused, nil
}
