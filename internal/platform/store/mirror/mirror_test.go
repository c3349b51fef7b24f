package mirror_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/store/mirror"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store/storetest"
)

func TestMirrorDriver(t *testing.T) {
	storetest.RunDriverTests(t, store.Config{Driver: "mirror"})
}

func readExport(t *testing.T, dir, name string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "mirror", name))
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestMirrorDriver_ExportsAfterWrites(t *testing.T) {
	dir := t.TempDir()
	d := storetest.Open(t, &store.Config{Driver: "mirror", DataDir: dir})
	ctx := context.Background()

	assert.Empty(t, readExport(t, dir, "share_records.json"))

	rec := storetest.NewRecord("alice")
	rec.MaxDownloads = 1
	require.NoError(t, d.Shares().Create(ctx, rec))

	exported := readExport(t, dir, "share_records.json")
	require.Len(t, exported, 1)
	assert.Equal(t, rec.ID, exported[0]["id"])
	assert.NotContains(t, exported[0], "token")

	ok, err := d.Shares().ClaimDownload(ctx, rec.ID, storetest.Epoch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, readExport(t, dir, "share_records.json")[0]["download_count"])

	require.NoError(t, d.Shares().SetActive(ctx, rec.ID, false))
	assert.Equal(t, false, readExport(t, dir, "share_records.json")[0]["is_active"])

	require.NoError(t, d.Shares().Delete(ctx, rec.ID))
	assert.Empty(t, readExport(t, dir, "share_records.json"))
}

func TestMirrorDriver_SecretRedaction(t *testing.T) {
	for _, include := range []bool{false, true} {
		dir := t.TempDir()
		d := storetest.Open(t, &store.Config{
			Driver:  "mirror",
			DataDir: dir,
			Mirror:  store.MirrorConfig{IncludeSecrets: include},
		})
		ctx := context.Background()

		rec := storetest.NewRecord("alice")
		require.NoError(t, d.Shares().Create(ctx, rec))
		require.NoError(t, d.Parties().Create(ctx, &identity.User{
			Username: "alice", PasswordHash: "$argon2id$secret", Role: identity.RoleUser,
		}))

		raw, err := os.ReadFile(filepath.Join(dir, "mirror", "share_records.json"))
		require.NoError(t, err)
		assert.Equal(t, include, strings.Contains(string(raw), rec.Token), "include_secrets=%v", include)

		users, err := os.ReadFile(filepath.Join(dir, "mirror", "users.json"))
		require.NoError(t, err)
		assert.Contains(t, string(users), `"alice"`)
		assert.NotContains(t, string(users), "argon2id")
	}
}
