package storefront

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageImplementations(t *testing.T) {
	fileStorage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for name, storage := range map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   fileStorage,
	} {
		t.Run(name, func(t *testing.T) {
			_, ok, err := storage.Load("cart")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, storage.Save("cart", []byte(`[1]`)))
			data, ok, err := storage.Load("cart")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `[1]`, string(data))

			require.NoError(t, storage.Delete("cart"))
			require.NoError(t, storage.Delete("cart"))
			_, ok, err = storage.Load("cart")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, storage.Save("../escape", []byte(`{}`)), ErrInvalidKey)
			_, _, err = storage.Load("")
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestFileStorageSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileStorage(dir)
	require.NoError(t, err)
	require.NoError(t, first.Save("pending-checkout", []byte(`{"tempOrderNumber":"TMP-1"}`)))

	_, err = os.Stat(filepath.Join(dir, "pending-checkout.json"))
	require.NoError(t, err)

	second, err := NewFileStorage(dir)
	require.NoError(t, err)
	data, ok, err := second.Load("pending-checkout")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), "TMP-1")
}
