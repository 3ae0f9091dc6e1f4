package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyProvider_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	provider := NewFileKeyProvider(dir)

	assert.False(t, provider.KeyExists())

	key, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, keySize)

	require.NoError(t, provider.StoreKey(key))
	assert.True(t, provider.KeyExists())

	got, err := provider.GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileKeyProvider_RejectsWrongSize(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())
	err := provider.StoreKey([]byte("short"))
	assert.Error(t, err)
}

func TestEnsureKey_Stable(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())

	first, err := EnsureKey(provider)
	require.NoError(t, err)

	// Second call returns the stored key, not a fresh one.
	second, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
