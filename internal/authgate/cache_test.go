// File: internal/authgate/cache_test.go
package authgate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCache_RoundTrip(t *testing.T) {
	cache, err := NewSessionCache(t.TempDir(), nil)
	require.NoError(t, err)

	state := []byte(`{"cookies":[{"name":"sid"}]}`)
	require.NoError(t, cache.Save(state, "https://app.example.com", "test-ua", time.Hour))

	got, meta, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, state, got)
	assert.Equal(t, "https://app.example.com", meta.URL)
	assert.Equal(t, "test-ua", meta.UserAgent)
	assert.True(t, meta.Expiry.After(meta.Timestamp))
	assert.True(t, cache.Valid(meta))
}

func TestSessionCache_MissingIsNotAnError(t *testing.T) {
	cache, err := NewSessionCache(t.TempDir(), nil)
	require.NoError(t, err)

	_, _, ok := cache.Load()
	assert.False(t, ok)
}

func TestSessionCache_CorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewSessionCache(dir, nil)
	require.NoError(t, err)

	require.NoError(t, cache.Save([]byte("state"), "u", "ua", time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metaFileName), []byte("{broken"), 0o600))

	_, _, ok := cache.Load()
	assert.False(t, ok, "corrupt metadata means logging in again, not crashing")
}

func TestSessionCache_Expiry(t *testing.T) {
	current := time.Now()
	cache, err := NewSessionCache(t.TempDir(), func() time.Time { return current })
	require.NoError(t, err)

	require.NoError(t, cache.Save([]byte("state"), "u", "ua", time.Minute))
	_, meta, ok := cache.Load()
	require.True(t, ok)

	assert.True(t, cache.Valid(meta))
	current = current.Add(2 * time.Minute)
	assert.False(t, cache.Valid(meta))
}

func TestSessionCache_Clear(t *testing.T) {
	cache, err := NewSessionCache(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, cache.Save([]byte("state"), "u", "ua", time.Hour))
	require.NoError(t, cache.Clear())
	require.NoError(t, cache.Clear(), "clearing an empty cache is fine")

	_, _, ok := cache.Load()
	assert.False(t, ok)
}

func TestSessionCache_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewSessionCache(dir, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Save([]byte("state"), "u", "ua", time.Hour))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
	assert.Len(t, entries, 2)
}
