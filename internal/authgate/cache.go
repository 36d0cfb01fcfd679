// File: internal/authgate/cache.go
package authgate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/formpilot-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	stateFileName = "session_state.json"
	metaFileName  = "session_meta.json"
)

// SessionCache persists browser storage state plus metadata on disk so a
// completed login survives process restarts.
type SessionCache struct {
	dir string
	now func() time.Time
}

// NewSessionCache resolves the cache directory (expanding a leading ~) and
// ensures it exists.
func NewSessionCache(dir string, now func() time.Time) (*SessionCache, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding cache dir: %w", err)
	}
	if err := os.MkdirAll(expanded, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &SessionCache{dir: expanded, now: now}, nil
}

func (c *SessionCache) statePath() string { return filepath.Join(c.dir, stateFileName) }
func (c *SessionCache) metaPath() string  { return filepath.Join(c.dir, metaFileName) }

// Save writes the storage state and its metadata. Both files are written to
// a temp name and renamed so readers never observe a torn cache.
func (c *SessionCache) Save(state []byte, url, userAgent string, ttl time.Duration) error {
	nowT := c.now()
	meta := schemas.SessionMetadata{
		Timestamp: nowT,
		Expiry:    nowT.Add(ttl),
		URL:       url,
		UserAgent: userAgent,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session metadata: %w", err)
	}

	if err := writeAtomic(c.statePath(), state); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	if err := writeAtomic(c.metaPath(), metaBytes); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	return nil
}

// Load returns the cached state and metadata. A missing or unreadable cache
// yields ok=false, never an error; corruption simply means logging in again.
func (c *SessionCache) Load() ([]byte, schemas.SessionMetadata, bool) {
	state, err := os.ReadFile(c.statePath())
	if err != nil {
		return nil, schemas.SessionMetadata{}, false
	}
	metaBytes, err := os.ReadFile(c.metaPath())
	if err != nil {
		return nil, schemas.SessionMetadata{}, false
	}
	var meta schemas.SessionMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, schemas.SessionMetadata{}, false
	}
	return state, meta, true
}

// Valid reports whether the cached session is still worth restoring.
func (c *SessionCache) Valid(meta schemas.SessionMetadata) bool {
	return c.now().Before(meta.Expiry)
}

// Clear removes the cached session files. Missing files are not an error.
func (c *SessionCache) Clear() error {
	for _, p := range []string{c.statePath(), c.metaPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// Status describes what is on disk without loading the full state blob.
func (c *SessionCache) Status() schemas.AuthStatus {
	st := schemas.AuthStatus{}
	if _, err := os.Stat(c.statePath()); err == nil {
		st.StateFileExists = true
	}
	metaBytes, err := os.ReadFile(c.metaPath())
	if err != nil {
		return st
	}
	st.MetaFileExists = true
	var meta schemas.SessionMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return st
	}
	ts, exp := meta.Timestamp, meta.Expiry
	st.CachedTimestamp = &ts
	st.CachedExpiry = &exp
	st.Authenticated = st.StateFileExists && c.Valid(meta)
	return st
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
