package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *fakeClock, string) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "sessions.json")
	return NewStore(path, ttl, WithClock(clock.Now)), clock, path
}

func readSessions(t *testing.T, path string) map[string]Session {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := map[string]Session{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestStore_CreateThenValidate(t *testing.T) {
	s, _, path := newTestStore(t, time.Hour)

	sess, err := s.Create()
	require.NoError(t, err)
	assert.Len(t, sess.Token, 43)
	assert.Equal(t, sess.CreatedAt.Add(time.Hour), sess.ExpiresAt)

	ok, err := s.Validate(sess.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Contains(t, readSessions(t, path), sess.Token)
}

func TestStore_ExpiredSessionIsPurgedOnLookup(t *testing.T) {
	s, clock, path := newTestStore(t, time.Hour)

	sess, err := s.Create()
	require.NoError(t, err)

	clock.Advance(time.Hour)
	ok, err := s.Validate(sess.Token)
	require.NoError(t, err)
	assert.True(t, ok, "valid up to and including expiry")

	clock.Advance(time.Second)
	ok, err = s.Validate(sess.Token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, readSessions(t, path), sess.Token)
}

func TestStore_ExpiryIsLazy(t *testing.T) {
	s, clock, path := newTestStore(t, time.Minute)

	old, err := s.Create()
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	fresh, err := s.Create()
	require.NoError(t, err)

	stored := readSessions(t, path)
	assert.Contains(t, stored, old.Token, "expired sessions stay until looked up")
	assert.Contains(t, stored, fresh.Token)
}

func TestStore_UnknownAndEmptyTokens(t *testing.T) {
	s, _, _ := newTestStore(t, time.Hour)

	ok, err := s.Validate("")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Validate("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SharedFileAcrossInstances(t *testing.T) {
	s1, clock, path := newTestStore(t, time.Hour)
	sess, err := s1.Create()
	require.NoError(t, err)

	s2 := NewStore(path, time.Hour, WithClock(clock.Now))
	ok, err := s2.Validate(sess.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	s, _, path := newTestStore(t, time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	ok, err := s.Validate("anything")
	require.NoError(t, err)
	assert.False(t, ok)

	sess, err := s.Create()
	require.NoError(t, err)
	assert.Len(t, readSessions(t, path), 1)
	assert.Contains(t, readSessions(t, path), sess.Token)
}

func TestStore_NullFileStartsEmpty(t *testing.T) {
	s, _, path := newTestStore(t, time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o600))

	var sess Session
	require.NotPanics(t, func() {
		var err error
		sess, err = s.Create()
		require.NoError(t, err)
	})
	assert.Equal(t, []string{sess.Token}, keys(readSessions(t, path)))
}

func TestStore_UnreadableFileIsNotOverwritten(t *testing.T) {
	s, _, path := newTestStore(t, time.Hour)
	// a directory in place of the file fails the read with something other than not-exist
	require.NoError(t, os.Mkdir(path, 0o700))

	_, err := s.Create()
	require.Error(t, err)

	_, err = s.Validate("anything")
	require.Error(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func keys(m map[string]Session) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestStore_TokensAreUnique(t *testing.T) {
	s, _, _ := newTestStore(t, time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		sess, err := s.Create()
		require.NoError(t, err)
		require.False(t, seen[sess.Token])
		seen[sess.Token] = true
	}
}

func TestStore_PersistFailureSurfaces(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := NewStore(filepath.Join(blocker, "sessions.json"), time.Hour)
	_, err := s.Create()
	assert.Error(t, err)
}

func TestNewStore_DefaultTTL(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "s.json"), 0)
	assert.Equal(t, DefaultTTL, s.TTL())
}
