// Package session keeps opaque session tokens in a flat JSON file.
//
// The whole map is read and rewritten on every mutation. Writes are atomic
// (temp file + rename) and serialized within the process; separate processes
// sharing the file are last-writer-wins. Expired sessions are only removed
// when they are looked up.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/PratikDhanave/empleaido-factory/internal/fsutil"
)

// DefaultTTL is how long a new session stays valid.
const DefaultTTL = time.Hour

// Session is one issued token.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store maps tokens to sessions, backed by a JSON file.
type Store struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used to report corrupt files.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a store persisted at path. A non-positive ttl means DefaultTTL.
func NewStore(path string, ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		path:   path,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime given to new sessions.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create issues a new random token and persists it.
func (s *Store) Create() (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	sess := Session{
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return Session{}, err
	}
	sessions[token] = sess
	if err := s.save(sessions); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Validate reports whether token names a live session. An expired session is
// deleted and the deletion persisted before returning false.
func (s *Store) Validate(token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return false, err
	}
	sess, ok := sessions[token]
	if !ok {
		return false, nil
	}
	if s.now().After(sess.ExpiresAt) {
		delete(sessions, token)
		if err := s.save(sessions); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// load reads the session file. A missing or undecodable file is an empty map;
// any other read failure is returned so save never clobbers sessions it could not see.
func (s *Store) load() (map[string]Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	var sessions map[string]Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		s.logger.Warn("session file corrupt, starting empty", "path", s.path, "error", err)
		return map[string]Session{}, nil
	}
	if sessions == nil {
		return map[string]Session{}, nil
	}
	return sessions, nil
}

func (s *Store) save(sessions map[string]Session) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := fsutil.EnsureParent(s.path); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
