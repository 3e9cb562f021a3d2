// Package client talks to the Scholaris API from the command line and keeps
// the signed-in session between invocations.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when no usable session is stored.
var ErrNoSession = errors.New("client: no session")

// User is the identity summary returned with a token.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session is the last token issued to this client.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (s Session) valid() bool {
	return s.Token != "" && s.User.ID != "" && s.User.Role != ""
}

// HasRole reports whether the session role matches role, ignoring case.
func (s Session) HasRole(role string) bool {
	return strings.EqualFold(s.User.Role, role)
}

// SessionStore persists a single session. Get returns ErrNoSession when
// nothing usable is stored; unreadable data is cleared.
type SessionStore interface {
	Get(ctx context.Context) (Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

func decodeSession(data []byte) (Session, bool) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil || !s.valid() {
		return Session{}, false
	}
	return s, true
}

// MemorySessionStore keeps the session in process memory.
type MemorySessionStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemorySessionStore returns an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Get(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, ErrNoSession
	}
	return *m.session, nil
}

func (m *MemorySessionStore) Set(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *MemorySessionStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// FileSessionStore keeps the session as JSON in a file readable only by the owner.
type FileSessionStore struct {
	path string
}

// NewFileSessionStore stores the session at path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// DefaultSessionPath returns the per-user session file location.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "scholaris", "auth.json"), nil
}

func (f *FileSessionStore) Get(ctx context.Context) (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("client: read session: %w", err)
	}
	s, ok := decodeSession(data)
	if !ok {
		_ = f.Clear(ctx)
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (f *FileSessionStore) Set(_ context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("client: create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".auth-*.json")
	if err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("client: write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("client: write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileSessionStore) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("client: clear session: %w", err)
	}
	return nil
}

// RedisSessionStore keeps the session under a Redis key, which lets several
// terminals or hosts share one sign-in.
type RedisSessionStore struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewRedisSessionStore stores the session at key. A zero ttl never expires.
func NewRedisSessionStore(rdb redis.Cmdable, key string, ttl time.Duration) *RedisSessionStore {
	if key == "" {
		key = "scholaris:auth"
	}
	return &RedisSessionStore{rdb: rdb, key: key, ttl: ttl}
}

func (r *RedisSessionStore) Get(ctx context.Context) (Session, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("client: read session: %w", err)
	}
	s, ok := decodeSession(data)
	if !ok {
		_ = r.Clear(ctx)
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (r *RedisSessionStore) Set(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key, data, r.ttl).Err()
}

func (r *RedisSessionStore) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ SessionStore = (*FileSessionStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
)
