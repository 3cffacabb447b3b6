package mailmerge

import (
	"container/list"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is a snapshot of one user's merge state. Values returned by the
// store are copies; mutating them has no effect on the store.
type Session struct {
	ID           string
	CreatedAt    time.Time
	Dir          string
	TemplatePath string
	TemplateName string
	Fields       []string
	DataPath     string
	DataName     string
	Headers      []string
	Outputs      []Output

	outputDir string
	owned     []string // every path allocated for the session
}

func (s *Session) snapshot() Session {
	c := *s
	c.Fields = slices.Clone(s.Fields)
	c.Headers = slices.Clone(s.Headers)
	c.Outputs = slices.Clone(s.Outputs)
	c.owned = slices.Clone(s.owned)
	return c
}

// disown drops path from the arena and reports whether it was owned.
func (s *Session) disown(path string) bool {
	i := slices.Index(s.owned, path)
	if i < 0 {
		return false
	}
	s.owned = slices.Delete(s.owned, i, i+1)
	return true
}

// SessionStore keeps at most max sessions, each with a private directory
// under root. Creating a session beyond the bound evicts the oldest one.
// A single mutex guards the map and the creation-order list; files are
// deleted after it is released.
type SessionStore struct {
	root   string
	max    int
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*list.Element
	order    *list.List // *Session, oldest first
	closed   bool
}

// NewSessionStore creates a store rooted at root, which must exist.
func NewSessionStore(root string, max int, logger *slog.Logger, now func() time.Time) *SessionStore {
	if max < 1 {
		max = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		root:     root,
		max:      max,
		now:      now,
		logger:   logger,
		sessions: make(map[string]*list.Element),
		order:    list.New(),
	}
}

// GetOrCreate returns the session for id, creating it when absent. When
// the creation exceeds the bound, the oldest session is evicted and its
// files are deleted before GetOrCreate returns.
func (s *SessionStore) GetOrCreate(id string) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("%w: empty session id", ErrSessionNotFound)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Session{}, fmt.Errorf("%w: store closed", ErrSessionNotFound)
	}
	if e, ok := s.sessions[id]; ok {
		snap := e.Value.(*Session).snapshot()
		s.mu.Unlock()
		return snap, nil
	}

	dir := filepath.Join(s.root, uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		s.mu.Unlock()
		return Session{}, fmt.Errorf("creating session directory: %w", err)
	}
	sess := &Session{ID: id, CreatedAt: s.now(), Dir: dir}
	s.sessions[id] = s.order.PushBack(sess)
	snap := sess.snapshot()

	var evicted []*Session
	for s.order.Len() > s.max {
		oldest := s.order.Front()
		old := s.order.Remove(oldest).(*Session)
		delete(s.sessions, old.ID)
		evicted = append(evicted, old)
	}
	s.mu.Unlock()

	s.logger.Debug("session created", "session", id)
	for _, old := range evicted {
		s.logger.Info("session evicted", "session", old.ID, "created", old.CreatedAt)
		s.removeSessionFiles(old)
	}
	return snap, nil
}

// Get returns the session for id.
func (s *SessionStore) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return e.Value.(*Session).snapshot(), nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Clear deletes every file of the session and removes it from the store.
func (s *SessionStore) Clear(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	sess := s.order.Remove(e).(*Session)
	delete(s.sessions, id)
	s.mu.Unlock()

	s.logger.Info("session cleared", "session", id)
	s.removeSessionFiles(sess)
	return nil
}

// Close clears every session. Later GetOrCreate calls fail.
func (s *SessionStore) Close() {
	s.mu.Lock()
	s.closed = true
	var all []*Session
	for e := s.order.Front(); e != nil; e = e.Next() {
		all = append(all, e.Value.(*Session))
	}
	s.order.Init()
	clear(s.sessions)
	s.mu.Unlock()

	for _, sess := range all {
		s.removeSessionFiles(sess)
	}
}

// mutate runs fn on the live session under the lock and deletes the paths
// fn returns once the lock is released.
func (s *SessionStore) mutate(id string, fn func(*Session) ([]string, error)) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	stale, err := fn(e.Value.(*Session))
	s.mu.Unlock()

	s.remove(stale...)
	return err
}

func (s *SessionStore) removeSessionFiles(sess *Session) {
	s.remove(sess.owned...)
	s.remove(sess.Dir)
}

// remove deletes paths, logging failures. Missing paths are not failures.
func (s *SessionStore) remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			s.logger.Warn("removing file failed", "path", p, "error", err)
		}
	}
}
