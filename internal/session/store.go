package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
)

// Option configures a Store.
type Option func(*Store)

// WithMaxTurns sets the per-session cap.
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithMirror mirrors every append and clear to m through a bounded queue.
func WithMirror(m service.HistoryMirror, buffer int) Option {
	return func(s *Store) {
		s.mirror = m
		s.buffer = buffer
	}
}

// WithRetryOptions sets how mirror writes are retried.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(s *Store) { s.retry = opts }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store owns one Session per identity.
type Store struct {
	mirror   service.HistoryMirror
	logger   *slog.Logger
	worker   *mirrorWorker
	sessions map[string]*Session
	retry    service.RetryOptions
	maxTurns int
	buffer   int
	mu       sync.Mutex
}

// NewStore creates a store. If a mirror is configured its worker starts immediately.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		maxTurns: DefaultMaxTurns,
		logger:   slog.Default(),
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mirror != nil {
		s.worker = newMirrorWorker(s.mirror, s.buffer, s.retry, s.logger)
	}
	return s
}

func (s *Store) session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(s.maxTurns)
		s.sessions[id] = sess
	}
	return sess
}

func (s *Store) lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Append adds turns to the identity's session and queues them for the mirror.
func (s *Store) Append(_ context.Context, id string, turns ...model.Turn) {
	if len(turns) == 0 {
		return
	}
	s.appendTo(s.session(id), id, turns)
}

func (s *Store) appendTo(sess *Session, id string, turns []model.Turn) {
	now := time.Now()
	stamped := make([]model.Turn, len(turns))
	for i, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		stamped[i] = t
	}
	sess.append(stamped...)
	if s.worker != nil {
		s.worker.enqueue(mirrorJob{kind: jobAppend, identityID: id, turns: stamped})
	}
}

// History returns a copy of the identity's turns, oldest first.
func (s *Store) History(id string) []model.Turn {
	sess, ok := s.lookup(id)
	if !ok {
		return nil
	}
	return sess.Turns()
}

// Clear empties the identity's session and its mirrored copy.
func (s *Store) Clear(_ context.Context, id string) {
	if sess, ok := s.lookup(id); ok {
		sess.reset()
	}
	if s.worker != nil {
		s.worker.enqueue(mirrorJob{kind: jobClear, identityID: id})
	}
}

// Drop forgets the in-memory session. Mirrored history is kept.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Hydrate loads mirrored history into an empty session. Failures are logged
// and leave the session empty.
func (s *Store) Hydrate(ctx context.Context, id string) {
	sess := s.session(id)
	if s.mirror == nil || sess.Len() > 0 {
		return
	}
	turns, err := s.mirror.LoadTurns(ctx, id, s.maxTurns)
	if err != nil {
		s.logger.Warn("failed to hydrate session", "identity", id, "error", err)
		return
	}
	if sess.seed(turns) {
		s.logger.Debug("session hydrated", "identity", id, "turns", len(turns))
	}
}

// Exchange runs fn with the identity's current history while holding that
// identity's exchange lock, then appends the turns fn returns. Nothing is
// appended when fn fails.
func (s *Store) Exchange(ctx context.Context, id string, fn func(ctx context.Context, history []model.Turn) ([]model.Turn, error)) error {
	sess := s.session(id)
	sess.exchange.Lock()
	defer sess.exchange.Unlock()

	turns, err := fn(ctx, sess.Turns())
	if err != nil {
		return err
	}
	if len(turns) > 0 {
		s.appendTo(sess, id, turns)
	}
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close flushes pending mirror writes until ctx ends.
func (s *Store) Close(ctx context.Context) error {
	if s.worker == nil {
		return nil
	}
	return s.worker.close(ctx)
}

// Shutdown implements do.Shutdownable.
func (s *Store) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Close(ctx)
}
