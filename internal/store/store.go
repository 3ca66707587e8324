package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/repos"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreDegraded is returned when durable writes for a session have
	// exhausted their retries. The fast tier keeps the state; callers must
	// treat the session as read-only until the durable tier recovers.
	ErrStoreDegraded = errors.New("durable store degraded")
)

// Store is the two-tier session state store. The fast in-memory tier is
// authoritative while a session is live; the durable tier is the source of
// truth across session boundaries and restarts.
//
// Put is write-behind: it lands in the fast tier synchronously and
// propagates to the durable tier in the background. Flush is the barrier:
// it returns once every write accepted before the call is durably applied.
// Evict flushes first, so a fast-tier entry is never dropped ahead of its
// pending writes.
type Store interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*SessionContext, error)
	Put(ctx context.Context, sessionID uuid.UUID, sc *SessionContext) error
	Flush(ctx context.Context, sessionID uuid.UUID) error
	Evict(ctx context.Context, sessionID uuid.UUID) error
	// IdleSessions lists fast-tier sessions untouched since the cutoff.
	IdleSessions(cutoff time.Time) []uuid.UUID
	Close(ctx context.Context) error
}

type Config struct {
	FlushRetries int
	FlushBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		FlushRetries: 3,
		FlushBackoff: 250 * time.Millisecond,
	}
}

type fastEntry struct {
	mu        sync.Mutex
	sc        *SessionContext
	dirty     bool
	running   bool
	failed    bool
	waiters   []chan struct{}
	lastTouch time.Time
}

type twoTierStore struct {
	log  *logger.Logger
	cfg  Config
	repo repos.SessionRecordRepo

	mu      sync.RWMutex
	fast    map[uuid.UUID]*fastEntry
	loading singleflight.Group

	wg     sync.WaitGroup
	closed bool
}

func NewTwoTierStore(baseLog *logger.Logger, cfg Config, repo repos.SessionRecordRepo) Store {
	if cfg.FlushRetries < 1 {
		cfg.FlushRetries = DefaultConfig().FlushRetries
	}
	if cfg.FlushBackoff <= 0 {
		cfg.FlushBackoff = DefaultConfig().FlushBackoff
	}
	return &twoTierStore{
		log:  baseLog.With("service", "SessionStore"),
		cfg:  cfg,
		repo: repo,
		fast: map[uuid.UUID]*fastEntry{},
	}
}

func (s *twoTierStore) Get(ctx context.Context, sessionID uuid.UUID) (*SessionContext, error) {
	s.mu.RLock()
	e, ok := s.fast[sessionID]
	s.mu.RUnlock()
	if ok {
		e.mu.Lock()
		sc := e.sc.Clone()
		e.mu.Unlock()
		return sc, nil
	}

	// Read-through: miss loads from the durable tier and re-warms the fast
	// tier. Singleflight collapses concurrent misses for the same session.
	v, err, _ := s.loading.Do(sessionID.String(), func() (interface{}, error) {
		s.mu.RLock()
		e, ok := s.fast[sessionID]
		s.mu.RUnlock()
		if ok {
			e.mu.Lock()
			sc := e.sc.Clone()
			e.mu.Unlock()
			return sc, nil
		}

		rec, err := s.repo.GetByID(ctx, nil, sessionID)
		if err != nil {
			return nil, fmt.Errorf("read-through load: %w", err)
		}
		if rec == nil {
			return nil, ErrSessionNotFound
		}
		sc, err := FromRecord(rec)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if existing, ok := s.fast[sessionID]; ok {
			s.mu.Unlock()
			existing.mu.Lock()
			out := existing.sc.Clone()
			existing.mu.Unlock()
			return out, nil
		}
		s.fast[sessionID] = &fastEntry{sc: sc, lastTouch: time.Now()}
		s.mu.Unlock()
		return sc.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SessionContext), nil
}

func (s *twoTierStore) Put(ctx context.Context, sessionID uuid.UUID, sc *SessionContext) error {
	if sc == nil {
		return fmt.Errorf("nil session context")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("store closed")
	}
	e, ok := s.fast[sessionID]
	if !ok {
		// Seed the entry before it is reachable through the map: a
		// concurrent Get must never observe a nil context.
		e = &fastEntry{sc: sc.Clone(), lastTouch: time.Now()}
		s.fast[sessionID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.sc = sc.Clone()
	e.dirty = true
	e.failed = false
	e.lastTouch = time.Now()
	if !e.running {
		e.running = true
		s.wg.Add(1)
		go s.flushLoop(sessionID, e)
	}
	e.mu.Unlock()
	return nil
}

// flushLoop drains pending writes for one session, newest snapshot wins.
// Intermediate states coalesce; the durable tier still observes a
// monotone, in-order sequence of session snapshots.
func (s *twoTierStore) flushLoop(sessionID uuid.UUID, e *fastEntry) {
	defer s.wg.Done()
	for {
		e.mu.Lock()
		if !e.dirty {
			e.running = false
			waiters := e.waiters
			e.waiters = nil
			e.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
			return
		}
		e.dirty = false
		snap := e.sc.Clone()
		e.mu.Unlock()

		if err := s.writeDurable(context.Background(), snap); err != nil {
			s.log.Error("write-behind flush failed, session degraded",
				"session_id", sessionID.String(), "error", err)
			e.mu.Lock()
			e.failed = true
			e.sc.Degraded = true
			e.mu.Unlock()
		}
	}
}

func (s *twoTierStore) writeDurable(ctx context.Context, sc *SessionContext) error {
	rec, err := sc.ToRecord()
	if err != nil {
		return err
	}
	backoff := s.cfg.FlushBackoff
	var last error
	for attempt := 0; attempt < s.cfg.FlushRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if last = s.repo.Upsert(ctx, nil, rec); last == nil {
			return nil
		}
	}
	return last
}

func (s *twoTierStore) Flush(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.RLock()
	e, ok := s.fast[sessionID]
	s.mu.RUnlock()
	if !ok {
		// Nothing in the fast tier; the durable tier already holds the
		// latest state.
		return nil
	}

	e.mu.Lock()
	if !e.dirty && !e.running {
		failed := e.failed
		e.mu.Unlock()
		if failed {
			return ErrStoreDegraded
		}
		return nil
	}
	w := make(chan struct{})
	e.waiters = append(e.waiters, w)
	e.mu.Unlock()

	select {
	case <-w:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	failed := e.failed
	e.mu.Unlock()
	if failed {
		return ErrStoreDegraded
	}
	return nil
}

func (s *twoTierStore) Evict(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.Flush(ctx, sessionID); err != nil {
		// Eviction barrier: never drop a fast-tier entry whose writes did
		// not land durably.
		return fmt.Errorf("evict %s: %w", sessionID, err)
	}
	s.mu.Lock()
	delete(s.fast, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *twoTierStore) IdleSessions(cutoff time.Time) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uuid.UUID
	for id, e := range s.fast {
		e.mu.Lock()
		idle := e.lastTouch.Before(cutoff)
		e.mu.Unlock()
		if idle {
			out = append(out, id)
		}
	}
	return out
}

// Close flushes every resident session and shuts the store down.
func (s *twoTierStore) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ids := make([]uuid.UUID, 0, len(s.fast))
	for id := range s.fast {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.Flush(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.wg.Wait()
	return firstErr
}
