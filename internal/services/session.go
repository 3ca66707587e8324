package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/adaptive"
	"github.com/yungbote/linguabridge-backend/internal/content"
	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/pipeline"
	"github.com/yungbote/linguabridge-backend/internal/repos"
	"github.com/yungbote/linguabridge-backend/internal/scheduler"
	"github.com/yungbote/linguabridge-backend/internal/store"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

var (
	ErrSessionPaused = errors.New("session is paused")
	ErrSessionEnded  = errors.New("session already ended")
)

type SessionConfig struct {
	// Cap on the queue built at session start.
	SessionCap int
	// Fast-tier eviction after this much inactivity.
	IdleTimeout time.Duration
	// Sweep cadence for the idle janitor.
	JanitorInterval time.Duration
	// Completed session rows are kept for IdleTimeout + RetentionGrace.
	RetentionGrace time.Duration
	// Events replayed per domain when rebuilding adaptive state on resume.
	ReplayLimit int
	Adaptive    adaptive.Config
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SessionCap:      20,
		IdleTimeout:     30 * time.Minute,
		JanitorInterval: time.Minute,
		RetentionGrace:  time.Hour,
		ReplayLimit:     200,
		Adaptive:        adaptive.DefaultConfig(),
	}
}

type StartSessionInput struct {
	UserID  uuid.UUID
	Domains []string
	// ExtraCurricular pulls fresh, not-yet-due content when nothing is due,
	// so a caller can explicitly keep studying ahead of schedule.
	ExtraCurricular bool
}

type InteractInput struct {
	ItemID     uuid.UUID
	Outcome    string
	LatencyMs  int64
	Seq        int64
	OccurredAt *time.Time
}

type SessionView struct {
	SessionID     uuid.UUID          `json:"session_id"`
	UserID        uuid.UUID          `json:"user_id"`
	Status        string             `json:"status"`
	Domains       []string           `json:"domains"`
	QueueLength   int                `json:"queue_length"`
	Remaining     int                `json:"remaining"`
	Cursor        int                `json:"cursor"`
	Interactions  int                `json:"interactions"`
	Seq           int64              `json:"seq"`
	Effectiveness map[string]float64 `json:"effectiveness"`
	Degraded      bool               `json:"degraded"`
	NextItem      *store.QueueItem   `json:"next_item,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
}

type InteractResponse struct {
	SessionID uuid.UUID        `json:"session_id"`
	Seq       int64            `json:"seq"`
	NextItem  *store.QueueItem `json:"next_item,omitempty"`
	Hint      string           `json:"adaptation_hint"`
	State     string           `json:"adaptive_state"`
	Signal    float64          `json:"signal"`
	Injected  int              `json:"injected"`
	Remaining int              `json:"remaining"`
	Degraded  bool             `json:"degraded"`
}

type SessionSummary struct {
	SessionID    uuid.UUID          `json:"session_id"`
	UserID       uuid.UUID          `json:"user_id"`
	Interactions int                `json:"interactions"`
	Correct      int                `json:"correct"`
	Partial      int                `json:"partial"`
	Incorrect    int                `json:"incorrect"`
	Accuracy     float64            `json:"accuracy"`
	Signals      map[string]float64 `json:"signals"`
	StartedAt    time.Time          `json:"started_at"`
	EndedAt      time.Time          `json:"ended_at"`
}

// SessionService owns session lifecycle and is the engine's public
// contract. All per-session mutation runs under that session's lock:
// interactions apply one at a time, in receipt order, and sessions never
// contend with each other.
type SessionService interface {
	StartSession(ctx context.Context, in StartSessionInput) (*SessionView, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*SessionView, error)
	Interact(ctx context.Context, sessionID uuid.UUID, in InteractInput) (*InteractResponse, error)
	PauseSession(ctx context.Context, sessionID uuid.UUID) error
	ResumeSession(ctx context.Context, sessionID uuid.UUID) (*SessionView, error)
	EndSession(ctx context.Context, sessionID uuid.UUID) (*SessionSummary, error)
	Close(ctx context.Context) error
}

type sessionService struct {
	log      *logger.Logger
	cfg      SessionConfig
	store    store.Store
	pipeline *pipeline.Pipeline
	reviews  repos.ReviewStateRepo
	items    repos.LearningItemRepo
	events   repos.InteractionEventRepo
	sessions repos.SessionRecordRepo
	content  content.Provider

	mu          sync.Mutex
	locks       map[uuid.UUID]*sync.Mutex
	controllers map[uuid.UUID]*adaptive.Controller

	janitorStop chan struct{}
	janitorDone chan struct{}
}

func NewSessionService(
	baseLog *logger.Logger,
	cfg SessionConfig,
	st store.Store,
	pl *pipeline.Pipeline,
	reviews repos.ReviewStateRepo,
	items repos.LearningItemRepo,
	events repos.InteractionEventRepo,
	sessions repos.SessionRecordRepo,
	provider content.Provider,
) SessionService {
	if cfg.SessionCap < 1 {
		cfg.SessionCap = DefaultSessionConfig().SessionCap
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSessionConfig().IdleTimeout
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = DefaultSessionConfig().JanitorInterval
	}
	if cfg.ReplayLimit <= 0 {
		cfg.ReplayLimit = DefaultSessionConfig().ReplayLimit
	}
	s := &sessionService{
		log:         baseLog.With("service", "SessionService"),
		cfg:         cfg,
		store:       st,
		pipeline:    pl,
		reviews:     reviews,
		items:       items,
		events:      events,
		sessions:    sessions,
		content:     provider,
		locks:       map[uuid.UUID]*sync.Mutex{},
		controllers: map[uuid.UUID]*adaptive.Controller{},
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *sessionService) StartSession(ctx context.Context, in StartSessionInput) (*SessionView, error) {
	if in.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	domains := normalizeDomains(in.Domains)
	now := time.Now().UTC()

	queue, err := s.buildDueQueue(ctx, in.UserID, domains, now)
	if err != nil {
		return nil, err
	}
	if len(queue) == 0 && in.ExtraCurricular {
		queue = s.fetchExtraCurricular(ctx, domains, now)
	}

	sc := &store.SessionContext{
		ID:            uuid.New(),
		UserID:        in.UserID,
		Status:        types.SessionStatusActive,
		Domains:       domains,
		Queue:         queue,
		Effectiveness: map[string]float64{},
		StartedAt:     now,
		LastActiveAt:  now,
	}
	if err := s.store.Put(ctx, sc.ID, sc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.controllers[sc.ID] = adaptive.NewController(s.log, s.cfg.Adaptive, s.content)
	s.mu.Unlock()

	s.log.Info("session started",
		"session_id", sc.ID.String(),
		"user_id", in.UserID.String(),
		"domains", strings.Join(domains, ","),
		"queue_length", len(queue))
	return viewOf(sc), nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*SessionView, error) {
	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return viewOf(sc), nil
}

func (s *sessionService) Interact(ctx context.Context, sessionID uuid.UUID, in InteractInput) (*InteractResponse, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sc.Status {
	case types.SessionStatusPaused:
		return nil, ErrSessionPaused
	case types.SessionStatusCompleted:
		return nil, ErrSessionEnded
	}
	if sc.Degraded {
		// Read-only mode: durable writes are failing, so no new state
		// transitions until the store recovers.
		return &InteractResponse{
			SessionID: sc.ID,
			Seq:       sc.Seq,
			NextItem:  sc.Current(),
			Hint:      adaptive.HintHold.String(),
			State:     adaptive.StateNominal.String(),
			Remaining: sc.Remaining(),
			Degraded:  true,
		}, nil
	}

	outcome, ok := scheduler.ParseOutcome(in.Outcome)
	if !ok {
		return nil, fmt.Errorf("%w: unknown outcome %q", pipeline.ErrInvalidEvent, in.Outcome)
	}

	ctrl, err := s.controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	input := pipeline.Input{
		SessionID: sessionID,
		ItemID:    in.ItemID,
		Outcome:   outcome,
		Latency:   time.Duration(in.LatencyMs) * time.Millisecond,
		Seq:       in.Seq,
	}
	if in.OccurredAt != nil {
		input.OccurredAt = *in.OccurredAt
	}

	res, err := s.pipeline.HandleInteraction(ctx, sc, ctrl, input, now)
	if errors.Is(err, pipeline.ErrStoreUnavailable) {
		s.log.Error("interaction hit unavailable durable store, session degraded",
			"session_id", sessionID.String(), "error", err)
		sc.Degraded = true
		_ = s.store.Put(ctx, sessionID, sc)
		return &InteractResponse{
			SessionID: sc.ID,
			Seq:       sc.Seq,
			NextItem:  sc.Current(),
			Hint:      adaptive.HintHold.String(),
			State:     adaptive.StateNominal.String(),
			Remaining: sc.Remaining(),
			Degraded:  true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, sessionID, sc); err != nil {
		return nil, err
	}

	return &InteractResponse{
		SessionID: sc.ID,
		Seq:       sc.Seq,
		NextItem:  res.NextItem,
		Hint:      res.Hint.String(),
		State:     res.State.String(),
		Signal:    res.Signal,
		Injected:  res.Injected,
		Remaining: sc.Remaining(),
		Degraded:  sc.Degraded,
	}, nil
}

func (s *sessionService) PauseSession(ctx context.Context, sessionID uuid.UUID) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sc.Status == types.SessionStatusCompleted {
		return ErrSessionEnded
	}
	if sc.Status == types.SessionStatusPaused {
		return nil
	}
	sc.Status = types.SessionStatusPaused
	if err := s.store.Put(ctx, sessionID, sc); err != nil {
		return err
	}
	if err := s.store.Flush(ctx, sessionID); err != nil {
		s.log.Warn("pause flush failed", "session_id", sessionID.String(), "error", err)
	}
	return nil
}

func (s *sessionService) ResumeSession(ctx context.Context, sessionID uuid.UUID) (*SessionView, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sc.Status == types.SessionStatusCompleted {
		return nil, ErrSessionEnded
	}
	if sc.Status == types.SessionStatusPaused {
		sc.Status = types.SessionStatusActive
		if err := s.store.Put(ctx, sessionID, sc); err != nil {
			return nil, err
		}
	}
	// Rebuilding adaptive state here keeps resume cheap to repeat: a second
	// Resume with no interaction in between finds everything warm and
	// returns the identical view.
	if _, err := s.controller(ctx, sessionID); err != nil {
		return nil, err
	}
	return viewOf(sc), nil
}

func (s *sessionService) EndSession(ctx context.Context, sessionID uuid.UUID) (*SessionSummary, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sc.Status == types.SessionStatusCompleted {
		return nil, ErrSessionEnded
	}

	now := time.Now().UTC()
	sc.Status = types.SessionStatusCompleted
	sc.EndedAt = &now
	if err := s.store.Put(ctx, sessionID, sc); err != nil {
		return nil, err
	}
	// End-of-session flush is synchronous: no progress loss at normal
	// termination.
	if err := s.store.Flush(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("end session flush: %w", err)
	}
	if err := s.store.Evict(ctx, sessionID); err != nil {
		return nil, err
	}
	s.forget(sessionID)

	summary := &SessionSummary{
		SessionID:    sc.ID,
		UserID:       sc.UserID,
		Interactions: sc.Interactions,
		Signals:      sc.Effectiveness,
		StartedAt:    sc.StartedAt,
		EndedAt:      now,
	}
	if events, err := s.events.ListBySession(ctx, nil, sessionID, 0); err == nil {
		for _, ev := range events {
			switch ev.Outcome {
			case "correct":
				summary.Correct++
			case "partial":
				summary.Partial++
			default:
				summary.Incorrect++
			}
		}
		if total := summary.Correct + summary.Partial + summary.Incorrect; total > 0 {
			summary.Accuracy = (float64(summary.Correct) + 0.5*float64(summary.Partial)) / float64(total)
		}
	} else {
		s.log.Warn("session summary event scan failed", "session_id", sessionID.String(), "error", err)
	}

	s.log.Info("session ended",
		"session_id", sessionID.String(),
		"interactions", summary.Interactions,
		"accuracy", summary.Accuracy)
	return summary, nil
}

func (s *sessionService) Close(ctx context.Context) error {
	close(s.janitorStop)
	<-s.janitorDone
	return s.store.Close(ctx)
}

// buildDueQueue assembles the initial queue: everything due across the
// requested domains, repo-ordered by next-due then stability, capped.
func (s *sessionService) buildDueQueue(ctx context.Context, userID uuid.UUID, domains []string, now time.Time) ([]store.QueueItem, error) {
	due, err := s.reviews.ListDueByUser(ctx, nil, userID, domains, now, s.cfg.SessionCap)
	if err != nil {
		return nil, fmt.Errorf("list due reviews: %w", err)
	}
	if len(due) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, rs := range due {
		ids = append(ids, rs.ItemID)
	}
	items, err := s.items.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("load due items: %w", err)
	}
	byID := make(map[uuid.UUID]*types.LearningItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	queue := make([]store.QueueItem, 0, len(due))
	for _, rs := range due {
		item := byID[rs.ItemID]
		if item == nil {
			// Content withdrawn since last review; skip rather than serve a
			// dangling payload reference.
			continue
		}
		queue = append(queue, store.QueueItem{
			ItemID:        rs.ItemID,
			Domain:        rs.Domain,
			Difficulty:    item.Difficulty,
			PayloadRef:    item.PayloadRef,
			NextDueAt:     rs.NextDueAt,
			StabilityDays: rs.StabilityDays,
		})
	}
	pipeline.SortTail(queue, 0)
	return queue, nil
}

func (s *sessionService) fetchExtraCurricular(ctx context.Context, domains []string, now time.Time) []store.QueueItem {
	var queue []store.QueueItem
	per := s.cfg.SessionCap / maxInt(len(domains), 1)
	if per < 1 {
		per = 1
	}
	for _, domain := range domains {
		items, err := s.content.FetchItems(ctx, domain, content.DifficultyRange{
			Min: s.cfg.Adaptive.MinDifficulty,
			Max: s.cfg.Adaptive.MaxDifficulty,
		}, nil, per)
		if err != nil {
			s.log.Warn("extra-curricular fetch failed", "domain", domain, "error", err)
			continue
		}
		for _, item := range items {
			queue = append(queue, store.QueueItem{
				ItemID:     item.ID,
				Domain:     item.Domain,
				Difficulty: item.Difficulty,
				PayloadRef: item.PayloadRef,
				NextDueAt:  now,
				Injected:   true,
			})
		}
	}
	return queue
}

// controller returns the session's adaptive controller, rebuilding it from
// the event log when the session was evicted or the process restarted.
func (s *sessionService) controller(ctx context.Context, sessionID uuid.UUID) (*adaptive.Controller, error) {
	s.mu.Lock()
	ctrl, ok := s.controllers[sessionID]
	s.mu.Unlock()
	if ok {
		return ctrl, nil
	}

	ctrl = adaptive.NewController(s.log, s.cfg.Adaptive, s.content)
	events, err := s.events.ListRecentBySession(ctx, nil, sessionID, s.cfg.ReplayLimit)
	if err != nil {
		return nil, fmt.Errorf("replay events: %w", err)
	}
	for _, ev := range events {
		outcome, _ := scheduler.ParseOutcome(ev.Outcome)
		ctrl.Observe(ev.Domain, adaptive.ScoreEvent(outcome, time.Duration(ev.LatencyMs)*time.Millisecond))
	}

	s.mu.Lock()
	if existing, ok := s.controllers[sessionID]; ok {
		ctrl = existing
	} else {
		s.controllers[sessionID] = ctrl
	}
	s.mu.Unlock()
	return ctrl, nil
}

func (s *sessionService) sessionLock(sessionID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

func (s *sessionService) forget(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.controllers, sessionID)
	delete(s.locks, sessionID)
	s.mu.Unlock()
}

// janitor evicts idle sessions from the fast tier (final flush included)
// and purges completed session rows past their audit retention.
func (s *sessionService) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.janitorStop:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			for _, id := range s.store.IdleSessions(now.Add(-s.cfg.IdleTimeout)) {
				lock := s.sessionLock(id)
				lock.Lock()
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := s.store.Evict(ctx, id); err != nil {
					s.log.Warn("idle eviction failed", "session_id", id.String(), "error", err)
				} else {
					s.mu.Lock()
					delete(s.controllers, id)
					s.mu.Unlock()
					s.log.Debug("idle session evicted", "session_id", id.String())
				}
				cancel()
				lock.Unlock()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			cutoff := now.Add(-(s.cfg.IdleTimeout + s.cfg.RetentionGrace))
			if n, err := s.sessions.PurgeEndedBefore(ctx, nil, cutoff); err != nil {
				s.log.Warn("session retention purge failed", "error", err)
			} else if n > 0 {
				s.log.Debug("purged ended sessions", "count", n)
			}
			cancel()
		}
	}
}

func viewOf(sc *store.SessionContext) *SessionView {
	return &SessionView{
		SessionID:     sc.ID,
		UserID:        sc.UserID,
		Status:        sc.Status,
		Domains:       sc.Domains,
		QueueLength:   len(sc.Queue),
		Remaining:     sc.Remaining(),
		Cursor:        sc.Cursor,
		Interactions:  sc.Interactions,
		Seq:           sc.Seq,
		Effectiveness: sc.Effectiveness,
		Degraded:      sc.Degraded,
		NextItem:      sc.Current(),
		StartedAt:     sc.StartedAt,
	}
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	seen := map[string]bool{}
	for _, d := range domains {
		d = strings.TrimSpace(strings.ToLower(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
