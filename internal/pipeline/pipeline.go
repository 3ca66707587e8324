package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/adaptive"
	"github.com/yungbote/linguabridge-backend/internal/analytics"
	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/repos"
	"github.com/yungbote/linguabridge-backend/internal/scheduler"
	"github.com/yungbote/linguabridge-backend/internal/store"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

var (
	// ErrInvalidEvent covers both failure shapes of a bad interaction: the
	// event references an item that is not under the session cursor, or its
	// sequence number was already superseded. Not retriable; state is never
	// mutated.
	ErrInvalidEvent = errors.New("invalid interaction event")
	// ErrStoreUnavailable is surfaced after durable write retries exhaust.
	ErrStoreUnavailable = errors.New("durable store unavailable")
)

const casRetries = 3

// Input is one interaction submitted by the caller. Seq is the event's
// position in the session's stream; zero lets the engine assign the next
// position (single-connection callers), anything else must be exactly one
// past the session's applied sequence.
type Input struct {
	SessionID  uuid.UUID
	ItemID     uuid.UUID
	Outcome    scheduler.Outcome
	Latency    time.Duration
	Seq        int64
	OccurredAt time.Time
}

// Result is what one applied interaction produced.
type Result struct {
	Review   types.ReviewState
	NextItem *store.QueueItem
	Hint     adaptive.Hint
	Injected int
	Signal   float64
	State    adaptive.State
}

// Pipeline applies interaction events: scheduler update, durable review
// persist, event log append, effectiveness recompute, adaptation, queue
// advance, analytics emit. It mutates only the SessionContext handed to it;
// the orchestrator owns session locking and the store write that follows.
type Pipeline struct {
	log     *logger.Logger
	sched   *scheduler.Scheduler
	reviews repos.ReviewStateRepo
	events  repos.InteractionEventRepo
	sink    analytics.Sink
}

func New(baseLog *logger.Logger, sched *scheduler.Scheduler, reviews repos.ReviewStateRepo, events repos.InteractionEventRepo, sink analytics.Sink) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("service", "InteractionPipeline"),
		sched:   sched,
		reviews: reviews,
		events:  events,
		sink:    sink,
	}
}

func (p *Pipeline) HandleInteraction(ctx context.Context, sc *store.SessionContext, ctrl *adaptive.Controller, in Input, now time.Time) (*Result, error) {
	current := sc.Current()
	if current == nil {
		return nil, fmt.Errorf("%w: session queue is exhausted", ErrInvalidEvent)
	}
	if current.ItemID != in.ItemID {
		return nil, fmt.Errorf("%w: item %s is not under the session cursor", ErrInvalidEvent, in.ItemID)
	}
	seq := in.Seq
	if seq == 0 {
		seq = sc.Seq + 1
	}
	if seq <= sc.Seq {
		return nil, fmt.Errorf("%w: sequence %d already superseded (applied %d)", ErrInvalidEvent, seq, sc.Seq)
	}
	if seq != sc.Seq+1 {
		return nil, fmt.Errorf("%w: sequence gap, got %d want %d", ErrInvalidEvent, seq, sc.Seq+1)
	}

	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	updated, err := p.applySchedule(ctx, sc.UserID, current, in.Outcome, now)
	if err != nil {
		return nil, err
	}

	event := &types.InteractionEvent{
		ID:         uuid.New(),
		SessionID:  sc.ID,
		Seq:        seq,
		UserID:     sc.UserID,
		ItemID:     in.ItemID,
		Domain:     current.Domain,
		Outcome:    in.Outcome.String(),
		LatencyMs:  in.Latency.Milliseconds(),
		OccurredAt: occurred.UTC(),
	}
	if _, err := p.events.Append(ctx, nil, event); err != nil {
		return nil, fmt.Errorf("%w: event append: %v", ErrStoreUnavailable, err)
	}

	// All durable writes landed; from here on the session context mutates.
	score := adaptive.ScoreEvent(in.Outcome, in.Latency)
	signal := ctrl.Observe(current.Domain, score)
	sc.Effectiveness[current.Domain] = signal

	domain := current.Domain
	baseDifficulty := current.Difficulty
	sc.Cursor++
	sc.Interactions++
	sc.Seq = seq
	sc.LastActiveAt = now.UTC()

	hint, items := ctrl.Advise(ctx, domain, baseDifficulty, queueItemIDs(sc.Queue))
	injected := p.inject(sc, items, now)
	SortTail(sc.Queue, sc.Cursor)

	p.sink.Emit(ctx, analytics.Event{
		SessionID: sc.ID,
		UserID:    sc.UserID,
		ItemID:    in.ItemID,
		Domain:    domain,
		Outcome:   in.Outcome.String(),
		LatencyMs: in.Latency.Milliseconds(),
		Signal:    signal,
		State:     ctrl.StateOf(domain).String(),
		EmittedAt: now.UTC(),
	})

	return &Result{
		Review:   *updated,
		NextItem: sc.Current(),
		Hint:     hint,
		Injected: injected,
		Signal:   signal,
		State:    ctrl.StateOf(domain),
	}, nil
}

// applySchedule loads (or creates) the review state for (user, item), runs
// the scheduler and persists the result. The compare-and-swap loop absorbs
// the rare concurrent flush after a crash-recovery reload: on a lost race
// the state reloads and the outcome re-applies against the fresher base.
func (p *Pipeline) applySchedule(ctx context.Context, userID uuid.UUID, item *store.QueueItem, outcome scheduler.Outcome, now time.Time) (*types.ReviewState, error) {
	cur, err := p.reviews.GetByUserItem(ctx, nil, userID, item.ItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: review load: %v", ErrStoreUnavailable, err)
	}
	if cur == nil {
		fresh := types.ReviewState{
			ID:         uuid.New(),
			UserID:     userID,
			ItemID:     item.ItemID,
			Domain:     item.Domain,
			Difficulty: item.Difficulty,
		}
		updated := p.sched.Schedule(fresh, outcome, now)
		if err := p.reviews.Create(ctx, nil, &updated); err != nil {
			return nil, fmt.Errorf("%w: review create: %v", ErrStoreUnavailable, err)
		}
		return &updated, nil
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		updated := p.sched.Schedule(*cur, outcome, now)
		ok, err := p.reviews.UpdateCAS(ctx, nil, &updated)
		if err != nil {
			return nil, fmt.Errorf("%w: review update: %v", ErrStoreUnavailable, err)
		}
		if ok {
			return &updated, nil
		}
		cur, err = p.reviews.GetByUserItem(ctx, nil, userID, item.ItemID)
		if err != nil || cur == nil {
			return nil, fmt.Errorf("%w: review reload after lost CAS: %v", ErrStoreUnavailable, err)
		}
	}
	return nil, fmt.Errorf("%w: review CAS retries exhausted for item %s", ErrStoreUnavailable, item.ItemID)
}

// inject appends controller-selected items behind the cursor, skipping any
// already queued. Injected items are due immediately so remediation or
// escalation surfaces on the next pick.
func (p *Pipeline) inject(sc *store.SessionContext, items []*types.LearningItem, now time.Time) int {
	if len(items) == 0 {
		return 0
	}
	present := map[uuid.UUID]bool{}
	for _, q := range sc.Queue {
		present[q.ItemID] = true
	}
	injected := 0
	for _, item := range items {
		if item == nil || present[item.ID] {
			continue
		}
		sc.Queue = append(sc.Queue, store.QueueItem{
			ItemID:     item.ID,
			Domain:     item.Domain,
			Difficulty: item.Difficulty,
			PayloadRef: item.PayloadRef,
			NextDueAt:  now.UTC(),
			Injected:   true,
		})
		present[item.ID] = true
		injected++
	}
	return injected
}

func queueItemIDs(queue []store.QueueItem) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(queue))
	for _, q := range queue {
		out = append(out, q.ItemID)
	}
	return out
}

// SortTail orders the unconsumed part of the queue: ascending next-due,
// ties broken by ascending stability so the shakiest item surfaces first.
func SortTail(queue []store.QueueItem, from int) {
	if from < 0 {
		from = 0
	}
	if from >= len(queue) {
		return
	}
	tail := queue[from:]
	sort.SliceStable(tail, func(i, j int) bool {
		if !tail[i].NextDueAt.Equal(tail[j].NextDueAt) {
			return tail[i].NextDueAt.Before(tail[j].NextDueAt)
		}
		return tail[i].StabilityDays < tail[j].StabilityDays
	})
}
