package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/linguabridge-backend/internal/adaptive"
	"github.com/yungbote/linguabridge-backend/internal/analytics"
	"github.com/yungbote/linguabridge-backend/internal/content"
	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/pipeline"
	"github.com/yungbote/linguabridge-backend/internal/repos"
	"github.com/yungbote/linguabridge-backend/internal/scheduler"
	"github.com/yungbote/linguabridge-backend/internal/store"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

type harness struct {
	svc      SessionService
	store    store.Store
	reviews  repos.ReviewStateRepo
	items    repos.LearningItemRepo
	events   repos.InteractionEventRepo
	sessions repos.SessionRecordRepo
	pl       *pipeline.Pipeline
	log      *logger.Logger
	cfg      SessionConfig
	userID   uuid.UUID
}

func newHarness(t *testing.T) *harness {
	return newHarnessCfg(t, nil)
}

func newHarnessCfg(t *testing.T, mutate func(*SessionConfig)) *harness {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "session_test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.LearningItem{},
		&types.ReviewState{},
		&types.SessionRecord{},
		&types.InteractionEvent{},
	))

	reviews := repos.NewReviewStateRepo(db, log)
	items := repos.NewLearningItemRepo(db, log)
	events := repos.NewInteractionEventRepo(db, log)
	sessions := repos.NewSessionRecordRepo(db, log)
	provider := content.NewCatalogProvider(log, items)

	st := store.NewTwoTierStore(log, store.Config{FlushRetries: 2, FlushBackoff: 5 * time.Millisecond}, sessions)
	pl := pipeline.New(log, scheduler.New(scheduler.DefaultParams()), reviews, events, analytics.NewNoopSink())

	cfg := DefaultSessionConfig()
	cfg.JanitorInterval = time.Hour // keep the janitor out of the way
	if mutate != nil {
		mutate(&cfg)
	}
	svc := NewSessionService(log, cfg, st, pl, reviews, items, events, sessions, provider)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	return &harness{
		svc:      svc,
		store:    st,
		reviews:  reviews,
		items:    items,
		events:   events,
		sessions: sessions,
		pl:       pl,
		log:      log,
		cfg:      cfg,
		userID:   uuid.New(),
	}
}

// restart models a process restart: a fresh fast tier and service over the
// same durable tier. Anything not flushed before the call is gone.
func (h *harness) restart(t *testing.T) SessionService {
	t.Helper()
	st := store.NewTwoTierStore(h.log, store.Config{FlushRetries: 2, FlushBackoff: 5 * time.Millisecond}, h.sessions)
	provider := content.NewCatalogProvider(h.log, h.items)
	svc := NewSessionService(h.log, h.cfg, st, h.pl, h.reviews, h.items, h.events, h.sessions, provider)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

// seedDueItem creates a catalog item plus a due review state for the user.
func (h *harness) seedDueItem(t *testing.T, domain string, difficulty float64, dueAgo time.Duration) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	item := &types.LearningItem{ID: uuid.New(), Domain: domain, Difficulty: difficulty, PayloadRef: "p/" + domain, Active: true}
	_, err := h.items.Create(ctx, nil, []*types.LearningItem{item})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, h.reviews.Create(ctx, nil, &types.ReviewState{
		ID:            uuid.New(),
		UserID:        h.userID,
		ItemID:        item.ID,
		Domain:        domain,
		Reps:          1,
		StabilityDays: 1,
		Difficulty:    difficulty,
		NextDueAt:     now.Add(-dueAgo),
	}))
	return item.ID
}

func TestStartSessionBuildsDueQueue(t *testing.T) {
	h := newHarness(t)
	h.seedDueItem(t, "greetings", 1.0, 2*time.Hour)
	h.seedDueItem(t, "greetings", 1.5, time.Hour)

	view, err := h.svc.StartSession(context.Background(), StartSessionInput{
		UserID:  h.userID,
		Domains: []string{"Greetings"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, view.QueueLength)
	require.NotNil(t, view.NextItem)
	require.Equal(t, types.SessionStatusActive, view.Status)
	require.Equal(t, []string{"greetings"}, view.Domains)
}

func TestStartSessionNoDueItems(t *testing.T) {
	h := newHarness(t)

	view, err := h.svc.StartSession(context.Background(), StartSessionInput{
		UserID:  h.userID,
		Domains: []string{"greetings"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, view.QueueLength)
	require.Nil(t, view.NextItem)

	// The empty session still exists and can be resumed.
	again, err := h.svc.ResumeSession(context.Background(), view.SessionID)
	require.NoError(t, err)
	require.Equal(t, view.SessionID, again.SessionID)
}

func TestStartSessionExtraCurricular(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Catalog content exists but nothing is due for this user.
	_, err := h.items.Create(ctx, nil, []*types.LearningItem{
		{ID: uuid.New(), Domain: "greetings", Difficulty: 1.0, PayloadRef: "p/1", Active: true},
		{ID: uuid.New(), Domain: "greetings", Difficulty: 2.0, PayloadRef: "p/2", Active: true},
	})
	require.NoError(t, err)

	view, err := h.svc.StartSession(ctx, StartSessionInput{
		UserID:          h.userID,
		Domains:         []string{"greetings"},
		ExtraCurricular: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, view.QueueLength)
	require.NotNil(t, view.NextItem)
	require.True(t, view.NextItem.Injected)
}

func TestInteractAdvancesAndPersists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	itemID := h.seedDueItem(t, "greetings", 1.0, time.Hour)

	view, err := h.svc.StartSession(ctx, StartSessionInput{UserID: h.userID, Domains: []string{"greetings"}})
	require.NoError(t, err)
	require.Equal(t, itemID, view.NextItem.ItemID)

	resp, err := h.svc.Interact(ctx, view.SessionID, InteractInput{
		ItemID:    itemID,
		Outcome:   "correct",
		LatencyMs: 2000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.Seq)
	require.Nil(t, resp.NextItem, "single-item queue is exhausted")
	require.False(t, resp.Degraded)

	// The scheduled review moved into the future.
	rs, err := h.reviews.GetByUserItem(ctx, nil, h.userID, itemID)
	require.NoError(t, err)
	require.True(t, rs.NextDueAt.After(time.Now().UTC()))
}

func TestInteractUnknownSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Interact(context.Background(), uuid.New(), InteractInput{
		ItemID:  uuid.New(),
		Outcome: "correct",
	})
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestPauseBlocksInteractions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	itemID := h.seedDueItem(t, "greetings", 1.0, time.Hour)

	view, err := h.svc.StartSession(ctx, StartSessionInput{UserID: h.userID, Domains: []string{"greetings"}})
	require.NoError(t, err)

	require.NoError(t, h.svc.PauseSession(ctx, view.SessionID))
	_, err = h.svc.Interact(ctx, view.SessionID, InteractInput{ItemID: itemID, Outcome: "correct"})
	require.ErrorIs(t, err, ErrSessionPaused)

	resumed, err := h.svc.ResumeSession(ctx, view.SessionID)
	require.NoError(t, err)
	require.Equal(t, types.SessionStatusActive, resumed.Status)

	_, err = h.svc.Interact(ctx, view.SessionID, InteractInput{ItemID: itemID, Outcome: "correct"})
	require.NoError(t, err)
}

func TestResumeIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedDueItem(t, "greetings", 1.0, time.Hour)

	view, err := h.svc.StartSession(ctx, StartSessionInput{UserID: h.userID, Domains: []string{"greetings"}})
	require.NoError(t, err)

	first, err := h.svc.ResumeSession(ctx, view.SessionID)
	require.NoError(t, err)
	second, err := h.svc.ResumeSession(ctx, view.SessionID)
	require.NoError(t, err)
	require.Equal(t, encode(t, first), encode(t, second))
}

func encode(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestResumeAfterEvictionReconstructsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	itemID := h.seedDueItem(t, "greetings", 1.0, time.Hour)
	h.seedDueItem(t, "greetings", 2.0, time.Minute)

	view, err := h.svc.StartSession(ctx, StartSessionInput{UserID: h.userID, Domains: []string{"greetings"}})
	require.NoError(t, err)

	_, err = h.svc.Interact(ctx, view.SessionID, InteractInput{ItemID: itemID, Outcome: "partial", LatencyMs: 3000})
	require.NoError(t, err)

	before, err := h.svc.ResumeSession(ctx, view.SessionID)
	require.NoError(t, err)

	// Simulate the idle janitor: flush and drop the fast-tier entry.
	require.NoError(t, h.store.Evict(ctx, view.SessionID))

	after, err := h.svc.ResumeSession(ctx, view.SessionID)
	require.NoError(t, err)
	require.Equal(t, encode(t, before), encode(t, after), "read-through must reconstruct identical state")
}

// A bounded replay must start from the newest events: a learner whose last
// window was all correct comes back with that recovery intact, not the
// struggling state from the start of the session.
func TestControllerRebuildReplaysRecentEvents(t *testing.T) {
	h := newHarnessCfg(t, func(cfg *SessionConfig) { cfg.ReplayLimit = 5 })
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		h.seedDueItem(t, "greetings", 1.0, time.Duration(i+1)*time.Minute)
	}

	view, err := h.svc.StartSession(ctx, StartSessionInput{UserID: h.userID, Domains: []string{"greetings"}})
	require.NoError(t, err)
	require.Equal(t, 12, view.QueueLength)

	next := view.NextItem
	var last *InteractResponse
	for i := 0; i < 10; i++ {
		outcome := "incorrect"
		if i >= 5 {
			outcome = "correct"
		}
		require.NotNil(t, next)
		last, err = h.svc.Interact(ctx, view.SessionID, InteractInput{ItemID: next.ItemID, Outcome: outcome, LatencyMs: 1000})
		require.NoError(t, err)
		next = last.NextItem
	}
	require.InDelta(t, 1.0, last.Signal, 1e-9)

	require.NoError(t, h.store.Evict(ctx, view.SessionID))
	restarted := h.restart(t)

	resumed, err := restarted.ResumeSession(ctx, view.SessionID)
	require.NoError(t, err)
	require.NotNil(t, resumed.NextItem)

	resp, err := restarted.Interact(ctx, view.SessionID, InteractInput{ItemID: resumed.NextItem.ItemID, Outcome: "correct", LatencyMs: 1000})
	require.NoError(t, err)
	require.InDelta(t, 1.0, resp.Signal, 1e-9)
	require.NotEqual(t, adaptive.StateStruggling.String(), resp.State)
}

func TestEndSessionSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.seedDueItem(t, "greetings", 1.0, 2*time.Hour)
	b := h.seedDueItem(t, "greetings", 1.5, time.Hour)

	view, err := h.svc.StartSession(ctx, StartSessionInput{UserID: h.userID, Domains: []string{"greetings"}})
	require.NoError(t, err)
	require.Equal(t, 2, view.QueueLength)

	firstID := view.NextItem.ItemID
	secondID := a
	if firstID == a {
		secondID = b
	}

	_, err = h.svc.Interact(ctx, view.SessionID, InteractInput{ItemID: firstID, Outcome: "correct", LatencyMs: 1500})
	require.NoError(t, err)
	_, err = h.svc.Interact(ctx, view.SessionID, InteractInput{ItemID: secondID, Outcome: "incorrect", LatencyMs: 9000})
	require.NoError(t, err)

	summary, err := h.svc.EndSession(ctx, view.SessionID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Interactions)
	require.Equal(t, 1, summary.Correct)
	require.Equal(t, 1, summary.Incorrect)
	require.Equal(t, 0.5, summary.Accuracy)
	require.Contains(t, summary.Signals, "greetings")

	// Ended sessions reject further operations.
	_, err = h.svc.Interact(ctx, view.SessionID, InteractInput{ItemID: a, Outcome: "correct"})
	require.ErrorIs(t, err, ErrSessionEnded)
	_, err = h.svc.ResumeSession(ctx, view.SessionID)
	require.ErrorIs(t, err, ErrSessionEnded)
}
