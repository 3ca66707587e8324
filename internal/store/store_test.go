package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/repos"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	return log
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.LearningItem{},
		&types.ReviewState{},
		&types.SessionRecord{},
		&types.InteractionEvent{},
	))
	return db
}

func newTestStore(t *testing.T) (Store, repos.SessionRecordRepo) {
	t.Helper()
	log := testLogger(t)
	repo := repos.NewSessionRecordRepo(openTestDB(t), log)
	s := NewTwoTierStore(log, Config{FlushRetries: 2, FlushBackoff: 5 * time.Millisecond}, repo)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, repo
}

func sampleSession() *SessionContext {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &SessionContext{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Status:  types.SessionStatusActive,
		Domains: []string{"greetings", "grammar"},
		Queue: []QueueItem{
			{ItemID: uuid.New(), Domain: "greetings", Difficulty: 1.2, PayloadRef: "item/1", NextDueAt: now.Add(-time.Hour), StabilityDays: 2},
			{ItemID: uuid.New(), Domain: "grammar", Difficulty: 2.4, PayloadRef: "item/2", NextDueAt: now.Add(-time.Minute), StabilityDays: 1},
		},
		Effectiveness: map[string]float64{"greetings": 0.8},
		StartedAt:     now,
		LastActiveAt:  now,
	}
}

func TestPutIsImmediatelyVisible(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sc := sampleSession()
	require.NoError(t, s.Put(ctx, sc.ID, sc))

	got, err := s.Get(ctx, sc.ID)
	require.NoError(t, err)
	require.Equal(t, sc.ID, got.ID)
	require.Equal(t, 2, len(got.Queue))
}

// A Get racing a session's first Put must see either not-found or the
// complete context, never a half-initialized entry.
func TestConcurrentGetDuringFirstPut(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		sc := sampleSession()

		var (
			wg  sync.WaitGroup
			got *SessionContext
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				out, err := s.Get(ctx, sc.ID)
				if err != nil {
					continue
				}
				got = out
				return
			}
		}()

		require.NoError(t, s.Put(ctx, sc.ID, sc))
		wg.Wait()
		require.NotNil(t, got, "fast-tier hit returned nil context")
		require.Equal(t, sc.ID, got.ID)
	}
}

func TestGetUnknownSession(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFlushEvictReadThroughRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sc := sampleSession()
	sc.Cursor = 1
	sc.Interactions = 7
	sc.Seq = 7
	require.NoError(t, s.Put(ctx, sc.ID, sc))
	require.NoError(t, s.Flush(ctx, sc.ID))
	require.NoError(t, s.Evict(ctx, sc.ID))

	got, err := s.Get(ctx, sc.ID)
	require.NoError(t, err)
	require.Equal(t, sc.UserID, got.UserID)
	require.Equal(t, sc.Domains, got.Domains)
	require.Equal(t, sc.Cursor, got.Cursor)
	require.Equal(t, sc.Interactions, got.Interactions)
	require.Equal(t, sc.Seq, got.Seq)
	require.Equal(t, sc.Effectiveness, got.Effectiveness)
	require.Equal(t, len(sc.Queue), len(got.Queue))
	for i := range sc.Queue {
		require.Equal(t, sc.Queue[i].ItemID, got.Queue[i].ItemID)
		require.True(t, sc.Queue[i].NextDueAt.Equal(got.Queue[i].NextDueAt),
			"queue[%d] next due %v != %v", i, sc.Queue[i].NextDueAt, got.Queue[i].NextDueAt)
	}
}

func TestWriteBehindCoalescesAndFlushWaits(t *testing.T) {
	s, repo := newTestStore(t)
	ctx := context.Background()

	sc := sampleSession()
	for i := 0; i < 25; i++ {
		sc.Interactions = i
		require.NoError(t, s.Put(ctx, sc.ID, sc))
	}
	require.NoError(t, s.Flush(ctx, sc.ID))

	rec, err := repo.GetByID(ctx, nil, sc.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 24, rec.Interactions, "durable tier must hold the last accepted state after the barrier")
}

func TestIdleSessions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sc := sampleSession()
	require.NoError(t, s.Put(ctx, sc.ID, sc))

	require.Empty(t, s.IdleSessions(time.Now().Add(-time.Minute)))
	require.Len(t, s.IdleSessions(time.Now().Add(time.Minute)), 1)
}

type failingSessionRepo struct {
	mu    sync.Mutex
	fail  bool
	saved map[uuid.UUID]*types.SessionRecord
}

func (f *failingSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.saved[sessionID]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (f *failingSessionRepo) Upsert(ctx context.Context, tx *gorm.DB, record *types.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("durable store unreachable")
	}
	if f.saved == nil {
		f.saved = map[uuid.UUID]*types.SessionRecord{}
	}
	f.saved[record.ID] = record
	return nil
}

func (f *failingSessionRepo) PurgeEndedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestFlushExhaustionDegradesAndBlocksEviction(t *testing.T) {
	log := testLogger(t)
	repo := &failingSessionRepo{fail: true}
	s := NewTwoTierStore(log, Config{FlushRetries: 2, FlushBackoff: time.Millisecond}, repo)
	ctx := context.Background()

	sc := sampleSession()
	require.NoError(t, s.Put(ctx, sc.ID, sc))
	require.ErrorIs(t, s.Flush(ctx, sc.ID), ErrStoreDegraded)
	require.ErrorIs(t, s.Evict(ctx, sc.ID), ErrStoreDegraded)

	// Fast tier must survive a blocked eviction and report the degraded flag.
	got, err := s.Get(ctx, sc.ID)
	require.NoError(t, err)
	require.True(t, got.Degraded)

	// Durable tier recovers; the next write clears the path to eviction.
	repo.mu.Lock()
	repo.fail = false
	repo.mu.Unlock()
	got.Degraded = false
	require.NoError(t, s.Put(ctx, sc.ID, got))
	require.NoError(t, s.Evict(ctx, sc.ID))
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc := sampleSession()
			for j := 0; j < 20; j++ {
				sc.Interactions = j
				if err := s.Put(ctx, sc.ID, sc); err != nil {
					t.Error(err)
					return
				}
			}
			if err := s.Flush(ctx, sc.ID); err != nil {
				t.Error(err)
				return
			}
			got, err := s.Get(ctx, sc.ID)
			if err != nil {
				t.Error(err)
				return
			}
			if got.Interactions != 19 {
				t.Errorf("interactions=%d, want 19", got.Interactions)
			}
		}()
	}
	wg.Wait()
}
