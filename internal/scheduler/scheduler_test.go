package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/types"
)

func newState(reps int, stability, difficulty float64) types.ReviewState {
	return types.ReviewState{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		ItemID:        uuid.New(),
		Domain:        "greetings",
		Reps:          reps,
		StabilityDays: stability,
		Difficulty:    difficulty,
	}
}

func TestScheduleFirstCorrectReview(t *testing.T) {
	s := New(DefaultParams())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := s.Schedule(newState(0, 0, 1.0), OutcomeCorrect, now)

	if got.StabilityDays != DefaultParams().InitialStabilityDays {
		t.Fatalf("stability=%v, want initial %v", got.StabilityDays, DefaultParams().InitialStabilityDays)
	}
	wantDue := now.Add(24 * time.Hour)
	if !got.NextDueAt.Equal(wantDue) {
		t.Fatalf("next due=%v, want %v", got.NextDueAt, wantDue)
	}
	if got.Reps != 1 {
		t.Fatalf("reps=%d, want 1", got.Reps)
	}
	if got.Lapses != 0 {
		t.Fatalf("lapses=%d, want 0", got.Lapses)
	}
}

func TestScheduleLapseResetsToFloor(t *testing.T) {
	p := DefaultParams()
	s := New(p)
	now := time.Now().UTC()

	cur := newState(4, 12.0, 2.0)
	got := s.Schedule(cur, OutcomeIncorrect, now)

	if got.StabilityDays != p.StabilityFloorDays {
		t.Fatalf("stability=%v, want floor %v", got.StabilityDays, p.StabilityFloorDays)
	}
	if got.Lapses != 1 {
		t.Fatalf("lapses=%d, want 1", got.Lapses)
	}
	if want := cur.Difficulty + p.HardStep; got.Difficulty != want {
		t.Fatalf("difficulty=%v, want %v", got.Difficulty, want)
	}
}

func TestScheduleOutcomes(t *testing.T) {
	p := DefaultParams()
	s := New(p)
	now := time.Now().UTC()

	cases := []struct {
		name            string
		cur             types.ReviewState
		outcome         Outcome
		wantStabilityUp bool
		wantDifficulty  func(before float64) float64
	}{
		{
			name:            "correct_grows_stability_and_eases_difficulty",
			cur:             newState(3, 4.0, 2.0),
			outcome:         OutcomeCorrect,
			wantStabilityUp: true,
			wantDifficulty:  func(d float64) float64 { return d - p.EasyStep },
		},
		{
			name:            "partial_grows_stability_but_keeps_difficulty",
			cur:             newState(3, 4.0, 2.0),
			outcome:         OutcomePartial,
			wantStabilityUp: true,
			wantDifficulty:  func(d float64) float64 { return d },
		},
		{
			name:            "incorrect_hardens_difficulty",
			cur:             newState(3, 4.0, 2.0),
			outcome:         OutcomeIncorrect,
			wantStabilityUp: false,
			wantDifficulty:  func(d float64) float64 { return d + p.HardStep },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Schedule(tc.cur, tc.outcome, now)
			if tc.wantStabilityUp && got.StabilityDays <= tc.cur.StabilityDays {
				t.Fatalf("stability %v -> %v, want growth", tc.cur.StabilityDays, got.StabilityDays)
			}
			if !tc.wantStabilityUp && got.StabilityDays > tc.cur.StabilityDays {
				t.Fatalf("stability %v -> %v, want reset", tc.cur.StabilityDays, got.StabilityDays)
			}
			if want := tc.wantDifficulty(tc.cur.Difficulty); got.Difficulty != want {
				t.Fatalf("difficulty=%v, want %v", got.Difficulty, want)
			}
			if !got.NextDueAt.After(now) {
				t.Fatalf("next due %v not after now %v", got.NextDueAt, now)
			}
		})
	}
}

func TestScheduleStabilityMonotoneUnderCorrectStreak(t *testing.T) {
	s := New(DefaultParams())
	now := time.Now().UTC()

	cur := newState(0, 0, 1.0)
	prev := 0.0
	for i := 0; i < 50; i++ {
		cur = s.Schedule(cur, OutcomeCorrect, now)
		if cur.StabilityDays < prev {
			t.Fatalf("stability dropped on correct streak at rep %d: %v -> %v", i, prev, cur.StabilityDays)
		}
		prev = cur.StabilityDays
		now = cur.NextDueAt
	}
	if cur.StabilityDays > DefaultParams().MaxStabilityDays {
		t.Fatalf("stability %v exceeds max %v", cur.StabilityDays, DefaultParams().MaxStabilityDays)
	}
}

func TestScheduleDifficultyClampUnderLapseStorm(t *testing.T) {
	p := DefaultParams()
	s := New(p)
	now := time.Now().UTC()

	cur := newState(1, 2.0, p.MaxDifficulty-0.1)
	for i := 0; i < 100; i++ {
		cur = s.Schedule(cur, OutcomeIncorrect, now)
		if cur.Difficulty > p.MaxDifficulty {
			t.Fatalf("difficulty %v above max %v after %d lapses", cur.Difficulty, p.MaxDifficulty, i+1)
		}
	}
	if cur.Lapses != 100 {
		t.Fatalf("lapses=%d, want 100", cur.Lapses)
	}
	if cur.Difficulty != p.MaxDifficulty {
		t.Fatalf("difficulty=%v, want clamped to %v", cur.Difficulty, p.MaxDifficulty)
	}
}

func TestScheduleTotalOverGarbageInput(t *testing.T) {
	p := DefaultParams()
	s := New(p)
	now := time.Now().UTC()

	cur := newState(7, -40.0, 99.0)
	got := s.Schedule(cur, OutcomeCorrect, now)

	if got.StabilityDays < p.StabilityFloorDays || got.StabilityDays > p.MaxStabilityDays {
		t.Fatalf("stability %v outside [%v, %v]", got.StabilityDays, p.StabilityFloorDays, p.MaxStabilityDays)
	}
	if got.Difficulty < p.MinDifficulty || got.Difficulty > p.MaxDifficulty {
		t.Fatalf("difficulty %v outside [%v, %v]", got.Difficulty, p.MinDifficulty, p.MaxDifficulty)
	}
}

func TestParseOutcome(t *testing.T) {
	cases := []struct {
		in     string
		want   Outcome
		wantOK bool
	}{
		{"correct", OutcomeCorrect, true},
		{" Partial ", OutcomePartial, true},
		{"INCORRECT", OutcomeIncorrect, true},
		{"meh", OutcomeIncorrect, false},
		{"", OutcomeIncorrect, false},
	}
	for _, tc := range cases {
		got, ok := ParseOutcome(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ParseOutcome(%q)=(%v,%v), want (%v,%v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}
