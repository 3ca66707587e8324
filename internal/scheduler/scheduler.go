package scheduler

import (
	"strings"
	"time"

	"github.com/yungbote/linguabridge-backend/internal/types"
)

// Outcome classifies a reviewed interaction.
type Outcome int

const (
	OutcomeIncorrect Outcome = iota
	OutcomePartial
	OutcomeCorrect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomePartial:
		return "partial"
	default:
		return "incorrect"
	}
}

// ParseOutcome maps the wire string to an Outcome. Unknown values parse as
// incorrect with ok=false.
func ParseOutcome(s string) (Outcome, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "correct":
		return OutcomeCorrect, true
	case "partial":
		return OutcomePartial, true
	case "incorrect":
		return OutcomeIncorrect, true
	default:
		return OutcomeIncorrect, false
	}
}

// Scheduler computes the next review of an item from its repetition
// history. All methods are pure: no I/O, no clock reads, no mutation of
// the input state.
type Scheduler struct {
	p Params
}

func New(p Params) *Scheduler {
	return &Scheduler{p: p.normalized()}
}

// Schedule applies one outcome to a review state and returns the updated
// copy. Total over all inputs: out-of-range stability or difficulty is
// clamped, never rejected.
//
// Correct outcomes multiply stability by a factor interpolated from the
// difficulty factor (harder items grow slower, floor GrowthFloor) and
// nudge difficulty down. Partial credit grows stability the same way but
// leaves difficulty alone. A lapse resets stability to the floor interval,
// bumps the lapse counter and pushes difficulty up.
func (s *Scheduler) Schedule(cur types.ReviewState, outcome Outcome, now time.Time) types.ReviewState {
	now = now.UTC()
	next := cur

	difficulty := clamp(cur.Difficulty, s.p.MinDifficulty, s.p.MaxDifficulty)
	stability := clamp(cur.StabilityDays, 0, s.p.MaxStabilityDays)

	switch outcome {
	case OutcomeCorrect, OutcomePartial:
		if cur.Reps == 0 || stability <= 0 {
			stability = s.p.InitialStabilityDays
		} else {
			stability = clamp(stability*s.growth(difficulty), s.p.StabilityFloorDays, s.p.MaxStabilityDays)
		}
		if outcome == OutcomeCorrect {
			difficulty = clamp(difficulty-s.p.EasyStep, s.p.MinDifficulty, s.p.MaxDifficulty)
		}
	default:
		stability = s.p.StabilityFloorDays
		difficulty = clamp(difficulty+s.p.HardStep, s.p.MinDifficulty, s.p.MaxDifficulty)
		next.Lapses = cur.Lapses + 1
	}

	next.StabilityDays = stability
	next.Difficulty = difficulty
	next.Reps = cur.Reps + 1
	reviewed := now
	next.LastReviewedAt = &reviewed
	next.NextDueAt = now.Add(days(stability))
	return next
}

// growth interpolates the stability multiplier from the difficulty factor:
// MinDifficulty maps to GrowthCeil, MaxDifficulty to GrowthFloor.
func (s *Scheduler) growth(difficulty float64) float64 {
	span := s.p.MaxDifficulty - s.p.MinDifficulty
	if span <= 0 {
		return s.p.GrowthFloor
	}
	t := (difficulty - s.p.MinDifficulty) / span
	return s.p.GrowthCeil - t*(s.p.GrowthCeil-s.p.GrowthFloor)
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(24*time.Hour))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
