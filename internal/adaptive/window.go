package adaptive

import (
	"time"

	"github.com/yungbote/linguabridge-backend/internal/scheduler"
)

// Window is a fixed-size sliding window of per-event effectiveness scores
// for one skill domain. Not safe for concurrent use; a session's events
// are applied by a single writer.
type Window struct {
	size   int
	scores []float64
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, scores: make([]float64, 0, size)}
}

func (w *Window) Add(score float64) {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	if len(w.scores) == w.size {
		copy(w.scores, w.scores[1:])
		w.scores[len(w.scores)-1] = score
		return
	}
	w.scores = append(w.scores, score)
}

// Signal is the mean score over the window, in [0,1]. Empty windows report
// a neutral 1.0 so a fresh domain never starts out "struggling".
func (w *Window) Signal() float64 {
	if len(w.scores) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, s := range w.scores {
		sum += s
	}
	return sum / float64(len(w.scores))
}

func (w *Window) Len() int { return len(w.scores) }

func (w *Window) Full() bool { return len(w.scores) >= w.size }

const hesitationLatency = 10 * time.Second

// ScoreEvent collapses outcome, latency and hesitation into one [0,1]
// score. Correct answers given slowly lose up to 0.2: a right answer after
// a long stall is weaker evidence of recall than a quick one.
func ScoreEvent(outcome scheduler.Outcome, latency time.Duration) float64 {
	var base float64
	switch outcome {
	case scheduler.OutcomeCorrect:
		base = 1.0
	case scheduler.OutcomePartial:
		base = 0.5
	default:
		return 0.0
	}
	if latency <= hesitationLatency {
		return base
	}
	over := float64(latency-hesitationLatency) / float64(hesitationLatency)
	penalty := 0.2 * over
	if penalty > 0.2 {
		penalty = 0.2
	}
	score := base - penalty
	if score < 0 {
		score = 0
	}
	return score
}
