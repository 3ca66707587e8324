package adaptive

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/content"
	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/types"
)

// State is the per-domain machine state.
type State int

const (
	StateNominal State = iota
	StateStruggling
	StateAccelerating
)

func (s State) String() string {
	switch s {
	case StateStruggling:
		return "struggling"
	case StateAccelerating:
		return "accelerating"
	default:
		return "nominal"
	}
}

// Hint is the controller's advice to the pipeline.
type Hint int

const (
	HintHold Hint = iota
	HintRemediate
	HintEscalate
)

func (h Hint) String() string {
	switch h {
	case HintRemediate:
		return "remediate"
	case HintEscalate:
		return "escalate"
	default:
		return "hold"
	}
}

type Config struct {
	// Signal below LowThreshold over a full window flags a domain as
	// struggling; above HighThreshold for WindowSize consecutive events
	// flags it as accelerating.
	LowThreshold  float64
	HighThreshold float64
	WindowSize    int
	FetchBatch    int
	MinDifficulty float64
	MaxDifficulty float64
}

func DefaultConfig() Config {
	return Config{
		LowThreshold:  0.6,
		HighThreshold: 0.9,
		WindowSize:    5,
		FetchBatch:    3,
		MinDifficulty: 0.3,
		MaxDifficulty: 5.0,
	}
}

type domainState struct {
	window          *Window
	state           State
	aboveLowStreak  int
	aboveHighStreak int
}

// Controller decides, per skill domain, whether to escalate, hold or
// remediate. One controller per session; a session's events are applied by
// a single writer, so the struct carries no locking.
type Controller struct {
	log     *logger.Logger
	cfg     Config
	content content.Provider
	domains map[string]*domainState
}

func NewController(baseLog *logger.Logger, cfg Config, provider content.Provider) *Controller {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.FetchBatch < 1 {
		cfg.FetchBatch = DefaultConfig().FetchBatch
	}
	return &Controller{
		log:     baseLog.With("service", "AdaptiveController"),
		cfg:     cfg,
		content: provider,
		domains: map[string]*domainState{},
	}
}

func (c *Controller) domain(name string) *domainState {
	ds, ok := c.domains[name]
	if !ok {
		ds = &domainState{window: NewWindow(c.cfg.WindowSize), state: StateNominal}
		c.domains[name] = ds
	}
	return ds
}

// Observe feeds one scored event into the domain's window and runs the
// state machine. Returns the recomputed rolling signal.
//
// A single mistake never demotes a domain: the struggling transition
// requires a full window, and the accelerating transition requires the
// signal to hold above the high threshold for a full window of events.
func (c *Controller) Observe(domain string, score float64) float64 {
	ds := c.domain(domain)
	ds.window.Add(score)
	signal := ds.window.Signal()

	if signal >= c.cfg.LowThreshold {
		ds.aboveLowStreak++
	} else {
		ds.aboveLowStreak = 0
	}
	if signal > c.cfg.HighThreshold {
		ds.aboveHighStreak++
	} else {
		ds.aboveHighStreak = 0
	}

	prev := ds.state
	switch ds.state {
	case StateNominal:
		if ds.window.Full() && signal < c.cfg.LowThreshold {
			ds.state = StateStruggling
		} else if ds.aboveHighStreak >= c.cfg.WindowSize {
			ds.state = StateAccelerating
		}
	case StateStruggling:
		if ds.aboveLowStreak >= c.cfg.WindowSize {
			ds.state = StateNominal
		}
	case StateAccelerating:
		if signal <= c.cfg.HighThreshold {
			ds.state = StateNominal
		}
	}
	if ds.state != prev {
		c.log.Info("adaptive state transition",
			"domain", domain,
			"from", prev.String(),
			"to", ds.state.String(),
			"signal", signal)
	}
	return signal
}

// Signal reports the current rolling signal for a domain (neutral 1.0 when
// unseen).
func (c *Controller) Signal(domain string) float64 {
	ds, ok := c.domains[domain]
	if !ok {
		return 1.0
	}
	return ds.window.Signal()
}

func (c *Controller) StateOf(domain string) State {
	ds, ok := c.domains[domain]
	if !ok {
		return StateNominal
	}
	return ds.state
}

// Signals snapshots all observed domains.
func (c *Controller) Signals() map[string]float64 {
	out := make(map[string]float64, len(c.domains))
	for name, ds := range c.domains {
		out[name] = ds.window.Signal()
	}
	return out
}

// Advise maps the domain's state to a hint and, for remediate/escalate,
// fetches candidate items around baseDifficulty. A content fetch failure
// is recoverable: the controller logs degraded mode and holds the queue;
// it never propagates the error into the pipeline.
func (c *Controller) Advise(ctx context.Context, domain string, baseDifficulty float64, excludeIDs []uuid.UUID) (Hint, []*types.LearningItem) {
	ds := c.domain(domain)
	switch ds.state {
	case StateStruggling:
		max := baseDifficulty - 0.5
		if max < c.cfg.MinDifficulty {
			max = c.cfg.MinDifficulty
		}
		rng := content.DifficultyRange{Min: c.cfg.MinDifficulty, Max: max}
		items, err := c.content.FetchItems(ctx, domain, rng, excludeIDs, c.cfg.FetchBatch)
		if err != nil {
			c.log.Warn("remediation fetch failed, holding queue", "domain", domain, "error", err)
			return HintHold, nil
		}
		return HintRemediate, items
	case StateAccelerating:
		min := baseDifficulty + 0.5
		if min > c.cfg.MaxDifficulty {
			min = c.cfg.MaxDifficulty
		}
		rng := content.DifficultyRange{Min: min, Max: c.cfg.MaxDifficulty}
		items, err := c.content.FetchItems(ctx, domain, rng, excludeIDs, c.cfg.FetchBatch)
		if err != nil {
			c.log.Warn("escalation fetch failed, holding queue", "domain", domain, "error", err)
			return HintHold, nil
		}
		return HintEscalate, items
	default:
		return HintHold, nil
	}
}
