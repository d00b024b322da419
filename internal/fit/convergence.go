package fit

import (
	"log/slog"
	"math"
)

// StallConfig controls stall detection on a running fit's cost
// history.
type StallConfig struct {
	// Enabled controls whether stall detection is active
	Enabled bool

	// Patience is the number of reported improvements with no
	// significant progress before the fit counts as stalled
	Patience int

	// Threshold is the minimum relative improvement required to count
	// as progress. Relative improvement = (oldCost - newCost) / oldCost
	Threshold float64
}

// DefaultStallConfig returns sensible defaults for stall detection
func DefaultStallConfig() StallConfig {
	return StallConfig{
		Enabled:   true,
		Patience:  10,
		Threshold: 0.001, // 0.1% improvement
	}
}

// StallTracker watches the cost values a fit reports and flags when
// progress has dried up. The solver keeps running; the tracker only
// informs the caller so a long job can be surfaced or cancelled.
type StallTracker struct {
	config          StallConfig
	bestCost        float64
	lastSignificant float64
	updates         int
	staleCount      int
}

// NewStallTracker creates a new tracker with the given config
func NewStallTracker(config StallConfig) *StallTracker {
	return &StallTracker{
		config:          config,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a new best cost and returns true if the fit has
// stalled.
func (t *StallTracker) Update(cost float64) bool {
	if !t.config.Enabled {
		return false
	}

	t.updates++
	if cost < t.bestCost {
		t.bestCost = cost
	}

	// First cost initializes the baseline
	if t.updates == 1 {
		t.lastSignificant = cost
		return false
	}

	relativeImprovement := (t.lastSignificant - cost) / t.lastSignificant

	if relativeImprovement >= t.config.Threshold {
		t.lastSignificant = cost
		t.staleCount = 0
		return false
	}

	t.staleCount++
	slog.Debug("No significant cost improvement",
		"cost", cost,
		"last_significant", t.lastSignificant,
		"stale_count", t.staleCount,
		"patience", t.config.Patience,
	)

	return t.staleCount >= t.config.Patience
}

// BestCost returns the best cost seen so far
func (t *StallTracker) BestCost() float64 {
	return t.bestCost
}

// Stalled reports whether patience has been exhausted.
func (t *StallTracker) Stalled() bool {
	return t.config.Enabled && t.staleCount >= t.config.Patience
}
