package eval

import (
	"context"
	"fmt"

	"github.com/vmlinuzx/rlmcore/pkg/session"
)

// CostWithin evaluates whether a session (and everything it spawned
// via sub_session) stayed within a USD budget.
type CostWithin struct {
	maxCostUSD float64
}

// NewCostWithin creates a CostWithin evaluator with the given budget.
func NewCostWithin(maxCostUSD float64) *CostWithin {
	return &CostWithin{maxCostUSD: maxCostUSD}
}

// Name returns "cost_within".
func (c *CostWithin) Name() string { return "cost_within" }

// Evaluate checks if result.Summary.Usage.CostUSDUsed <= maxCostUSD.
func (c *CostWithin) Evaluate(_ context.Context, result *session.Result) (Score, error) {
	cost := result.Summary.Usage.CostUSDUsed
	if cost <= c.maxCostUSD {
		return Score{
			Pass:   true,
			Value:  1.0,
			Reason: fmt.Sprintf("cost $%.6f within budget $%.6f", cost, c.maxCostUSD),
		}, nil
	}
	// Value is the budget divided by the cost, so it falls below 1 as the
	// overrun grows; it is 0 when the budget itself is 0.
	var value float64
	if c.maxCostUSD > 0 {
		value = c.maxCostUSD / cost
	}
	return Score{
		Pass:   false,
		Value:  value,
		Reason: fmt.Sprintf("cost $%.6f exceeds budget $%.6f", cost, c.maxCostUSD),
	}, nil
}
