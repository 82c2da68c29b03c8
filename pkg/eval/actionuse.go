package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmlinuzx/rlmcore/pkg/governance"
	"github.com/vmlinuzx/rlmcore/pkg/session"
)

// ActionExpectation describes a nav facade call expected to appear in
// one of a session's ACTION turns, e.g. a call to nav.get_function or
// nav.search_pattern.
type ActionExpectation struct {
	// Call is the substring to look for in a turn's action code, such
	// as "nav.get_function" or "nav.read_span".
	Call string
	// MinCalls is the minimum number of ACTION turns whose code must
	// contain Call. 0 defaults to 1.
	MinCalls int
}

// ActionUse evaluates whether a session's turn history includes the
// expected nav facade calls.
type ActionUse struct {
	expectations []ActionExpectation
}

// NewActionUse creates an ActionUse evaluator with the given expectations.
func NewActionUse(expectations ...ActionExpectation) *ActionUse {
	return &ActionUse{expectations: expectations}
}

// Name returns "action_use".
func (au *ActionUse) Name() string { return "action_use" }

// Evaluate inspects result.Summary.Turns for ACTION turns whose code
// contains the expected nav facade calls.
func (au *ActionUse) Evaluate(_ context.Context, result *session.Result) (Score, error) {
	if len(au.expectations) == 0 {
		return Score{Pass: true, Value: 1.0, Reason: "no action expectations"}, nil
	}

	met := 0
	var unmet []string
	for _, exp := range au.expectations {
		minCalls := exp.MinCalls
		if minCalls <= 0 {
			minCalls = 1
		}
		got := countMatchingActions(result.Summary.Turns, exp.Call)
		if got >= minCalls {
			met++
		} else {
			unmet = append(unmet, fmt.Sprintf("%s (want >=%d, got %d)", exp.Call, minCalls, got))
		}
	}

	value := float64(met) / float64(len(au.expectations))
	if met == len(au.expectations) {
		return Score{
			Pass:   true,
			Value:  1.0,
			Reason: fmt.Sprintf("all %d action expectations met", len(au.expectations)),
		}, nil
	}
	return Score{
		Pass:   false,
		Value:  value,
		Reason: fmt.Sprintf("%d/%d expectations met, unmet: %v", met, len(au.expectations), unmet),
	}, nil
}

// countMatchingActions returns the number of ACTION turns whose code
// contains the given call substring.
func countMatchingActions(turns []governance.TurnRecord, call string) int {
	n := 0
	for _, turn := range turns {
		if turn.Kind == governance.TurnAction && strings.Contains(turn.ActionCode, call) {
			n++
		}
	}
	return n
}
