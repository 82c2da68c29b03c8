package budget

import (
	"errors"
	"testing"
)

func testCaps() Caps {
	return Caps{
		MaxTokens:             1000,
		MaxCostUSD:            1.0,
		MaxTurns:              5,
		MaxWallMS:             60_000,
		MaxSubcallDepth:       2,
		MaxSubcallsPerSession: 3,
	}
}

func TestAdmitModelCall_TokenDenied(t *testing.T) {
	b := NewRoot("root", testCaps())
	g := New()

	if err := g.AdmitModelCall(b, 500, 0, 0); err != nil {
		t.Fatalf("expected admit, got %v", err)
	}
	b.RecordModelCall(500, 0, 0, 0)

	err := g.AdmitModelCall(b, 600, 0, 0)
	var denied *Denied
	if !errors.As(err, &denied) || denied.Reason != ReasonTokens {
		t.Fatalf("expected ReasonTokens, got %v", err)
	}
}

func TestAdmitModelCall_TurnsDenied(t *testing.T) {
	caps := testCaps()
	caps.MaxTurns = 1
	b := NewRoot("root", caps)
	g := New()

	if err := g.AdmitModelCall(b, 1, 0, 0); err != nil {
		t.Fatalf("expected admit, got %v", err)
	}
	b.RecordModelCall(1, 0, 0, 0)

	err := g.AdmitModelCall(b, 1, 0, 0)
	var denied *Denied
	if !errors.As(err, &denied) || denied.Reason != ReasonTurns {
		t.Fatalf("expected ReasonTurns, got %v", err)
	}
}

func TestAdmitSubSession_DepthZeroDeniesAll(t *testing.T) {
	caps := testCaps()
	caps.MaxSubcallDepth = 0
	b := NewRoot("root", caps)
	g := New()

	err := g.AdmitSubSession(b, 1, 0, 0)
	var denied *Denied
	if !errors.As(err, &denied) || denied.Reason != ReasonDepth {
		t.Fatalf("expected ReasonDepth, got %v", err)
	}
}

func TestAdmitSubSession_SiblingsDenied(t *testing.T) {
	b := NewRoot("root", testCaps())
	g := New()

	for i := 0; i < 3; i++ {
		if err := g.AdmitSubSession(b, 1, 0, 0); err != nil {
			t.Fatalf("sub-session %d: expected admit, got %v", i, err)
		}
		b.RecordSubcallSpawn()
	}

	err := g.AdmitSubSession(b, 1, 0, 0)
	var denied *Denied
	if !errors.As(err, &denied) || denied.Reason != ReasonSiblings {
		t.Fatalf("expected ReasonSiblings, got %v", err)
	}
}

func TestMintChild_CapsWithinParentRemaining(t *testing.T) {
	b := NewRoot("root", testCaps())
	b.RecordModelCall(400, 0, 0.4, 0)

	g := New()
	child := g.MintChild(b, "child-1")

	remTokens := b.RemainingTokens()
	remCost := b.RemainingCostUSD()

	if child.Caps.MaxTokens > remTokens {
		t.Fatalf("child token cap %d exceeds parent remaining %d", child.Caps.MaxTokens, remTokens)
	}
	if child.Caps.MaxCostUSD > remCost {
		t.Fatalf("child cost cap %f exceeds parent remaining %f", child.Caps.MaxCostUSD, remCost)
	}
	if child.Depth != b.Depth+1 {
		t.Fatalf("expected child depth %d, got %d", b.Depth+1, child.Depth)
	}
	if child.Caps.MaxTurns != b.Caps.MaxTurns-1 {
		t.Fatalf("expected child max turns %d, got %d", b.Caps.MaxTurns-1, child.Caps.MaxTurns)
	}
	if child.Caps.MaxSubcallDepth != b.Caps.MaxSubcallDepth-1 {
		t.Fatalf("expected child max depth %d, got %d", b.Caps.MaxSubcallDepth-1, child.Caps.MaxSubcallDepth)
	}
}

func TestFinalize_RollsUpChildUsageIntoParent(t *testing.T) {
	b := NewRoot("root", testCaps())
	g := New()
	child := g.MintChild(b, "child-1")

	child.RecordModelCall(10, 20, 0.01, 0)
	g.Finalize(child)

	usage := b.Snapshot()
	if usage.TokensUsed != 30 {
		t.Fatalf("expected parent tokens_used 30 after roll-up, got %d", usage.TokensUsed)
	}
	if usage.CostUSDUsed != 0.01 {
		t.Fatalf("expected parent cost_usd_used 0.01 after roll-up, got %f", usage.CostUSDUsed)
	}
}
