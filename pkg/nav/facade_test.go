package nav_test

import (
	"context"
	"testing"

	"github.com/vmlinuzx/rlmcore/pkg/nav"
	"github.com/vmlinuzx/rlmcore/pkg/nav/navtest"
)

func TestGetFunction_ExactQualifiedWins(t *testing.T) {
	idx := navtest.New()
	idx.AddSpan(nav.CodeSpan{Path: "a.go", StartLine: 1, EndLine: 2, Kind: nav.KindFunction, Symbol: "pkg.Run"}, "func Run() {}")
	idx.AddSpan(nav.CodeSpan{Path: "b.go", StartLine: 1, EndLine: 2, Kind: nav.KindFunction, Symbol: "other.Run"}, "func Run() {}")

	snap := nav.NewSnapshot(idx, "/repo")
	f := nav.New(snap)

	span, err := f.GetFunction(context.Background(), "pkg.Run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span == nil || span.Path != "a.go" {
		t.Fatalf("expected a.go, got %+v", span)
	}
}

func TestGetFunction_UnqualifiedAmbiguityResolvedByPathDepth(t *testing.T) {
	idx := navtest.New()
	idx.AddSpan(nav.CodeSpan{Path: "deep/nested/pkg.go", StartLine: 1, EndLine: 2, Kind: nav.KindFunction, Symbol: "pkg.Helper"}, "func Helper() {}")
	idx.AddSpan(nav.CodeSpan{Path: "pkg.go", StartLine: 5, EndLine: 6, Kind: nav.KindFunction, Symbol: "top.Helper"}, "func Helper() {}")

	snap := nav.NewSnapshot(idx, "/repo")
	f := nav.New(snap)

	span, err := f.GetFunction(context.Background(), "Helper")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span == nil || span.Path != "pkg.go" {
		t.Fatalf("expected the shallower pkg.go, got %+v", span)
	}
}

func TestGetFunction_NoMatchReturnsNil(t *testing.T) {
	idx := navtest.New()
	snap := nav.NewSnapshot(idx, "/repo")
	f := nav.New(snap)

	span, err := f.GetFunction(context.Background(), "Missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span != nil {
		t.Fatalf("expected nil, got %+v", span)
	}
}

func TestReadSpan_StaleDigestMismatch(t *testing.T) {
	idx := navtest.New()
	span := idx.AddSpan(nav.CodeSpan{Path: "a.go", StartLine: 1, EndLine: 2, Kind: nav.KindFunction, Symbol: "pkg.Run"}, "func Run() {}")

	snap := nav.NewSnapshot(idx, "/repo")
	f := nav.New(snap)

	idx.SetDigest(span, "changed-digest")

	_, err := f.ReadSpan(context.Background(), span)
	if err == nil {
		t.Fatal("expected stale error")
	}
	if e, ok := err.(*nav.Error); !ok || e.Kind != nav.Stale {
		t.Fatalf("expected nav.Stale, got %v", err)
	}
}

func TestReadSpan_DenylistGlob(t *testing.T) {
	idx := navtest.New()
	span := idx.AddSpan(nav.CodeSpan{Path: "secrets/creds.go", StartLine: 1, EndLine: 1, Kind: nav.KindModule, Symbol: "secrets"}, "secret")

	snap := nav.NewSnapshot(idx, "/repo")
	f := nav.New(snap, nav.WithDenylistGlobs([]string{"secrets/**"}))

	_, err := f.ReadSpan(context.Background(), span)
	if err == nil {
		t.Fatal("expected denylist error")
	}
}

func TestSnapshotInvalidate_MakesFacadeStale(t *testing.T) {
	idx := navtest.New()
	idx.AddSpan(nav.CodeSpan{Path: "a.go", StartLine: 1, EndLine: 2, Kind: nav.KindFunction, Symbol: "pkg.Run"}, "func Run() {}")

	snap := nav.NewSnapshot(idx, "/repo")
	f := nav.New(snap)
	snap.Invalidate()

	_, err := f.GetFunction(context.Background(), "pkg.Run")
	if err == nil {
		t.Fatal("expected stale error after invalidate")
	}
}
