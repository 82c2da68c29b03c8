package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vmlinuzx/rlmcore/pkg/budget"
	"github.com/vmlinuzx/rlmcore/pkg/governance"
)

func saveCostTestSummary(t *testing.T, dir string) {
	t.Helper()
	sum := &governance.SessionSummary{
		SessionID: "cost-session-001",
		State:     "finalized",
		Usage:     budget.Usage{TokensUsed: 564, CostUSDUsed: 0.003280},
		Children: []governance.SessionSummary{
			{
				SessionID: "cost-session-001-child",
				ParentID:  "cost-session-001",
				Depth:     1,
				State:     "finalized",
				Usage:     budget.Usage{TokensUsed: 120, CostUSDUsed: 0.000800},
			},
		},
		StartTime: time.Now(),
		Duration:  3 * time.Second,
	}
	if err := governance.Save(dir, sum); err != nil {
		t.Fatal(err)
	}
}

func TestRunCost_Table(t *testing.T) {
	dir := t.TempDir()
	saveCostTestSummary(t, dir)

	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runCost([]string{"cost-session-001"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "cost-session-001") {
		t.Error("expected session ID")
	}
	if !strings.Contains(out, "cost-session-001-child") {
		t.Error("expected the nested child session's row")
	}
	if !strings.Contains(out, "SESSION ID") {
		t.Error("expected table header")
	}
}

func TestRunCost_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	saveCostTestSummary(t, dir)

	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runCost([]string{"-json", "cost-session-001"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, `"session_id"`) {
		t.Error("expected JSON with session_id field")
	}
	if !strings.Contains(out, `"children"`) {
		t.Error("expected JSON with nested children")
	}
}

func TestRunCost_MissingSessionID(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runCost([]string{"nonexistent"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunCost_NoArgs_ListAll(t *testing.T) {
	dir := t.TempDir()
	saveCostTestSummary(t, dir)

	orig, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(orig) }()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runCost(nil)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "cost-session-001") {
		t.Error("expected session ID in list")
	}
}
