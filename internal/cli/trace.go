package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/vmlinuzx/rlmcore/pkg/governance"
)

func (a *App) runTrace(args []string) int {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jsonOutput := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	// No session ID: list recent sessions.
	if fs.NArg() == 0 {
		return a.listRecentSessions()
	}

	sessionID := fs.Arg(0)
	sum, err := governance.Load(".", sessionID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		data, err := json.MarshalIndent(sum.Turns, "", "  ")
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		a.outf("%s\n", data)
		return 0
	}

	a.renderTurnTree(sum)
	return 0
}

func (a *App) listRecentSessions() int {
	ids, err := governance.List(".")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if len(ids) == 0 {
		a.outf("No sessions found. Run 'rlm run' first.\n")
		return 0
	}

	a.outf("Recent sessions:\n")
	limit := 10
	if len(ids) < limit {
		limit = len(ids)
	}
	for _, id := range ids[:limit] {
		sum, err := governance.Load(".", id)
		if err != nil {
			a.outf("  %s (error loading)\n", id)
			continue
		}
		errMark := ""
		if sum.Error != "" {
			errMark = " [ERROR]"
		}
		a.outf("  %s  depth=%d  %s  %s%s\n",
			id, sum.Depth, sum.State, formatDuration(sum.Duration), errMark)
	}
	return 0
}

// renderTurnTree prints a session's own turn log followed by its nested
// sub_session children, recursing depth-first the same way a parent
// session's actual sub_session calls nested at runtime.
func (a *App) renderTurnTree(sum *governance.SessionSummary) {
	a.outf("Session: %s (depth %d)\n", sum.SessionID, sum.Depth)
	a.outf("State: %s | Duration: %s\n\n", sum.State, formatDuration(sum.Duration))

	if len(sum.Turns) == 0 {
		a.outf("(no turns recorded)\n")
	}
	for i, t := range sum.Turns {
		detail := turnDetail(t)
		a.outf("  [%d] %s (%s)%s\n", i, t.Kind, formatDuration(t.Duration), detail)
	}

	for _, child := range sum.Children {
		a.outf("\n--- sub_session %s ---\n", child.SessionID)
		a.renderTurnTree(&child)
	}
}

func turnDetail(t governance.TurnRecord) string {
	var parts []string
	if t.Usage.PromptTokens > 0 {
		parts = append(parts, fmt.Sprintf("prompt: %d", t.Usage.PromptTokens))
	}
	if t.Usage.CompletionTokens > 0 {
		parts = append(parts, fmt.Sprintf("completion: %d", t.Usage.CompletionTokens))
	}
	if t.Error != "" {
		parts = append(parts, "ERROR: "+t.Error)
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
