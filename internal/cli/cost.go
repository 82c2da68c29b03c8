package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/vmlinuzx/rlmcore/pkg/budget"
	"github.com/vmlinuzx/rlmcore/pkg/governance"
)

func (a *App) runCost(args []string) int {
	fs := flag.NewFlagSet("cost", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	jsonOutput := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	// No session ID: list all sessions with their own cost.
	if fs.NArg() == 0 {
		return a.listSessionCosts(*jsonOutput)
	}

	sessionID := fs.Arg(0)
	sum, err := governance.Load(".", sessionID)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		data, err := json.MarshalIndent(treeCosts(sum), "", "  ")
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		a.outf("%s\n", data)
		return 0
	}

	a.renderCostTable(sum)
	return 0
}

func (a *App) listSessionCosts(jsonOut bool) int {
	ids, err := governance.List(".")
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if len(ids) == 0 {
		a.outf("No sessions found. Run 'rlm run' first.\n")
		return 0
	}

	type sessionSummary struct {
		SessionID string  `json:"session_id"`
		State     string  `json:"state"`
		Cost      float64 `json:"cost_usd"`
	}

	var summaries []sessionSummary
	for _, id := range ids {
		sum, err := governance.Load(".", id)
		if err != nil {
			continue
		}
		summaries = append(summaries, sessionSummary{
			SessionID: sum.SessionID,
			State:     sum.State,
			Cost:      sum.Usage.CostUSDUsed,
		})
	}

	if jsonOut {
		data, _ := json.MarshalIndent(summaries, "", "  ")
		a.outf("%s\n", data)
		return 0
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION ID\tSTATE\tCOST")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t$%.6f\n", s.SessionID, s.State, s.Cost)
	}
	_ = w.Flush()
	return 0
}

// costNode is one session in a tree-cost report: its own usage plus its
// children's, so an operator can see where a deep sub_session chain's
// budget actually went.
type costNode struct {
	SessionID string      `json:"session_id"`
	Depth     int         `json:"depth"`
	Usage     budget.Usage `json:"usage"`
	Children  []costNode   `json:"children,omitempty"`
}

func treeCosts(sum *governance.SessionSummary) costNode {
	node := costNode{SessionID: sum.SessionID, Depth: sum.Depth, Usage: sum.Usage}
	for _, child := range sum.Children {
		node.Children = append(node.Children, treeCosts(&child))
	}
	return node
}

func (a *App) renderCostTable(sum *governance.SessionSummary) {
	a.outf("Session: %s\n\n", sum.SessionID)

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION ID\tDEPTH\tTOKENS\tCOST")
	a.printCostRow(w, treeCosts(sum))
	_ = w.Flush()
}

func (a *App) printCostRow(w *tabwriter.Writer, node costNode) {
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t$%.6f\n",
		node.SessionID, node.Depth, node.Usage.TokensUsed, node.Usage.CostUSDUsed)
	for _, child := range node.Children {
		a.printCostRow(w, child)
	}
}
