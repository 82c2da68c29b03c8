// Package governance persists the per-turn and per-session record of a
// session tree's execution: every turn's action or final answer, the
// resources it consumed, and the finished session's overall summary.
// Records are stored as JSON files under .rlmcore/sessions/, mirroring
// the teacher's run-record persistence but scoped to a session instead
// of a single agent invocation, and nested to reflect parent/child
// sub_session trees.
package governance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmlinuzx/rlmcore/pkg/budget"
	"github.com/vmlinuzx/rlmcore/pkg/llm"
)

const sessionsDir = ".rlmcore/sessions"

// TurnKind classifies what a turn produced.
type TurnKind string

const (
	TurnAction       TurnKind = "action"
	TurnFinal        TurnKind = "final"
	TurnMalformed    TurnKind = "malformed"
	TurnBudgetDenied TurnKind = "budget_denied"
	TurnModelError   TurnKind = "model_error"
)

// TurnRecord captures everything observable about a single session turn.
type TurnRecord struct {
	Index      int       `json:"index"`
	Kind       TurnKind  `json:"kind"`
	StartTime  time.Time `json:"start_time"`
	Duration   time.Duration `json:"duration"`
	Usage      llm.Usage `json:"usage"`
	CostUSD    float64   `json:"cost_usd"`
	ActionCode string    `json:"action_code,omitempty"`
	Observation string   `json:"observation,omitempty"`
	ObservationErrorKind string `json:"observation_error_kind,omitempty"`
	FinalAnswer string   `json:"final_answer,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// SessionSummary captures the complete result of a session, including
// the finalized summaries of any child sub_session calls it spawned.
type SessionSummary struct {
	SessionID   string           `json:"session_id"`
	ParentID    string           `json:"parent_id,omitempty"`
	Depth       int              `json:"depth"`
	Task        string           `json:"task"`
	State       string           `json:"state"`
	FinalAnswer string           `json:"final_answer,omitempty"`
	Turns       []TurnRecord     `json:"turns"`
	Usage       budget.Usage     `json:"usage"`
	Children    []SessionSummary `json:"children,omitempty"`
	StartTime   time.Time        `json:"start_time"`
	Duration    time.Duration    `json:"duration"`
	Error       string           `json:"error,omitempty"`
}

// Save persists a summary to .rlmcore/sessions/<session-id>.json
// relative to baseDir.
func Save(baseDir string, sum *SessionSummary) error {
	if sum.SessionID == "" {
		return fmt.Errorf("governance: session ID is required")
	}

	dir := filepath.Join(baseDir, sessionsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("governance: create dir: %w", err)
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("governance: marshal: %w", err)
	}

	path := filepath.Join(dir, sum.SessionID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("governance: write: %w", err)
	}

	return nil
}

// Load reads a summary from .rlmcore/sessions/<sessionID>.json relative
// to baseDir.
func Load(baseDir, sessionID string) (*SessionSummary, error) {
	path := filepath.Join(baseDir, sessionsDir, sessionID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("governance: read %s: %w", sessionID, err)
	}

	var sum SessionSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("governance: unmarshal %s: %w", sessionID, err)
	}

	return &sum, nil
}

// List returns all session IDs sorted newest first. IDs are time-sortable
// (see internal/id), so lexicographic descending order gives newest first.
func List(baseDir string) ([]string, error) {
	dir := filepath.Join(baseDir, sessionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("governance: list: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".json" {
			ids = append(ids, name[:len(name)-len(ext)])
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
