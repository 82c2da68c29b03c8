package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vmlinuzx/rlmcore/pkg/governance"
	"github.com/vmlinuzx/rlmcore/pkg/llm"
	"github.com/vmlinuzx/rlmcore/pkg/memory"
)

// historyVerbatimTurns bounds how many recent turns are replayed in
// full; earlier turns are collapsed to an action+observation-head
// summary line, per the "last M turns verbatim" rule.
const historyVerbatimTurns = 6

const systemPreamble = `You navigate a code repository through a sandboxed interpreter instead of reading its source directly. On every turn, respond with exactly one of:

` + actionStart + `
<code to run in the sandbox>
` + actionEnd + `

` + finalStart + `
<your final answer to the task>
` + finalEnd + `

The sandbox predeclares "nav" with get_function, get_class, get_method, list_symbols, search_pattern, neighbors, read_span, and repo_overview, each returning a struct or list of structs describing source locations — never the source text itself except read_span. Where permitted, sub_session(task, context?) delegates a narrower question to a fresh child session and returns its answer as a string. Use print(...) inside an ACTION block to surface what you learn; only printed output and the repr of a variable named result are returned to you as the observation.`

// composePrompt assembles the message list for one model call: system
// preamble (with the action-format contract and any injected context
// blob names/sizes, never their bodies), compacted turn history, and
// the task.
func (s *Session) composePrompt(injectedContext map[string]string) []llm.Message {
	msgs := []llm.Message{llm.NewSystemMessage(s.preamble(injectedContext))}
	msgs = append(msgs, s.compactHistory()...)
	msgs = append(msgs, llm.NewUserMessage(s.task))
	return msgs
}

func (s *Session) preamble(injectedContext map[string]string) string {
	if len(injectedContext) == 0 {
		return systemPreamble
	}
	names := make([]string, 0, len(injectedContext))
	for name, blob := range injectedContext {
		names = append(names, fmt.Sprintf("%s (%d bytes)", name, len(blob)))
	}
	sort.Strings(names)
	return systemPreamble + "\n\nInjected context blobs available by name: " + strings.Join(names, ", ")
}

// compactHistory replays the most recent historyVerbatimTurns turns
// verbatim and collapses everything older into one summary message.
// Which turns count as "recent" is decided by memory.MaxEntries fed the
// turn list newest-first, so the entries it marks as exceeding the
// limit are the oldest ones — exactly the turns this method summarises
// instead of replaying.
func (s *Session) compactHistory() []llm.Message {
	if len(s.turns) == 0 {
		return nil
	}

	policy := memory.NewMaxEntries(historyVerbatimTurns)
	verbatim := make([]bool, len(s.turns))
	for i := len(s.turns) - 1; i >= 0; i-- {
		entry := memory.Entry{Key: "turn", CreatedAt: s.turns[i].StartTime}
		verbatim[i] = !policy.ShouldPrune(entry)
	}

	var summarized []governance.TurnRecord
	for i, t := range s.turns {
		if !verbatim[i] {
			summarized = append(summarized, t)
		}
	}

	var msgs []llm.Message
	if len(summarized) > 0 {
		msgs = append(msgs, llm.NewUserMessage(summarizeTurns(summarized)))
	}
	for i, t := range s.turns {
		if !verbatim[i] {
			continue
		}
		msgs = append(msgs, llm.NewAssistantMessage(replayAssistant(t)))
		msgs = append(msgs, llm.NewUserMessage(replayObservation(t)))
	}
	return msgs
}

func replayAssistant(t governance.TurnRecord) string {
	switch t.Kind {
	case governance.TurnFinal:
		return finalStart + "\n" + t.FinalAnswer + "\n" + finalEnd
	case governance.TurnMalformed:
		return "(response had neither a recognised ACTION nor FINAL block)"
	default:
		return actionStart + "\n" + t.ActionCode + "\n" + actionEnd
	}
}

func replayObservation(t governance.TurnRecord) string {
	if t.Kind == governance.TurnFinal {
		return "Session finalized."
	}
	if t.Kind == governance.TurnMalformed {
		return repairHint
	}
	if t.Error != "" {
		return "Observation: error (" + t.ObservationErrorKind + "): " + t.Error
	}
	return "Observation: " + t.Observation
}

func summarizeTurns(turns []governance.TurnRecord) string {
	var b strings.Builder
	b.WriteString("Earlier turns (summarised):\n")
	for _, t := range turns {
		b.WriteString(fmt.Sprintf("- turn %d: action=%q observation=%q\n",
			t.Index, head(t.ActionCode, 80), head(t.Observation, 80)))
	}
	return b.String()
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
