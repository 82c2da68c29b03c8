// Package session implements the model-sandbox turn loop: the single
// recursive agent runtime a Policy and a pinned repository snapshot are
// handed to. A Session composes prompts, submits turns to an llm.Provider,
// parses the ACTION/FINAL action-block protocol out of the response,
// executes ACTION blocks in a Sandbox, and — for sub_session() calls
// issued from inside an action block — spawns and runs a child Session
// to completion against a Budget minted by the Governor. The loop itself
// is adapted from the teacher's agent turn loop (pkg/agent/run.go), with
// tool-call dispatch replaced by action-block dispatch.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vmlinuzx/rlmcore/internal/id"
	"github.com/vmlinuzx/rlmcore/pkg/budget"
	"github.com/vmlinuzx/rlmcore/pkg/cost"
	"github.com/vmlinuzx/rlmcore/pkg/governance"
	"github.com/vmlinuzx/rlmcore/pkg/llm"
	"github.com/vmlinuzx/rlmcore/pkg/nav"
	"github.com/vmlinuzx/rlmcore/pkg/policy"
	"github.com/vmlinuzx/rlmcore/pkg/sandbox"
	"github.com/vmlinuzx/rlmcore/pkg/trace"
)

// State is a session's position in its Created->Running->{Finalized,
// Failed,Aborted} state machine.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateFinalized State = "finalized"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

// defaultModelMaxTokens bounds both the completion request and the
// conservative pre-call cost estimate when a Config does not set one.
const defaultModelMaxTokens = 4096

// Config constructs a root Session. ExePath must point at the current
// binary (os.Args[0]) so the Sandbox can re-exec it as a worker.
type Config struct {
	Policy   policy.Policy
	Provider llm.Provider
	Model    string
	Facade   *nav.Facade
	ExePath  string
	Tracer   trace.Tracer

	// BaseDir, if non-empty, is where SessionSummary JSON is persisted
	// on every terminal transition (see pkg/governance). Empty disables
	// persistence; Run still returns the summary in its Result.
	BaseDir string

	ModelMaxTokens           int
	MaxConcurrentSubSessions int
}

// Result is what Run returns: SessionResult in spec terms.
type Result struct {
	Answer  string
	Err     error
	Summary governance.SessionSummary
}

// Session is the runtime state for one node of a session tree.
type Session struct {
	id       string
	parentID string
	depth    int
	task     string

	policy           policy.Policy
	provider         llm.Provider
	model            string
	modelMaxTokens   int
	facade           *nav.Facade
	exePath          string
	tracer           trace.Tracer
	baseDir          string
	maxConcurrent    int
	costTracker      *cost.Tracker

	budget   *budget.Budget
	governor *budget.Governor
	sandbox  *sandbox.Sandbox

	state           State
	turns           []governance.TurnRecord
	injectedContext map[string]string
	children        []governance.SessionSummary
}

// New creates the root Session of a session tree.
func New(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session: provider is required")
	}
	if cfg.Facade == nil {
		return nil, fmt.Errorf("session: facade is required")
	}
	if cfg.ExePath == "" {
		return nil, fmt.Errorf("session: exe path is required")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = trace.Noop{}
	}
	maxTokens := cfg.ModelMaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultModelMaxTokens
	}

	sessionID := id.New()
	gov := budget.New()
	gov.Inheritance = cfg.Policy.Inheritance

	s := &Session{
		id:             sessionID,
		depth:          0,
		policy:         cfg.Policy,
		provider:       cfg.Provider,
		model:          cfg.Model,
		modelMaxTokens: maxTokens,
		facade:         cfg.Facade,
		exePath:        cfg.ExePath,
		tracer:         tracer,
		baseDir:        cfg.BaseDir,
		maxConcurrent:  cfg.MaxConcurrentSubSessions,
		costTracker:    cost.NewTracker(),
		budget:         budget.NewRoot(sessionID, cfg.Policy.Caps),
		governor:       gov,
		state:          StateCreated,
	}
	s.sandbox = s.newSandbox()
	return s, nil
}

func (s *Session) newSandbox() *sandbox.Sandbox {
	return sandbox.New(s.exePath, s.facade, s.runSubSession,
		sandbox.WithAllowedModules(s.policy.AllowedModules),
		sandbox.WithBlockedBuiltins(s.policy.BlockedBuiltins),
		sandbox.WithTimeout(time.Duration(s.policy.SandboxTimeoutMS)*time.Millisecond),
	)
}

// child builds a not-yet-run Session for a sub_session() call, sharing
// this tree's Governor, cost Tracker (so AddForEntity breaks cost down
// per session ID across the whole tree), tracer, and persistence
// target, but owning its own minted Budget and Sandbox.
func (s *Session) child(childID string, childBudget *budget.Budget) *Session {
	c := &Session{
		id:             childID,
		parentID:       s.id,
		depth:          childBudget.Depth,
		policy:         s.policy,
		provider:       s.provider,
		model:          s.model,
		modelMaxTokens: s.modelMaxTokens,
		facade:         s.facade,
		exePath:        s.exePath,
		tracer:         s.tracer,
		baseDir:        s.baseDir,
		maxConcurrent:  s.maxConcurrent,
		costTracker:    s.costTracker,
		budget:         childBudget,
		governor:       s.governor,
		state:          StateCreated,
	}
	c.sandbox = c.newSandbox()
	return c
}

// Run drives the turn loop to completion: composes a prompt, admits and
// submits a model call, parses its response, dispatches the resulting
// ACTION or FINAL, and loops until finalization, failure, or abort.
func (s *Session) Run(ctx context.Context, task string, injectedContext map[string]string) *Result {
	startTime := time.Now()
	s.task = task
	s.injectedContext = injectedContext
	defer s.sandbox.Close()

	ctx, runSpan := s.tracer.StartSpan(ctx, "session.run")
	runSpan.SetAttribute("session.id", s.id)
	runSpan.SetAttribute("session.depth", strconv.Itoa(s.depth))
	defer s.tracer.EndSpan(runSpan)

	if !s.policy.ModelAllowed(s.model) {
		runSpan.SetError(ErrModelDenied)
		return s.terminal(startTime, StateFailed, "", ErrModelDenied)
	}

	s.state = StateRunning
	malformedStreak := 0

	for {
		if err := ctx.Err(); err != nil {
			runSpan.SetError(err)
			return s.terminal(startTime, StateAborted, "", err)
		}

		messages := s.composePrompt(injectedContext)
		if malformedStreak > 0 {
			messages = append(messages, llm.NewUserMessage(repairHint))
		}

		turnIndex := len(s.turns)
		turnStart := time.Now()
		promptTokens := estimateTokens(messages)

		if err := s.governor.AdmitModelCall(s.budget, promptTokens+s.modelMaxTokens, s.estimateCost(promptTokens), s.policy.ModelTimeoutMS); err != nil {
			s.recordTurn(governance.TurnRecord{Index: turnIndex, Kind: governance.TurnBudgetDenied, StartTime: turnStart, Error: err.Error()})
			runSpan.SetError(err)
			return s.terminal(startTime, StateAborted, "", err)
		}

		_, llmSpan := s.tracer.StartSpan(ctx, "llm.complete")
		llmSpan.SetAttribute("llm.model", s.model)
		llmSpan.SetAttribute("llm.turn", strconv.Itoa(turnIndex+1))

		resp, err := s.provider.Complete(ctx, llm.Params{Model: s.model, Messages: messages, MaxTokens: s.modelMaxTokens})
		wall := time.Since(turnStart)
		if err != nil {
			llmSpan.SetError(err)
			s.tracer.EndSpan(llmSpan)
			s.recordTurn(governance.TurnRecord{Index: turnIndex, Kind: governance.TurnModelError, StartTime: turnStart, Duration: wall, Error: err.Error()})
			runSpan.SetError(err)
			return s.terminal(startTime, StateFailed, "", fmt.Errorf("session: model call: %w", err))
		}
		llmSpan.SetAttribute("llm.prompt_tokens", strconv.Itoa(resp.Usage.PromptTokens))
		llmSpan.SetAttribute("llm.completion_tokens", strconv.Itoa(resp.Usage.CompletionTokens))
		s.tracer.EndSpan(llmSpan)

		callCost := s.costTracker.AddForEntity(resp.Model, s.id, resp.Usage)
		s.budget.RecordModelCall(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, callCost, wall)

		p := parseResponse(resp.Message.Content)
		switch p.kind {
		case kindFinal:
			malformedStreak = 0
			s.recordTurn(governance.TurnRecord{
				Index: turnIndex, Kind: governance.TurnFinal, StartTime: turnStart, Duration: wall,
				Usage: resp.Usage, CostUSD: callCost, FinalAnswer: p.finalAnswer,
			})
			return s.terminal(startTime, StateFinalized, p.finalAnswer, nil)

		case kindAction:
			malformedStreak = 0
			if err := s.runAction(ctx, turnIndex, turnStart, resp.Usage, callCost, p.actionCode); err != nil {
				runSpan.SetError(err)
				return s.terminal(startTime, StateFailed, "", err)
			}

		default:
			malformedStreak++
			s.recordTurn(governance.TurnRecord{
				Index: turnIndex, Kind: governance.TurnMalformed, StartTime: turnStart, Duration: wall,
				Usage: resp.Usage, CostUSD: callCost, Error: "response had neither a single ACTION block nor a single FINAL block",
			})
			if malformedStreak >= 2 {
				runSpan.SetError(ErrMalformedResponse)
				return s.terminal(startTime, StateFailed, "", ErrMalformedResponse)
			}
		}
	}
}

// runAction admits, executes, and records one ACTION block. A Sandbox
// error returned here is a Timeout or an unresolved Crash — both fatal
// for the session per spec; a Violation/nav/starlark error instead
// surfaces inside a successful Observation and is recorded as a normal,
// recoverable turn.
func (s *Session) runAction(ctx context.Context, turnIndex int, turnStart time.Time, usage llm.Usage, callCost float64, code string) error {
	if err := s.governor.AdmitModelCall(s.budget, 0, 0, s.policy.SandboxTimeoutMS); err != nil {
		s.recordTurn(governance.TurnRecord{Index: turnIndex, Kind: governance.TurnBudgetDenied, StartTime: turnStart, Usage: usage, CostUSD: callCost, ActionCode: code, Error: err.Error()})
		return err
	}

	_, sbSpan := s.tracer.StartSpan(ctx, "sandbox.execute")
	sbSpan.SetAttribute("session.id", s.id)
	sandboxStart := time.Now()
	obs, err := s.sandbox.Execute(ctx, code, s.injectedContext)
	sandboxWall := time.Since(sandboxStart)
	if err != nil {
		sbSpan.SetError(err)
		s.tracer.EndSpan(sbSpan)
		s.budget.RecordSandboxWall(sandboxWall)
		s.recordTurn(governance.TurnRecord{
			Index: turnIndex, Kind: governance.TurnAction, StartTime: turnStart, Duration: time.Since(turnStart),
			Usage: usage, CostUSD: callCost, ActionCode: code, Error: err.Error(),
		})
		return fmt.Errorf("session: sandbox: %w", err)
	}
	if obs.Error != "" {
		sbSpan.SetAttribute("sandbox.error_kind", obs.ErrorKind)
	}
	s.tracer.EndSpan(sbSpan)
	s.budget.RecordSandboxWall(sandboxWall)

	s.recordTurn(governance.TurnRecord{
		Index: turnIndex, Kind: governance.TurnAction, StartTime: turnStart, Duration: time.Since(turnStart),
		Usage: usage, CostUSD: callCost, ActionCode: code,
		Observation: observationText(obs), ObservationErrorKind: obs.ErrorKind, Error: obs.Error,
	})
	return nil
}

// runSubSession is the SubSessionFunc this Session's Sandbox calls when
// an action block invokes sub_session(task, context). Children run
// strictly sequentially: the envelope protocol blocks this goroutine on
// the single in-flight subsession_call until the child has fully
// finished and sealed its own turn log, matching the reference
// semantics in spec.md §4.4.
func (s *Session) runSubSession(ctx context.Context, task string, contextBlobs map[string]string) (string, error) {
	if err := s.governor.AdmitSubSession(s.budget, s.modelMaxTokens, s.estimateCost(s.modelMaxTokens), s.policy.ModelTimeoutMS); err != nil {
		return "", err
	}

	childID := id.New()
	childBudget := s.governor.MintChild(s.budget, childID)
	child := s.child(childID, childBudget)

	s.budget.RecordSubcallSpawn()
	result := child.Run(ctx, task, contextBlobs)
	s.governor.Finalize(childBudget)
	s.children = append(s.children, result.Summary)

	if s.baseDir != "" {
		_ = governance.Save(s.baseDir, &result.Summary)
	}

	if result.Err != nil {
		return "", fmt.Errorf("sub_session: %w", result.Err)
	}
	return result.Answer, nil
}

func (s *Session) recordTurn(rec governance.TurnRecord) {
	s.turns = append(s.turns, rec)
}

func (s *Session) terminal(startTime time.Time, state State, answer string, err error) *Result {
	s.state = state
	summary := governance.SessionSummary{
		SessionID:   s.id,
		ParentID:    s.parentID,
		Depth:       s.depth,
		Task:        s.task,
		State:       string(state),
		FinalAnswer: answer,
		Turns:       s.turns,
		Usage:       s.budget.Snapshot(),
		Children:    s.children,
		StartTime:   startTime,
		Duration:    time.Since(startTime),
	}
	if err != nil {
		summary.Error = err.Error()
	}
	if s.baseDir != "" {
		// Best-effort: persistence failure must never block session
		// termination, since the Result already carries the summary.
		_ = governance.Save(s.baseDir, &summary)
	}
	return &Result{Answer: answer, Err: err, Summary: summary}
}

// estimateTokens is a conservative pre-call admission estimate, not a
// tokenizer: roughly 4 bytes per token, matching the rule of thumb the
// teacher's cost package itself documents for rough budgeting.
func estimateTokens(messages []llm.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)/4 + 1
	}
	return total
}

// estimateCost upper-bounds a call's cost using the configured model's
// default pricing and this Session's max completion tokens, so the
// Governor can deny before spending a real call whenever that would be
// cheaper than discovering the overrun after the fact.
func (s *Session) estimateCost(promptTokens int) float64 {
	pricing, ok := cost.DefaultPricing[s.model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1_000_000*pricing.PromptPer1M +
		float64(s.modelMaxTokens)/1_000_000*pricing.CompletionPer1M
}
