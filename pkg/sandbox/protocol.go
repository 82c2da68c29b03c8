package sandbox

import (
	"encoding/json"
)

// envelopeType tags the payload carried by a line of the newline-
// delimited JSON protocol spoken between the parent process and the
// re-exec'd worker subprocess over stdin/stdout.
type envelopeType string

const (
	envExecute          envelopeType = "execute"
	envNavCall          envelopeType = "nav_call"
	envNavResult        envelopeType = "nav_result"
	envSubSessionCall   envelopeType = "subsession_call"
	envSubSessionResult envelopeType = "subsession_result"
	envResult           envelopeType = "result"
)

// envelope is one line of the protocol. Exactly one Type's matching
// *Body field is populated.
type envelope struct {
	Type             envelopeType          `json:"type"`
	Execute          *executeBody          `json:"execute,omitempty"`
	NavCall          *navCallBody          `json:"nav_call,omitempty"`
	NavResult        *navResultBody        `json:"nav_result,omitempty"`
	SubSessionCall   *subSessionCallBody   `json:"subsession_call,omitempty"`
	SubSessionResult *subSessionResultBody `json:"subsession_result,omitempty"`
	Result           *resultBody           `json:"result,omitempty"`
}

// executeBody starts execution of one action block inside the worker.
// ContextBlobs are read-only strings made available as predeclared
// globals; Globals carries the persisted module-level bindings from the
// interpreter's prior action block, re-injected as predeclared so a
// session's variables survive across turns.
type executeBody struct {
	Code            string            `json:"code"`
	ContextBlobs    map[string]string `json:"context_blobs,omitempty"`
	AllowedModules  []string          `json:"allowed_modules,omitempty"`
	BlockedBuiltins []string          `json:"blocked_builtins,omitempty"`
	Globals         map[string]string `json:"globals,omitempty"`
	StdoutCap       int               `json:"stdout_cap"`
	StderrCap       int               `json:"stderr_cap"`
}

// navCallBody asks the parent to invoke one Navigation Facade operation.
// Args is op-specific; see handleNavCall.
type navCallBody struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

type navResultBody struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
	Stale bool            `json:"stale,omitempty"`
}

// subSessionCallBody asks the parent to run a child session to
// completion and return its final answer.
type subSessionCallBody struct {
	Task    string            `json:"task"`
	Context map[string]string `json:"context,omitempty"`
}

type subSessionResultBody struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// resultBody is the worker's final report for one action block.
type resultBody struct {
	Stdout           string            `json:"stdout"`
	StdoutTruncated  bool              `json:"stdout_truncated"`
	Stderr           string            `json:"stderr"`
	StderrTruncated  bool              `json:"stderr_truncated"`
	ReturnRepr       string            `json:"return_repr"`
	Globals          map[string]string `json:"globals,omitempty"`
	Error            string            `json:"error,omitempty"`
	ErrorKind        string            `json:"error_kind,omitempty"`
}

// Nav call op names. Args/Value shapes are documented beside each.
const (
	opGetFunction   = "get_function"   // args: {"name": string} -> *nav.CodeSpan
	opGetClass      = "get_class"      // args: {"name": string} -> *nav.CodeSpan
	opGetMethod     = "get_method"     // args: {"class_name","method_name": string} -> *nav.CodeSpan
	opListSymbols   = "list_symbols"   // args: {"path","kind": string} -> []nav.SymbolSummary
	opSearchPattern = "search_pattern" // args: {"pattern","scope": string} -> []nav.CodeSpan
	opNeighbors     = "neighbors"      // args: {"symbol","relation": string} -> []nav.Symbol
	opReadSpan      = "read_span"      // args: nav.CodeSpan -> string
	opRepoOverview  = "repo_overview"  // args: {} -> nav.RepoOverview
)

type getFunctionArgs struct {
	Name string `json:"name"`
}

type getMethodArgs struct {
	ClassName  string `json:"class_name"`
	MethodName string `json:"method_name"`
}

type listSymbolsArgs struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type searchPatternArgs struct {
	Pattern string `json:"pattern"`
	Scope   string `json:"scope"`
}

type neighborsArgs struct {
	Symbol   string `json:"symbol"`
	Relation string `json:"relation"`
}

// mustMarshal is used only for values already known to be JSON-safe
// (plain structs built from this package's own types); a marshal error
// here indicates a programming mistake, not a runtime fault.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic("sandbox: mustMarshal: " + err.Error())
	}
	return b
}
