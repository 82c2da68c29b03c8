package sandbox

import (
	"context"
	"encoding/json"

	"github.com/vmlinuzx/rlmcore/pkg/nav"
)

// handleNavCall runs one Navigation Facade operation on the parent's
// real Facade and shapes the result for the wire. The Facade itself is
// the single source of truth for staleness, deny-list, and resolution
// semantics — this is pure translation.
func (s *Sandbox) handleNavCall(ctx context.Context, call *navCallBody) *navResultBody {
	if call == nil {
		return &navResultBody{Error: "missing nav_call body"}
	}

	switch call.Op {
	case opGetFunction:
		var a getFunctionArgs
		if err := json.Unmarshal(call.Args, &a); err != nil {
			return &navResultBody{Error: err.Error()}
		}
		span, err := s.facade.GetFunction(ctx, a.Name)
		return navSpanResult(span, err)

	case opGetClass:
		var a getFunctionArgs
		if err := json.Unmarshal(call.Args, &a); err != nil {
			return &navResultBody{Error: err.Error()}
		}
		span, err := s.facade.GetClass(ctx, a.Name)
		return navSpanResult(span, err)

	case opGetMethod:
		var a getMethodArgs
		if err := json.Unmarshal(call.Args, &a); err != nil {
			return &navResultBody{Error: err.Error()}
		}
		span, err := s.facade.GetMethod(ctx, a.ClassName, a.MethodName)
		return navSpanResult(span, err)

	case opListSymbols:
		var a listSymbolsArgs
		if err := json.Unmarshal(call.Args, &a); err != nil {
			return &navResultBody{Error: err.Error()}
		}
		summaries, err := s.facade.ListSymbols(ctx, a.Path, nav.SpanKind(a.Kind))
		if err != nil {
			return navErrorResult(err)
		}
		return &navResultBody{Value: mustMarshal(summaries)}

	case opSearchPattern:
		var a searchPatternArgs
		if err := json.Unmarshal(call.Args, &a); err != nil {
			return &navResultBody{Error: err.Error()}
		}
		spans, err := s.facade.SearchPattern(ctx, a.Pattern, a.Scope)
		if err != nil {
			return navErrorResult(err)
		}
		return &navResultBody{Value: mustMarshal(spans)}

	case opNeighbors:
		var a neighborsArgs
		if err := json.Unmarshal(call.Args, &a); err != nil {
			return &navResultBody{Error: err.Error()}
		}
		symbols, err := s.facade.Neighbors(ctx, a.Symbol, nav.EdgeKind(a.Relation))
		if err != nil {
			return navErrorResult(err)
		}
		return &navResultBody{Value: mustMarshal(symbols)}

	case opReadSpan:
		var span nav.CodeSpan
		if err := json.Unmarshal(call.Args, &span); err != nil {
			return &navResultBody{Error: err.Error()}
		}
		text, err := s.facade.ReadSpan(ctx, span)
		if err != nil {
			return navErrorResult(err)
		}
		return &navResultBody{Value: mustMarshal(text)}

	case opRepoOverview:
		ov, err := s.facade.RepoOverview(ctx)
		if err != nil {
			return navErrorResult(err)
		}
		return &navResultBody{Value: mustMarshal(ov)}

	default:
		return &navResultBody{Error: "unknown nav op: " + call.Op}
	}
}

func navSpanResult(span *nav.CodeSpan, err error) *navResultBody {
	if err != nil {
		return navErrorResult(err)
	}
	return &navResultBody{Value: mustMarshal(span)}
}

func navErrorResult(err error) *navResultBody {
	stale := false
	if ne, ok := err.(*nav.Error); ok && ne.Kind == nav.Stale {
		stale = true
	}
	return &navResultBody{Error: err.Error(), Stale: stale}
}

func (s *Sandbox) handleSubSessionCall(ctx context.Context, call *subSessionCallBody) *subSessionResultBody {
	if call == nil {
		return &subSessionResultBody{Error: "missing subsession_call body"}
	}
	if s.subSession == nil {
		return &subSessionResultBody{Error: "sub_session is not available in this sandbox"}
	}
	answer, err := s.subSession(ctx, call.Task, call.Context)
	if err != nil {
		return &subSessionResultBody{Error: err.Error()}
	}
	return &subSessionResultBody{Answer: answer}
}
