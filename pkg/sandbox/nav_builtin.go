package sandbox

import (
	"encoding/json"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/vmlinuzx/rlmcore/pkg/nav"
)

// ioProxy is the worker-side channel back to the process that owns the
// real Navigation Facade. Every nav or sub_session call blocks on one
// synchronous envelope round trip; only one can be in flight at a time
// because a single Starlark goroutine drives them.
type ioProxy interface {
	navCall(op string, args any) (json.RawMessage, error)
	subSessionCall(task string, contextBlobs map[string]string) (string, error)
}

// builtinFn matches go.starlark.net's Builtin function signature; naming
// it lets the op-specific closures below read as ordinary Go funcs.
type builtinFn func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// navObject builds the predeclared "nav" global: a struct of builtins
// that each proxy one Navigation Facade operation to the parent process.
func navObject(proxy ioProxy) *starlarkstruct.Struct {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"get_function":   starlark.NewBuiltin("get_function", navGetFunction(proxy)),
		"get_class":      starlark.NewBuiltin("get_class", navGetClass(proxy)),
		"get_method":     starlark.NewBuiltin("get_method", navGetMethod(proxy)),
		"list_symbols":   starlark.NewBuiltin("list_symbols", navListSymbols(proxy)),
		"search_pattern": starlark.NewBuiltin("search_pattern", navSearchPattern(proxy)),
		"neighbors":      starlark.NewBuiltin("neighbors", navNeighbors(proxy)),
		"read_span":      starlark.NewBuiltin("read_span", navReadSpan(proxy)),
		"repo_overview":  starlark.NewBuiltin("repo_overview", navRepoOverview(proxy)),
	})
}

func navGetFunction(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		return navCallSpan(proxy, opGetFunction, getFunctionArgs{Name: name})
	}
}

func navGetClass(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
			return nil, err
		}
		return navCallSpan(proxy, opGetClass, getFunctionArgs{Name: name})
	}
}

func navGetMethod(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var className, methodName string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "class_name", &className, "method_name", &methodName); err != nil {
			return nil, err
		}
		return navCallSpan(proxy, opGetMethod, getMethodArgs{ClassName: className, MethodName: methodName})
	}
}

func navCallSpan(proxy ioProxy, op string, args any) (starlark.Value, error) {
	raw, err := proxy.navCall(op, args)
	if err != nil {
		return nil, err
	}
	var span *nav.CodeSpan
	if err := json.Unmarshal(raw, &span); err != nil {
		return nil, fmt.Errorf("sandbox: decoding %s result: %w", op, err)
	}
	if span == nil {
		return starlark.None, nil
	}
	return spanToStarlark(*span), nil
}

func navListSymbols(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path, kind string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path?", &path, "kind?", &kind); err != nil {
			return nil, err
		}
		raw, err := proxy.navCall(opListSymbols, listSymbolsArgs{Path: path, Kind: kind})
		if err != nil {
			return nil, err
		}
		var summaries []nav.SymbolSummary
		if err := json.Unmarshal(raw, &summaries); err != nil {
			return nil, fmt.Errorf("sandbox: decoding list_symbols result: %w", err)
		}
		return symbolSummaryListToStarlark(summaries), nil
	}
}

func navSearchPattern(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var pattern, scope string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "scope?", &scope); err != nil {
			return nil, err
		}
		raw, err := proxy.navCall(opSearchPattern, searchPatternArgs{Pattern: pattern, Scope: scope})
		if err != nil {
			return nil, err
		}
		var spans []nav.CodeSpan
		if err := json.Unmarshal(raw, &spans); err != nil {
			return nil, fmt.Errorf("sandbox: decoding search_pattern result: %w", err)
		}
		return spanListToStarlark(spans), nil
	}
}

func navNeighbors(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var symbol, relation string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "symbol", &symbol, "relation", &relation); err != nil {
			return nil, err
		}
		raw, err := proxy.navCall(opNeighbors, neighborsArgs{Symbol: symbol, Relation: relation})
		if err != nil {
			return nil, err
		}
		var symbols []nav.Symbol
		if err := json.Unmarshal(raw, &symbols); err != nil {
			return nil, fmt.Errorf("sandbox: decoding neighbors result: %w", err)
		}
		return symbolListToStarlark(symbols), nil
	}
}

func navReadSpan(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var spanVal starlark.Value
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "span", &spanVal); err != nil {
			return nil, err
		}
		span, err := starlarkToSpan(spanVal)
		if err != nil {
			return nil, err
		}
		raw, err := proxy.navCall(opReadSpan, span)
		if err != nil {
			return nil, err
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("sandbox: decoding read_span result: %w", err)
		}
		return starlark.String(text), nil
	}
}

func navRepoOverview(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
			return nil, err
		}
		raw, err := proxy.navCall(opRepoOverview, struct{}{})
		if err != nil {
			return nil, err
		}
		var ov nav.RepoOverview
		if err := json.Unmarshal(raw, &ov); err != nil {
			return nil, fmt.Errorf("sandbox: decoding repo_overview result: %w", err)
		}
		return repoOverviewToStarlark(ov), nil
	}
}

// subSessionBuiltin implements sub_session(task, context={}): it blocks
// until the parent process runs the child session to completion and
// returns its final answer as a string.
func subSessionBuiltin(proxy ioProxy) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var task string
		var ctxDict *starlark.Dict
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "task", &task, "context?", &ctxDict); err != nil {
			return nil, err
		}
		ctxMap := map[string]string{}
		if ctxDict != nil {
			for _, item := range ctxDict.Items() {
				k, ok := starlark.AsString(item[0])
				if !ok {
					return nil, fmt.Errorf("sub_session: context keys must be strings")
				}
				v, ok := starlark.AsString(item[1])
				if !ok {
					return nil, fmt.Errorf("sub_session: context values must be strings")
				}
				ctxMap[k] = v
			}
		}
		answer, err := proxy.subSessionCall(task, ctxMap)
		if err != nil {
			return nil, err
		}
		return starlark.String(answer), nil
	}
}
