package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/vmlinuzx/rlmcore/pkg/nav"
)

// spanToStarlark renders a CodeSpan as the struct value an action block
// sees. Source text is never attached — nav.read_span(span) is the only
// way to materialise it, matching the Facade's lazy contract.
func spanToStarlark(cs nav.CodeSpan) *starlarkstruct.Struct {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"path":       starlark.String(cs.Path),
		"start_line": starlark.MakeInt(cs.StartLine),
		"end_line":   starlark.MakeInt(cs.EndLine),
		"language":   starlark.String(cs.Language),
		"kind":       starlark.String(string(cs.Kind)),
		"symbol":     starlark.String(cs.Symbol),
		"digest":     starlark.String(cs.Digest),
	})
}

func starlarkToSpan(v starlark.Value) (nav.CodeSpan, error) {
	s, ok := v.(*starlarkstruct.Struct)
	if !ok {
		return nav.CodeSpan{}, fmt.Errorf("expected a span value, got %s", v.Type())
	}

	str := func(name string) (string, error) {
		attr, err := s.Attr(name)
		if err != nil {
			return "", err
		}
		out, ok := starlark.AsString(attr)
		if !ok {
			return "", fmt.Errorf("span.%s is not a string", name)
		}
		return out, nil
	}
	intAttr := func(name string) (int, error) {
		attr, err := s.Attr(name)
		if err != nil {
			return 0, err
		}
		i, ok := attr.(starlark.Int)
		if !ok {
			return 0, fmt.Errorf("span.%s is not an int", name)
		}
		n, _ := i.Int64()
		return int(n), nil
	}

	path, err := str("path")
	if err != nil {
		return nav.CodeSpan{}, err
	}
	startLine, err := intAttr("start_line")
	if err != nil {
		return nav.CodeSpan{}, err
	}
	endLine, err := intAttr("end_line")
	if err != nil {
		return nav.CodeSpan{}, err
	}
	language, _ := str("language")
	kind, _ := str("kind")
	symbol, _ := str("symbol")
	digest, _ := str("digest")

	return nav.CodeSpan{
		Path:      path,
		StartLine: startLine,
		EndLine:   endLine,
		Language:  language,
		Kind:      nav.SpanKind(kind),
		Symbol:    symbol,
		Digest:    digest,
	}, nil
}

func symbolSummaryToStarlark(s nav.SymbolSummary) *starlarkstruct.Struct {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"name": starlark.String(s.Name),
		"span": spanToStarlark(s.Span),
	})
}

func symbolToStarlark(s nav.Symbol) *starlarkstruct.Struct {
	spans := make([]starlark.Value, len(s.Spans))
	for i, sp := range s.Spans {
		spans[i] = spanToStarlark(sp)
	}
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"name":  starlark.String(s.Name),
		"spans": starlark.NewList(spans),
	})
}

func repoOverviewToStarlark(o nav.RepoOverview) *starlarkstruct.Struct {
	hot := make([]starlark.Value, len(o.TopHotFiles))
	for i, f := range o.TopHotFiles {
		hot[i] = starlark.String(f)
	}
	entries := make([]starlark.Value, len(o.EntryPoints))
	for i, e := range o.EntryPoints {
		entries[i] = starlark.String(e)
	}
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"file_count":    starlark.MakeInt(o.FileCount),
		"span_count":    starlark.MakeInt(o.SpanCount),
		"top_hot_files": starlark.NewList(hot),
		"entry_points":  starlark.NewList(entries),
	})
}

func spanListToStarlark(spans []nav.CodeSpan) *starlark.List {
	vals := make([]starlark.Value, len(spans))
	for i, s := range spans {
		vals[i] = spanToStarlark(s)
	}
	return starlark.NewList(vals)
}

func symbolSummaryListToStarlark(summaries []nav.SymbolSummary) *starlark.List {
	vals := make([]starlark.Value, len(summaries))
	for i, s := range summaries {
		vals[i] = symbolSummaryToStarlark(s)
	}
	return starlark.NewList(vals)
}

func symbolListToStarlark(symbols []nav.Symbol) *starlark.List {
	vals := make([]starlark.Value, len(symbols))
	for i, s := range symbols {
		vals[i] = symbolToStarlark(s)
	}
	return starlark.NewList(vals)
}
