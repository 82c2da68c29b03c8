package nav

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vmlinuzx/rlmcore/pkg/trace"
)

// Facade is the sandbox-visible "nav" object: a small, stable set of
// read-only operations over a pinned repository Snapshot. All operations
// are deterministic per snapshot and side-effect-free.
type Facade struct {
	snapshot       *Snapshot
	pin            *Pin
	denylistGlobs  []string
	tracer         trace.Tracer
}

// Option configures a Facade at construction time.
type Option func(*Facade)

// WithTracer attaches a Tracer used to instrument each operation.
func WithTracer(t trace.Tracer) Option {
	return func(f *Facade) { f.tracer = t }
}

// WithDenylistGlobs sets path globs that ReadSpan must never serve,
// matched with github.com/bmatcuk/doublestar/v4 against the span's path
// relative to the repository root.
func WithDenylistGlobs(globs []string) Option {
	return func(f *Facade) { f.denylistGlobs = globs }
}

// New creates a Facade bound to a pinned Snapshot.
func New(snapshot *Snapshot, opts ...Option) *Facade {
	f := &Facade{
		snapshot: snapshot,
		pin:      snapshot.Pin(),
		tracer:   trace.Noop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Facade) span(ctx context.Context, name string) (context.Context, *trace.Span) {
	return f.tracer.StartSpan(ctx, "nav."+name)
}

// GetFunction resolves name to a function CodeSpan, or nil if none.
func (f *Facade) GetFunction(ctx context.Context, name string) (*CodeSpan, error) {
	ctx, span := f.span(ctx, "get_function")
	defer f.tracer.EndSpan(span)
	return f.resolveOne(ctx, name, KindFunction)
}

// GetClass resolves name to a class CodeSpan, or nil if none.
func (f *Facade) GetClass(ctx context.Context, name string) (*CodeSpan, error) {
	ctx, span := f.span(ctx, "get_class")
	defer f.tracer.EndSpan(span)
	return f.resolveOne(ctx, name, KindClass)
}

// GetMethod resolves (className, methodName) to a method CodeSpan.
// Resolution first tries the qualified "class.method" name, then falls
// back to an unqualified lookup of methodName scoped to KindMethod.
func (f *Facade) GetMethod(ctx context.Context, className, methodName string) (*CodeSpan, error) {
	ctx, span := f.span(ctx, "get_method")
	defer f.tracer.EndSpan(span)

	qualified := className + "." + methodName
	if s, err := f.resolveOne(ctx, qualified, KindMethod); err != nil {
		return nil, err
	} else if s != nil {
		return s, nil
	}
	return f.resolveOne(ctx, methodName, KindMethod)
}

// resolveOne implements the Navigation Facade resolution order: exact
// qualified match, then exact unqualified match (ambiguity resolved by
// fewest path components, tie broken by path then start_line), then a
// unique case-insensitive match, else nil.
func (f *Facade) resolveOne(ctx context.Context, name string, kind SpanKind) (*CodeSpan, error) {
	if f.pin.Stale() {
		return nil, NewError(Stale, "snapshot invalidated")
	}

	candidates, err := f.snapshot.index.Candidates(name, kind)
	if err != nil {
		return nil, NewError(IndexUnavailable, err.Error())
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var qualified []CodeSpan
	var unqualified []CodeSpan
	var caseInsensitive []CodeSpan
	lowerName := strings.ToLower(name)

	for _, c := range candidates {
		if c.Symbol == name {
			qualified = append(qualified, c)
			continue
		}
		if unqualifiedName(c.Symbol) == name {
			unqualified = append(unqualified, c)
			continue
		}
		if strings.ToLower(unqualifiedName(c.Symbol)) == lowerName {
			caseInsensitive = append(caseInsensitive, c)
		}
	}

	if len(qualified) > 0 {
		sortSpans(qualified)
		return &qualified[0], nil
	}

	if len(unqualified) > 0 {
		// Ranked by fewest path components; ties broken by path then
		// start_line, which sortByPathDepthThenLocation already applies.
		sortByPathDepthThenLocation(unqualified)
		best := unqualified[0]
		return &best, nil
	}

	if len(caseInsensitive) == 1 {
		return &caseInsensitive[0], nil
	}

	return nil, nil
}

func unqualifiedName(symbol string) string {
	if i := strings.LastIndexByte(symbol, '.'); i >= 0 {
		return symbol[i+1:]
	}
	return symbol
}

func pathDepth(path string) int {
	return strings.Count(filepath.ToSlash(path), "/")
}

func sortSpans(spans []CodeSpan) {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Path != spans[j].Path {
			return spans[i].Path < spans[j].Path
		}
		return spans[i].StartLine < spans[j].StartLine
	})
}

// sortByPathDepthThenLocation ranks candidates by fewest path components
// first (highest-ranked = fewest), then deterministically by path and
// start_line.
func sortByPathDepthThenLocation(spans []CodeSpan) {
	sort.Slice(spans, func(i, j int) bool {
		di, dj := pathDepth(spans[i].Path), pathDepth(spans[j].Path)
		if di != dj {
			return di < dj
		}
		if spans[i].Path != spans[j].Path {
			return spans[i].Path < spans[j].Path
		}
		return spans[i].StartLine < spans[j].StartLine
	})
}

// ListSymbols returns symbol summaries ordered by (path, start_line).
// An empty kind matches any kind.
func (f *Facade) ListSymbols(ctx context.Context, path string, kind SpanKind) ([]SymbolSummary, error) {
	_, span := f.span(ctx, "list_symbols")
	defer f.tracer.EndSpan(span)

	if f.pin.Stale() {
		return nil, NewError(Stale, "snapshot invalidated")
	}
	summaries, err := f.snapshot.index.ListSymbols(path, kind)
	if err != nil {
		return nil, NewError(IndexUnavailable, err.Error())
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Span.Path != summaries[j].Span.Path {
			return summaries[i].Span.Path < summaries[j].Span.Path
		}
		return summaries[i].Span.StartLine < summaries[j].Span.StartLine
	})
	return summaries, nil
}

// SearchPattern returns spans whose source contains pattern as a
// substring, in (path, start_line) order. scope defaults to the full
// repository when empty.
func (f *Facade) SearchPattern(ctx context.Context, pattern, scope string) ([]CodeSpan, error) {
	_, span := f.span(ctx, "search_pattern")
	defer f.tracer.EndSpan(span)

	if f.pin.Stale() {
		return nil, NewError(Stale, "snapshot invalidated")
	}
	spans, err := f.snapshot.index.SearchPattern(pattern, scope)
	if err != nil {
		return nil, NewError(IndexUnavailable, err.Error())
	}
	sortSpans(spans)
	return spans, nil
}

// Neighbors returns the symbols related to symbol by relation, or an
// empty slice if none.
func (f *Facade) Neighbors(ctx context.Context, symbol string, relation EdgeKind) ([]Symbol, error) {
	_, span := f.span(ctx, "neighbors")
	defer f.tracer.EndSpan(span)

	if f.pin.Stale() {
		return nil, NewError(Stale, "snapshot invalidated")
	}
	neighbors, err := f.snapshot.index.Neighbors(symbol, relation)
	if err != nil {
		return nil, NewError(IndexUnavailable, err.Error())
	}
	return neighbors, nil
}

// ReadSpan materialises the exact source text for span. This is the only
// operation that touches disk content. The Policy deny-list is checked
// before the read; a digest mismatch against current content reports
// Stale rather than silently serving altered text.
func (f *Facade) ReadSpan(ctx context.Context, cs CodeSpan) (string, error) {
	_, span := f.span(ctx, "read_span")
	defer f.tracer.EndSpan(span)

	if f.pin.Stale() {
		return "", NewError(Stale, "snapshot invalidated")
	}

	relPath := filepath.ToSlash(cs.Path)
	for _, g := range f.denylistGlobs {
		if match, _ := doublestar.Match(g, relPath); match {
			return "", NewError(IndexUnavailable, "path denied by policy: "+cs.Path)
		}
	}

	current, err := f.snapshot.index.CurrentDigest(cs)
	if err != nil {
		return "", NewError(IndexUnavailable, err.Error())
	}
	if current != cs.Digest {
		return "", NewError(Stale, "digest mismatch for "+cs.Path)
	}

	text, err := f.snapshot.index.ReadSpan(cs)
	if err != nil {
		return "", NewError(IndexUnavailable, err.Error())
	}
	return text, nil
}

// RepoOverview returns the deterministic bootstrap summary.
func (f *Facade) RepoOverview(ctx context.Context) (RepoOverview, error) {
	_, span := f.span(ctx, "repo_overview")
	defer f.tracer.EndSpan(span)

	if f.pin.Stale() {
		return RepoOverview{}, NewError(Stale, "snapshot invalidated")
	}
	ov, err := f.snapshot.index.RepoOverview()
	if err != nil {
		return RepoOverview{}, NewError(IndexUnavailable, err.Error())
	}
	return ov, nil
}
