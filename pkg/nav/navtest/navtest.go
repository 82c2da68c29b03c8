// Package navtest provides a small, hand-built nav.Index fixture for
// testing pkg/nav's Facade resolution logic in isolation from any real
// indexing backend, the same role pkg/llm/mock plays for provider-facing
// tests.
package navtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vmlinuzx/rlmcore/pkg/nav"
)

// Index is an in-memory nav.Index over a fixed set of spans and edges,
// configured directly by the test.
type Index struct {
	Spans    []nav.CodeSpan
	Edges    map[string]map[nav.EdgeKind][]string
	Sources  map[string]string // keyed by "path:start-end"
	Overview nav.RepoOverview

	// Digests overrides CurrentDigest per span key ("path:start-end"),
	// letting tests simulate a changed or removed file.
	Digests map[string]string
}

// New creates an empty fixture index.
func New() *Index {
	return &Index{
		Edges:   make(map[string]map[nav.EdgeKind][]string),
		Sources: make(map[string]string),
		Digests: make(map[string]string),
	}
}

func key(span nav.CodeSpan) string {
	return fmt.Sprintf("%s:%d-%d", span.Path, span.StartLine, span.EndLine)
}

// AddSpan registers a span and its source text, computing Digest from
// the source if not already set on the span.
func (idx *Index) AddSpan(span nav.CodeSpan, source string) nav.CodeSpan {
	k := key(span)
	idx.Sources[k] = source
	if span.Digest == "" {
		span.Digest = "digest:" + source
	}
	idx.Digests[k] = span.Digest
	idx.Spans = append(idx.Spans, span)
	return span
}

// AddEdge registers a directed edge from -> to of the given relation.
func (idx *Index) AddEdge(from string, relation nav.EdgeKind, to string) {
	if idx.Edges[from] == nil {
		idx.Edges[from] = make(map[nav.EdgeKind][]string)
	}
	idx.Edges[from][relation] = append(idx.Edges[from][relation], to)
}

// SetDigest overrides the digest CurrentDigest reports for span, to
// simulate the underlying file having changed.
func (idx *Index) SetDigest(span nav.CodeSpan, digest string) {
	idx.Digests[key(span)] = digest
}

// Candidates implements nav.Index.
func (idx *Index) Candidates(name string, kind nav.SpanKind) ([]nav.CodeSpan, error) {
	var out []nav.CodeSpan
	lower := strings.ToLower(name)
	for _, s := range idx.Spans {
		if s.Kind != kind {
			continue
		}
		unq := s.Symbol
		if i := strings.LastIndexByte(unq, '.'); i >= 0 {
			unq = unq[i+1:]
		}
		if s.Symbol == name || unq == name || strings.ToLower(unq) == lower {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListSymbols implements nav.Index.
func (idx *Index) ListSymbols(path string, kind nav.SpanKind) ([]nav.SymbolSummary, error) {
	var out []nav.SymbolSummary
	for _, s := range idx.Spans {
		if s.Symbol == "" {
			continue
		}
		if path != "" && s.Path != path {
			continue
		}
		if kind != "" && s.Kind != kind {
			continue
		}
		out = append(out, nav.SymbolSummary{Name: s.Symbol, Span: s})
	}
	return out, nil
}

// SearchPattern implements nav.Index.
func (idx *Index) SearchPattern(pattern, scope string) ([]nav.CodeSpan, error) {
	var out []nav.CodeSpan
	for _, s := range idx.Spans {
		if scope != "" && !strings.HasPrefix(s.Path, scope) {
			continue
		}
		if strings.Contains(idx.Sources[key(s)], pattern) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Neighbors implements nav.Index.
func (idx *Index) Neighbors(symbol string, relation nav.EdgeKind) ([]nav.Symbol, error) {
	names := idx.Edges[symbol][relation]
	var out []nav.Symbol
	for _, n := range names {
		var spans []nav.CodeSpan
		for _, s := range idx.Spans {
			if s.Symbol == n {
				spans = append(spans, s)
			}
		}
		out = append(out, nav.Symbol{Name: n, Spans: spans})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadSpan implements nav.Index.
func (idx *Index) ReadSpan(span nav.CodeSpan) (string, error) {
	src, ok := idx.Sources[key(span)]
	if !ok {
		return "", fmt.Errorf("navtest: unknown span %s", key(span))
	}
	return src, nil
}

// RepoOverview implements nav.Index.
func (idx *Index) RepoOverview() (nav.RepoOverview, error) {
	return idx.Overview, nil
}

// CurrentDigest implements nav.Index.
func (idx *Index) CurrentDigest(span nav.CodeSpan) (string, error) {
	d, ok := idx.Digests[key(span)]
	if !ok {
		return "", fmt.Errorf("navtest: unknown span %s", key(span))
	}
	return d, nil
}
