package nav

// Index is the external repository-index contract C1 is built against
// (spec §6's "Repository index": symbol lookup, span fetch by (path,
// line-range), graph neighbor query, pattern search). The core ships one
// reference implementation (pkg/nav/goindex) purely so Facade is
// exercisable; production deployments supply their own Index backed by a
// real code-index/embedding store.
type Index interface {
	// Candidates returns every span of the given kind whose Symbol is an
	// exact qualified match, an exact unqualified match (last dotted
	// component equals name), or a case-insensitive match for name.
	// Facade applies the resolution order and tie-breaking described in
	// the Navigation Facade contract; Candidates itself does no ranking.
	Candidates(name string, kind SpanKind) ([]CodeSpan, error)
	// ListSymbols returns symbol summaries in any order; Facade sorts
	// them by (path, start_line). An empty path or kind matches any.
	ListSymbols(path string, kind SpanKind) ([]SymbolSummary, error)
	// SearchPattern returns spans whose source contains pattern as a
	// substring, in any order; Facade sorts them by (path, start_line).
	// scope narrows the search to a path prefix; an empty scope searches
	// the whole repository.
	SearchPattern(pattern, scope string) ([]CodeSpan, error)
	// Neighbors returns the symbols related to symbol by relation.
	Neighbors(symbol string, relation EdgeKind) ([]Symbol, error)
	// ReadSpan returns the exact source text for span.
	ReadSpan(span CodeSpan) (string, error)
	// RepoOverview returns the deterministic bootstrap summary.
	RepoOverview() (RepoOverview, error)
	// CurrentDigest recomputes span's digest against live content, for
	// staleness comparison against the digest captured at lookup time.
	CurrentDigest(span CodeSpan) (string, error)
}
