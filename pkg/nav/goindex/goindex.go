// Package goindex is a reference nav.Index backed by Go's own go/parser
// and go/ast. It exists so pkg/nav is exercisable and testable without a
// real on-disk code-index/embedding store, which spec.md places outside
// the core's scope. It understands exactly enough Go syntax to locate
// top-level functions, types (as "classes"), and methods; it is not a
// general source-indexing engine.
package goindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmlinuzx/rlmcore/pkg/nav"
)

type fileInfo struct {
	relPath string
	absPath string
	src     []byte
	fset    *token.FileSet
	file    *ast.File
}

// Index indexes a directory tree of .go files at construction time. The
// index is immutable afterwards; Candidates/ListSymbols/SearchPattern
// operate purely over the in-memory model, so repeated calls are
// deterministic per instance.
type Index struct {
	root    string
	files   []*fileInfo
	spans   []nav.CodeSpan
	symbols map[string][]nav.CodeSpan // qualified symbol name -> spans
	edges   map[string]map[nav.EdgeKind][]string
}

// Build walks root and indexes every *.go file found beneath it.
func Build(root string) (*Index, error) {
	idx := &Index{
		root:    root,
		symbols: make(map[string][]nav.CodeSpan),
		edges:   make(map[string]map[nav.EdgeKind][]string),
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		return idx.indexFile(path)
	})
	if err != nil {
		return nil, fmt.Errorf("goindex: build %s: %w", root, err)
	}
	return idx, nil
}

func (idx *Index) indexFile(absPath string) error {
	src, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", absPath, err)
	}
	rel, err := filepath.Rel(idx.root, absPath)
	if err != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, absPath, src, parser.ParseComments)
	if err != nil {
		// Unparsable files are skipped rather than failing the whole
		// build: a reference indexer should not abort on a single bad
		// file in a large tree.
		return nil
	}

	fi := &fileInfo{relPath: rel, absPath: absPath, src: src, fset: fset, file: f}
	idx.files = append(idx.files, fi)

	pkgName := f.Name.Name
	moduleSpan := idx.spanFor(fi, f.Pos(), f.End(), nav.KindModule, pkgName)
	idx.addSpan(moduleSpan)

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			idx.indexFunc(fi, pkgName, d)
		case *ast.GenDecl:
			if d.Tok == token.TYPE {
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					qualified := pkgName + "." + ts.Name.Name
					span := idx.spanFor(fi, d.Pos(), d.End(), nav.KindClass, qualified)
					idx.addSpan(span)
				}
			}
		}
	}
	return nil
}

func (idx *Index) indexFunc(fi *fileInfo, pkgName string, d *ast.FuncDecl) {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		qualified := pkgName + "." + d.Name.Name
		span := idx.spanFor(fi, d.Pos(), d.End(), nav.KindFunction, qualified)
		idx.addSpan(span)
		idx.indexCalls(fi, qualified, d.Body)
		return
	}

	recvName := receiverTypeName(d.Recv.List[0].Type)
	qualified := pkgName + "." + recvName + "." + d.Name.Name
	span := idx.spanFor(fi, d.Pos(), d.End(), nav.KindMethod, qualified)
	idx.addSpan(span)
	idx.indexCalls(fi, qualified, d.Body)

	classSymbol := pkgName + "." + recvName
	idx.addEdge(classSymbol, nav.EdgeInherits, qualified)
}

// indexCalls records a coarse "calls" edge from fn to every plain
// identifier called within its body, without checking that the name is
// a function the index knows. This is a best-effort same-pass
// approximation (no type resolution), adequate for the reference
// implementation's neighbors() contract.
func (idx *Index) indexCalls(fi *fileInfo, fn string, body *ast.BlockStmt) {
	if body == nil {
		return
	}
	pkgPrefix := strings.SplitN(fn, ".", 2)[0] + "."
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		ident, ok := call.Fun.(*ast.Ident)
		if !ok {
			return true
		}
		callee := pkgPrefix + ident.Name
		idx.addEdge(fn, nav.EdgeCalls, callee)
		idx.addEdge(callee, nav.EdgeCalledBy, fn)
		return true
	})
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return "?"
	}
}

func (idx *Index) spanFor(fi *fileInfo, pos, end token.Pos, kind nav.SpanKind, symbol string) nav.CodeSpan {
	startLine := fi.fset.Position(pos).Line
	endLine := fi.fset.Position(end).Line
	text := extractLines(fi.src, startLine, endLine)
	return nav.CodeSpan{
		Path:      fi.relPath,
		StartLine: startLine,
		EndLine:   endLine,
		Language:  "go",
		Kind:      kind,
		Symbol:    symbol,
		Digest:    digest(text),
	}
}

func (idx *Index) addSpan(span nav.CodeSpan) {
	idx.spans = append(idx.spans, span)
	if span.Symbol != "" {
		idx.symbols[span.Symbol] = append(idx.symbols[span.Symbol], span)
	}
}

func (idx *Index) addEdge(from string, kind nav.EdgeKind, to string) {
	if idx.edges[from] == nil {
		idx.edges[from] = make(map[nav.EdgeKind][]string)
	}
	idx.edges[from][kind] = append(idx.edges[from][kind], to)
}

func extractLines(src []byte, startLine, endLine int) string {
	lines := strings.Split(string(src), "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine || startLine > len(lines) {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Candidates implements nav.Index.
func (idx *Index) Candidates(name string, kind nav.SpanKind) ([]nav.CodeSpan, error) {
	var out []nav.CodeSpan
	lowerName := strings.ToLower(name)
	for _, span := range idx.spans {
		if span.Kind != kind {
			continue
		}
		unq := span.Symbol
		if i := strings.LastIndexByte(unq, '.'); i >= 0 {
			unq = unq[i+1:]
		}
		if span.Symbol == name || unq == name || strings.ToLower(unq) == lowerName {
			out = append(out, span)
		}
	}
	return out, nil
}

// ListSymbols implements nav.Index.
func (idx *Index) ListSymbols(path string, kind nav.SpanKind) ([]nav.SymbolSummary, error) {
	var out []nav.SymbolSummary
	for _, span := range idx.spans {
		if span.Symbol == "" {
			continue
		}
		if path != "" && span.Path != path {
			continue
		}
		if kind != "" && span.Kind != kind {
			continue
		}
		out = append(out, nav.SymbolSummary{Name: span.Symbol, Span: span})
	}
	return out, nil
}

// SearchPattern implements nav.Index with substring matching over each
// indexed span's source text.
func (idx *Index) SearchPattern(pattern, scope string) ([]nav.CodeSpan, error) {
	var out []nav.CodeSpan
	for _, span := range idx.spans {
		if scope != "" && !strings.HasPrefix(span.Path, scope) {
			continue
		}
		text, err := idx.ReadSpan(span)
		if err != nil {
			continue
		}
		if strings.Contains(text, pattern) {
			out = append(out, span)
		}
	}
	return out, nil
}

// Neighbors implements nav.Index.
func (idx *Index) Neighbors(symbol string, relation nav.EdgeKind) ([]nav.Symbol, error) {
	names := idx.edges[symbol][relation]
	seen := make(map[string]bool, len(names))
	var out []nav.Symbol
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, nav.Symbol{Name: n, Spans: idx.symbols[n]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadSpan implements nav.Index by re-slicing the original file's lines.
func (idx *Index) ReadSpan(span nav.CodeSpan) (string, error) {
	for _, fi := range idx.files {
		if fi.relPath == span.Path {
			return extractLines(fi.src, span.StartLine, span.EndLine), nil
		}
	}
	return "", fmt.Errorf("goindex: unknown path %q", span.Path)
}

// RepoOverview implements nav.Index.
func (idx *Index) RepoOverview() (nav.RepoOverview, error) {
	degree := make(map[string]int)
	for from, byKind := range idx.edges {
		for _, tos := range byKind {
			degree[from] += len(tos)
		}
	}
	fileSet := make(map[string]bool)
	for _, span := range idx.spans {
		fileSet[span.Path] = true
	}

	type hot struct {
		path   string
		degree int
	}
	var hotFiles []hot
	pathDegree := make(map[string]int)
	for sym, d := range degree {
		for _, spans := range idx.symbols[sym] {
			pathDegree[spans.Path] += d
		}
	}
	for path, d := range pathDegree {
		hotFiles = append(hotFiles, hot{path: path, degree: d})
	}
	sort.Slice(hotFiles, func(i, j int) bool {
		if hotFiles[i].degree != hotFiles[j].degree {
			return hotFiles[i].degree > hotFiles[j].degree
		}
		return hotFiles[i].path < hotFiles[j].path
	})

	const topK = 5
	var top []string
	for i, h := range hotFiles {
		if i >= topK {
			break
		}
		top = append(top, h.path)
	}

	var entryPoints []string
	for sym := range idx.symbols {
		if strings.HasSuffix(sym, ".main") {
			entryPoints = append(entryPoints, sym)
		}
	}
	sort.Strings(entryPoints)

	return nav.RepoOverview{
		FileCount:   len(fileSet),
		SpanCount:   len(idx.spans),
		TopHotFiles: top,
		EntryPoints: entryPoints,
	}, nil
}

// CurrentDigest implements nav.Index by re-reading disk content fresh
// (rather than the in-memory snapshot), so a file changed or removed
// after Build produces a genuine mismatch or IndexUnavailable.
func (idx *Index) CurrentDigest(span nav.CodeSpan) (string, error) {
	absPath := filepath.Join(idx.root, span.Path)
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("goindex: re-read %s: %w", span.Path, err)
	}
	text := extractLines(data, span.StartLine, span.EndLine)
	return digest(text), nil
}
