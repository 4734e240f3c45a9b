package pyscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Parser extracts import statements from Python source files using
// tree-sitter. A Parser is not safe for concurrent use; each goroutine
// should create its own.
type Parser struct {
	root   string
	parser *sitter.Parser
}

// NewParser creates a parser rooted at root. The root is used only to
// compute relative paths for ImportStatement provenance.
func NewParser(root string) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{root: root, parser: p}
}

// ParseFile reads and parses a single Python file. Syntax errors are
// reported through SourceFile.Status, not the error return; only I/O and
// context failures produce an error.
func (p *Parser) ParseFile(ctx context.Context, path string) (*SourceFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	relPath, err := filepath.Rel(p.root, path)
	if err != nil {
		relPath = path
	}

	sf, err := p.ParseSource(ctx, relPath, content)
	if err != nil {
		return nil, err
	}
	sf.Path = path
	return sf, nil
}

// ParseSource parses in-memory Python source. relPath is recorded as the
// provenance of every extracted import.
func (p *Parser) ParseSource(ctx context.Context, relPath string, content []byte) (*SourceFile, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()

	sf := &SourceFile{
		RelPath: relPath,
		Hash:    ComputeHash(content),
		Status:  ParseOK,
	}

	if root.HasError() {
		sf.Status = ParseSyntaxError
		sf.Syntax = firstSyntaxError(root)
	}

	// Imports are extracted even from files with syntax errors: tree-sitter
	// recovers around error nodes, and partial results beat none.
	ext := &extractor{content: content, file: relPath}
	ext.walk(root, false)
	sf.Imports = ext.imports

	return sf, nil
}

// firstSyntaxError locates the first ERROR or missing node in the tree.
func firstSyntaxError(node *sitter.Node) *SyntaxError {
	if node.Type() == "ERROR" || node.IsMissing() {
		return &SyntaxError{
			Line:   int(node.StartPoint().Row) + 1,
			Column: int(node.StartPoint().Column) + 1,
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstSyntaxError(node.Child(i)); found != nil {
			return found
		}
	}
	// HasError without a locatable node; point at the start of the file.
	return &SyntaxError{Line: 1, Column: 1}
}

// extractor accumulates import statements during a tree walk.
type extractor struct {
	content []byte
	file    string
	imports []ImportStatement
}

// walk visits every named node. guarded is true once the walk has entered a
// try or if block; imports found there are recorded as guarded but are
// otherwise treated like any other import.
func (e *extractor) walk(node *sitter.Node, guarded bool) {
	switch node.Type() {
	case "import_statement":
		e.extractImport(node, guarded)
		return
	case "import_from_statement", "future_import_statement":
		e.extractFromImport(node, guarded)
		return
	case "call":
		if e.extractDynamicImport(node, guarded) {
			return
		}
	case "try_statement", "if_statement", "conditional_expression":
		guarded = true
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walk(node.NamedChild(i), guarded)
	}
}

// extractImport handles "import foo, bar.baz as b".
func (e *extractor) extractImport(node *sitter.Node, guarded bool) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		var module string
		switch child.Type() {
		case "dotted_name":
			module = e.text(child)
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				module = e.text(name)
			}
		default:
			continue
		}
		if module == "" {
			continue
		}
		e.imports = append(e.imports, ImportStatement{
			Module:  module,
			Kind:    KindImport,
			Guarded: guarded,
			File:    e.file,
			Line:    int(child.StartPoint().Row) + 1,
		})
	}
}

// extractFromImport handles "from foo import bar, baz" including wildcard
// and relative forms.
func (e *extractor) extractFromImport(node *sitter.Node, guarded bool) {
	moduleNode := node.ChildByFieldName("module_name")
	module := "__future__"
	if moduleNode != nil {
		module = e.text(moduleNode)
	}
	if module == "" {
		return
	}

	stmt := ImportStatement{
		Module:  module,
		Kind:    KindFromImport,
		Guarded: guarded,
		File:    e.file,
		Line:    int(node.StartPoint().Row) + 1,
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() {
			continue
		}
		switch child.Type() {
		case "wildcard_import":
			// The wildcarded module itself is the dependency, not its
			// members.
			stmt.Kind = KindWildcard
			stmt.Names = nil
		case "dotted_name", "identifier":
			stmt.Names = append(stmt.Names, e.text(child))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				stmt.Names = append(stmt.Names, e.text(name))
			}
		}
	}

	e.imports = append(e.imports, stmt)
}

// extractDynamicImport recognizes importlib.import_module(...) and
// __import__(...) calls. Returns true when the call was recorded.
func (e *extractor) extractDynamicImport(node *sitter.Node, guarded bool) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}

	switch fn.Type() {
	case "identifier":
		if e.text(fn) != "__import__" {
			return false
		}
	case "attribute":
		if e.text(fn) != "importlib.import_module" {
			return false
		}
	default:
		return false
	}

	stmt := ImportStatement{
		Kind:    KindDynamic,
		Guarded: guarded,
		File:    e.file,
		Line:    int(node.StartPoint().Row) + 1,
	}

	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return false
	}

	first := args.NamedChild(0)
	if first.Type() == "string" {
		stmt.Module = stripQuotes(e.text(first))
	} else {
		// String-built module path: record the expression verbatim and
		// flag it so the classifier treats it as best-effort external.
		stmt.Module = e.text(first)
		stmt.LowConfidence = true
	}

	e.imports = append(e.imports, stmt)
	return true
}

func (e *extractor) text(node *sitter.Node) string {
	return string(e.content[node.StartByte():node.EndByte()])
}

// stripQuotes removes surrounding Python string quotes.
func stripQuotes(raw string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	return raw
}
