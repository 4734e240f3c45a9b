package pyscan

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// EntryInfo describes the shape of a program entry file: whether it defines
// a main callable, guards execution behind the conventional
// `if __name__ == "__main__":` check, and carries a module docstring.
type EntryInfo struct {
	Status       ParseStatus  `json:"status"`
	Syntax       *SyntaxError `json:"syntax_error,omitempty"`
	HasMainFunc  bool         `json:"has_main_func"`
	HasMainGuard bool         `json:"has_main_guard"`
	HasDocstring bool         `json:"has_docstring"`
}

// InspectEntry parses an entry file and reports its shape. Only I/O and
// context failures produce an error; syntax problems are part of the result.
func InspectEntry(ctx context.Context, path string) (*EntryInfo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entry file: %w", err)
	}

	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse entry file: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	info := &EntryInfo{Status: ParseOK}
	if root.HasError() {
		info.Status = ParseSyntaxError
		info.Syntax = firstSyntaxError(root)
	}

	info.HasDocstring = hasModuleDocstring(root, content)
	inspectEntryNode(root, content, info)
	return info, nil
}

// hasModuleDocstring checks whether the first statement is a string literal.
func hasModuleDocstring(root *sitter.Node, content []byte) bool {
	if root.NamedChildCount() == 0 {
		return false
	}
	first := root.NamedChild(0)
	if first.Type() == "expression_statement" && first.NamedChildCount() > 0 {
		return first.NamedChild(0).Type() == "string"
	}
	return false
}

// inspectEntryNode walks the tree looking for a main definition and the
// __main__ guard.
func inspectEntryNode(node *sitter.Node, content []byte, info *EntryInfo) {
	switch node.Type() {
	case "function_definition":
		if name := node.ChildByFieldName("name"); name != nil {
			if string(content[name.StartByte():name.EndByte()]) == "main" {
				info.HasMainFunc = true
			}
		}
	case "if_statement":
		if cond := node.ChildByFieldName("condition"); cond != nil && isMainGuard(cond, content) {
			info.HasMainGuard = true
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		inspectEntryNode(node.NamedChild(i), content, info)
	}
}

// isMainGuard matches a comparison between __name__ and the "__main__"
// literal, in either operand order and either quoting style.
func isMainGuard(cond *sitter.Node, content []byte) bool {
	if cond.Type() != "comparison_operator" {
		return false
	}
	if cond.NamedChildCount() < 2 {
		return false
	}
	var sawName, sawLiteral bool
	for _, side := range []*sitter.Node{cond.NamedChild(0), cond.NamedChild(1)} {
		text := string(content[side.StartByte():side.EndByte()])
		switch side.Type() {
		case "identifier":
			sawName = sawName || text == "__name__"
		case "string":
			sawLiteral = sawLiteral || stripQuotes(text) == "__main__"
		}
	}
	return sawName && sawLiteral
}
