// Package pyscan walks Python project trees and extracts import statements
// using tree-sitter. Scanning is resilient: files that fail to parse are
// reported with a per-file syntax status and never abort the walk.
package pyscan

import (
	"crypto/sha256"
	"encoding/hex"
)

// ParseStatus indicates whether a source file parsed cleanly.
type ParseStatus string

const (
	// ParseOK means the file produced a usable parse tree.
	ParseOK ParseStatus = "ok"
	// ParseSyntaxError means tree-sitter reported at least one error node.
	// Imports recovered from the valid portions of the tree are still kept.
	ParseSyntaxError ParseStatus = "syntax-error"
)

// SyntaxError locates the first parse error in a file.
type SyntaxError struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ImportKind is the closed set of import constructs the parser recognizes.
type ImportKind string

const (
	// KindImport is a plain "import foo" or "import foo.bar" statement.
	KindImport ImportKind = "import"
	// KindFromImport is a "from foo import bar, baz" statement.
	KindFromImport ImportKind = "from-import"
	// KindWildcard is a "from foo import *" statement. The wildcarded
	// module itself is recorded, not its members.
	KindWildcard ImportKind = "wildcard-import"
	// KindDynamic is an importlib.import_module(...) or __import__(...)
	// call. Recorded best-effort; see LowConfidence.
	KindDynamic ImportKind = "dynamic-import"
)

// ImportStatement is a single import construct extracted from a source file.
// Produced once per parse and never mutated.
type ImportStatement struct {
	// Module is the dotted module path. Relative imports keep their
	// leading dots (".", "..pkg"). For dynamic imports whose argument is
	// not a string literal, Module holds the expression text verbatim.
	Module string `json:"module"`
	// Names lists the imported symbols for from-imports. Empty for plain
	// and wildcard imports.
	Names []string `json:"names,omitempty"`
	Kind  ImportKind `json:"kind"`
	// Guarded is true when the import sits inside a try or if block.
	// Guarded imports are still recorded; the parser does not execute code.
	Guarded bool `json:"guarded,omitempty"`
	// LowConfidence marks dynamic imports whose module path could not be
	// statically resolved. These are never dropped: a false positive is
	// cheaper than a missing dependency.
	LowConfidence bool `json:"low_confidence,omitempty"`
	// File is the originating source file path relative to the scan root.
	File string `json:"file"`
	Line int    `json:"line"`
}

// SourceFile is one scanned Python file. Immutable once produced.
type SourceFile struct {
	// Path is the absolute filesystem path.
	Path string `json:"path"`
	// RelPath is the path relative to the scan root.
	RelPath string `json:"rel_path"`
	// Hash is the sha256 of the file content, used for memoization and
	// change detection.
	Hash    string          `json:"hash"`
	Status  ParseStatus     `json:"status"`
	Syntax  *SyntaxError    `json:"syntax_error,omitempty"`
	Imports []ImportStatement `json:"imports,omitempty"`
}

// ComputeHash returns the hex-encoded sha256 of content.
func ComputeHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
