package pyscan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned when the scan root does not exist or is not a
// directory. It is the only fatal scanner error; per-file problems are
// folded into each SourceFile.
var ErrNotFound = errors.New("path not found")

// skipDirs are directory names excluded from every scan: virtual
// environments, caches, and build output are never part of the project's
// own source tree.
var skipDirs = map[string]bool{
	"venv": true, ".venv": true, "env": true, ".env": true,
	"__pycache__": true, ".pytest_cache": true, ".mypy_cache": true,
	".tox": true, ".eggs": true, "site-packages": true,
	"node_modules": true, "vendor": true, "dist": true, "build": true,
	"output": true, ".git": true,
}

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// Root is the project directory to scan.
	Root string
	// Exclude holds additional doublestar globs matched against paths
	// relative to Root (e.g. "examples/**", "**/*_draft.py").
	Exclude []string
	// CacheSize bounds the parse memoization cache. Zero disables caching.
	CacheSize int
}

// Scanner walks a project tree and yields parsed SourceFile entries for
// every Python file. Parse results are memoized by content hash so repeated
// scans of an unchanged tree do minimal work.
type Scanner struct {
	cfg    ScannerConfig
	parser *Parser
	cache  *lru.Cache[string, []ImportStatement]
}

// NewScanner creates a Scanner for the given configuration.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	s := &Scanner{
		cfg:    cfg,
		parser: NewParser(cfg.Root),
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []ImportStatement](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create parse cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Scan walks the root and returns every Python source file found, in walk
// order. Files that fail to parse are included with a syntax-error status.
func (s *Scanner) Scan(ctx context.Context) ([]*SourceFile, error) {
	var files []*SourceFile
	err := s.ScanFunc(ctx, func(sf *SourceFile) error {
		files = append(files, sf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ScanFunc walks the root lazily, invoking fn for each SourceFile as it is
// produced. Returning an error from fn stops the walk.
func (s *Scanner) ScanFunc(ctx context.Context, fn func(*SourceFile) error) error {
	info, err := os.Stat(s.cfg.Root)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, s.cfg.Root)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrNotFound, s.cfg.Root)
	}

	return filepath.WalkDir(s.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, relErr := filepath.Rel(s.cfg.Root, path)
		if relErr != nil {
			relPath = path
		}

		if d.IsDir() {
			if path != s.cfg.Root && s.skipDir(d.Name(), relPath) {
				return fs.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".py") || s.excluded(relPath) {
			return nil
		}

		sf := s.parseWithCache(ctx, path)
		if sf == nil {
			return nil
		}
		return fn(sf)
	})
}

// parseWithCache parses one file, reusing cached import extraction when the
// content hash is unchanged. Read failures yield nil: the file vanished or
// is unreadable, which is a per-file condition, not a scan failure.
func (s *Scanner) parseWithCache(ctx context.Context, path string) *SourceFile {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	relPath, relErr := filepath.Rel(s.cfg.Root, path)
	if relErr != nil {
		relPath = path
	}

	hash := ComputeHash(content)
	if s.cache != nil {
		if cached, ok := s.cache.Get(hash); ok {
			// The cache is keyed by content alone, so byte-identical files
			// at different paths share an entry. Re-stamp File so relative
			// imports resolve against this file's directory, not the one
			// that first populated the cache.
			imports := make([]ImportStatement, len(cached))
			copy(imports, cached)
			for i := range imports {
				imports[i].File = relPath
			}
			return &SourceFile{
				Path:    path,
				RelPath: relPath,
				Hash:    hash,
				Status:  ParseOK,
				Imports: imports,
			}
		}
	}

	sf, err := s.parser.ParseSource(ctx, relPath, content)
	if err != nil {
		return nil
	}
	sf.Path = path

	// Only clean parses are cached: a cache hit reports ParseOK.
	if s.cache != nil && sf.Status == ParseOK {
		s.cache.Add(hash, sf.Imports)
	}
	return sf
}

func (s *Scanner) skipDir(name, relPath string) bool {
	if skipDirs[name] || strings.HasPrefix(name, ".") {
		return true
	}
	return s.excluded(relPath)
}

// excluded reports whether relPath matches a user exclusion glob.
func (s *Scanner) excluded(relPath string) bool {
	slashPath := filepath.ToSlash(relPath)
	for _, pattern := range s.cfg.Exclude {
		if ok, err := doublestar.Match(pattern, slashPath); err == nil && ok {
			return true
		}
	}
	return false
}
