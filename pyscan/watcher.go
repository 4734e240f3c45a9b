package pyscan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Root is the project directory to watch.
	Root string

	// DebounceDelay is how long to wait for more changes before processing.
	DebounceDelay time.Duration

	// Logger for logging events.
	Logger *slog.Logger
}

// WatchOperation indicates the type of file operation.
type WatchOperation string

const (
	OpCreate WatchOperation = "create"
	OpModify WatchOperation = "modify"
	OpDelete WatchOperation = "delete"
)

// WatchEvent represents a Python file change.
type WatchEvent struct {
	// Path is the file path relative to the watch root.
	Path string

	// Operation is the type of change.
	Operation WatchOperation

	// File is the re-parsed source file (nil for delete operations).
	File *SourceFile

	// Error if re-parsing failed.
	Error error
}

// Watcher watches a project tree for Python file changes and emits
// re-parsed results, debouncing bursts of filesystem events.
type Watcher struct {
	config  WatcherConfig
	parser  *Parser
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // path → most recent operation

	hashMu sync.RWMutex
	hashes map[string]string // rel path → content hash

	events chan WatchEvent
	wg     sync.WaitGroup
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if config.DebounceDelay == 0 {
		config.DebounceDelay = 100 * time.Millisecond
	}

	return &Watcher{
		config:  config,
		parser:  NewParser(config.Root),
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
		events:  make(chan WatchEvent, 100),
	}, nil
}

// Events returns the channel of watch events.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start begins watching the project tree for changes.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.config.Root); err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		// The event loop is the only sender, so it owns the close.
		defer w.wg.Done()
		defer close(w.events)
		w.processEvents(ctx)
	}()

	w.logger.Info("File watcher started",
		"root", w.config.Root,
		"debounce", w.config.DebounceDelay)

	return nil
}

// Stop stops the watcher and waits for the event loop to drain. The events
// channel is closed once no more sends can happen.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// addWatchesRecursive adds watches to all non-excluded directories.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if path != root && (skipDirs[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		}
		return nil
	})
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent accumulates a single fsnotify event for later processing.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if !strings.HasSuffix(path, ".py") {
		// Handle directory creation so new subtrees get watched.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				base := filepath.Base(path)
				if !skipDirs[base] && !strings.HasPrefix(base, ".") {
					_ = w.watcher.Add(path)
				}
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()
}

// flushPending processes accumulated changes.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.config.Root, path)
		event := WatchEvent{Path: relPath}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			event.Operation = OpDelete
			w.hashMu.Lock()
			delete(w.hashes, relPath)
			w.hashMu.Unlock()
			w.sendEvent(event)
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			event.Operation = OpDelete
			w.sendEvent(event)
			continue
		}

		sf, err := w.parser.ParseFile(ctx, path)
		if err != nil {
			event.Error = err
			w.sendEvent(event)
			continue
		}

		w.hashMu.RLock()
		oldHash, hadHash := w.hashes[relPath]
		w.hashMu.RUnlock()
		if hadHash && oldHash == sf.Hash {
			// Content unchanged.
			continue
		}

		w.hashMu.Lock()
		w.hashes[relPath] = sf.Hash
		w.hashMu.Unlock()

		if op.Has(fsnotify.Create) || !hadHash {
			event.Operation = OpCreate
		} else {
			event.Operation = OpModify
		}
		event.File = sf

		w.sendEvent(event)
	}
}

// sendEvent sends an event without blocking the debounce loop.
func (w *Watcher) sendEvent(event WatchEvent) {
	select {
	case w.events <- event:
	default:
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path)
	}
}
