// Package workspace turns file saves under a project directory into
// companion activity: the saved file becomes the active document and a
// debounced trigger is fired.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"companion/candidate"
)

// maxDocumentBytes bounds how much of a saved file is read.
const maxDocumentBytes = 256 << 10

// Sink receives workspace activity. *dispatch.Scheduler implements it.
type Sink interface {
	SetActiveDocument(doc *candidate.Document)
	TouchFile(path string)
	Trigger(hint string)
}

var skippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// Watcher watches root and its subdirectories.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	sink    Sink
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWatcher(root string, sink Sink, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		root:    abs,
		sink:    sink,
		logger:  logger.Named("workspace"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipName(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("watch failed", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// Start begins delivering events. It does not block.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	go w.run(ctx)
}

// Stop ends the event loop and releases the watcher. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if skipName(filepath.Base(event.Name)) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			_ = w.addTree(event.Name)
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	doc, err := readDocument(event.Name)
	if err != nil {
		if !errors.Is(err, errBinary) {
			w.logger.Debug("read failed", zap.String("path", event.Name), zap.Error(err))
		}
		return
	}

	w.logger.Debug("file saved", zap.String("path", doc.Path))
	w.sink.SetActiveDocument(doc)
	w.sink.TouchFile(doc.Path)
	w.sink.Trigger("")
}

var errBinary = errors.New("binary file")

func readDocument(path string) (*candidate.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes))
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, errBinary
	}
	return &candidate.Document{
		Path:       path,
		LanguageID: LanguageID(path),
		Text:       string(data),
	}, nil
}

// skipName reports editor swap files, dotfiles and build directories.
func skipName(name string) bool {
	switch {
	case skippedDirs[name]:
		return true
	case strings.HasPrefix(name, "."), strings.HasPrefix(name, "#"):
		return true
	case strings.HasSuffix(name, "~"), strings.HasSuffix(name, ".swp"), strings.HasSuffix(name, ".tmp"):
		return true
	}
	return false
}

var languages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascriptreact",
	".ts":    "typescript",
	".tsx":   "typescriptreact",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".sh":    "shellscript",
	".sql":   "sql",
	".md":    "markdown",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".html":  "html",
	".css":   "css",
}

// LanguageID maps a file extension to an editor language id, or
// "plaintext".
func LanguageID(path string) string {
	if id, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return id
	}
	return "plaintext"
}
