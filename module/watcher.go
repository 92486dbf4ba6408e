package module

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// SourceWatcher reports changes to source files under a root directory,
// including directories created after the watch started.
type SourceWatcher struct {
	root     string
	ext      string
	onChange func(path string)
	log      zerolog.Logger

	fsWatcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSourceWatcher watches files with extension ext (such as ".go") under
// root. onChange runs on the watcher goroutine.
func NewSourceWatcher(root, ext string, onChange func(path string), log zerolog.Logger) (*SourceWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("change callback cannot be nil")
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SourceWatcher{
		root:      root,
		ext:       ext,
		onChange:  onChange,
		log:       log,
		fsWatcher: fsWatcher,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start adds every directory under the root and begins watching.
func (w *SourceWatcher) Start() error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop ends the watch and waits for the watcher goroutine.
func (w *SourceWatcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *SourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *SourceWatcher) matches(path string) bool {
	return w.ext == "" || filepath.Ext(path) == w.ext
}

func (w *SourceWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Str("root", w.root).Msg("source watcher error")
		}
	}
}

func (w *SourceWatcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	if !w.matches(event.Name) {
		return
	}
	w.log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("source changed")
	w.onChange(event.Name)
}
