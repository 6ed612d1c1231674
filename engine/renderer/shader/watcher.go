package shader

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change before reporting a
// batch.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reports changed .wgsl files in a directory. Editors write files in bursts, so
// changes are collected until the directory has been quiet for the debounce interval and
// then reported once.
type Watcher struct {
	fs       *fsnotify.Watcher
	log      *log.Logger
	debounce time.Duration
	onChange func(paths []string)

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher starts watching dir. onChange runs on the watcher goroutine with the sorted,
// de-duplicated paths of every .wgsl file created or written since the last report.
//
// Parameters:
//   - dir: the directory to watch
//   - debounce: the quiet interval, DefaultDebounce if zero
//   - onChange: the callback receiving changed paths
//
// Returns:
//   - *Watcher: the running watcher
//   - error: an error if the directory cannot be watched
func NewWatcher(dir string, debounce time.Duration, onChange func(paths []string)) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("shader watcher: nil callback")
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fs:       fs,
		log:      logger.Component("shader-watcher"),
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	w.log.Debug("watching shaders", "dir", dir)
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 || !strings.EqualFold(filepath.Ext(e.Name), ".wgsl") {
				continue
			}
			pending[e.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			w.log.Info("shader sources changed", "files", len(paths))
			w.onChange(paths)
		case <-w.done:
			timer.Stop()
			return
		}
	}
}

// Close stops the watcher and waits for its goroutine. A callback in progress finishes
// first.
//
// Returns:
//   - error: the error from closing the underlying watcher
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.fs.Close()
	})
	return err
}
