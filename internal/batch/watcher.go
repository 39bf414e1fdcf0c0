package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/ironsheep/form-segment/internal/imaging"
	"github.com/ironsheep/form-segment/internal/source"
)

// Watcher segments forms as they arrive in a directory.
type Watcher struct {
	Dir    string
	Runner *Runner

	// Attempts and Delay bound how long a half-written PDF is waited on
	// before its pages can be listed.
	Attempts uint
	Delay    time.Duration

	// OnResult, when set, receives every finished form.
	OnResult func(FormResult)

	// ready, when set, is closed once the directory is being watched.
	ready chan struct{}

	mu   sync.Mutex
	seen map[string]bool
}

// NewWatcher creates a watcher feeding runner.
func NewWatcher(dir string, runner *Runner, attempts int, delay time.Duration) *Watcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Watcher{
		Dir:      dir,
		Runner:   runner,
		Attempts: uint(attempts),
		Delay:    delay,
		seen:     make(map[string]bool),
	}
}

// Run watches Dir until ctx is done. Files already present are not processed;
// run a batch for those.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Runner.logger()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.Dir, err)
	}
	logger.Info("watching for forms", "dir", w.Dir, "mode", w.Runner.Options.Mode)
	if w.ready != nil {
		close(w.ready)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.claim(event.Name) {
				continue
			}
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				w.handle(ctx, path)
			}(event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)
		}
	}
}

// claim reports whether path is a form file not yet handed to a worker.
func (w *Watcher) claim(path string) bool {
	if !imaging.IsRaster(path) && !source.IsPDF(path) {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = make(map[string]bool)
	}
	if w.seen[path] {
		return false
	}
	w.seen[path] = true
	return true
}

func (w *Watcher) handle(ctx context.Context, path string) {
	logger := w.Runner.logger()

	var forms []source.Form
	err := retry.Do(
		func() error {
			var err error
			forms, err = source.FormsForFile(path)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(w.Attempts),
		retry.Delay(w.Delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		logger.Warn("skipping file", "file", filepath.Base(path), "error", err)
		return
	}

	for _, form := range forms {
		if ctx.Err() != nil {
			return
		}
		result := w.Runner.ProcessForm(ctx, form)
		if w.OnResult != nil {
			w.OnResult(result)
		}
	}
}
