package source

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Loader retries form loads. Scanners and sync tools often expose a file
// before its last bytes land, so a failed decode is worth a second look.
type Loader struct {
	Source   Source
	Attempts uint
	Delay    time.Duration
	Logger   *slog.Logger
}

// NewLoader wraps src with retries. attempts below 1 mean a single try.
func NewLoader(src Source, attempts int, delay time.Duration, logger *slog.Logger) *Loader {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{Source: src, Attempts: uint(attempts), Delay: delay, Logger: logger}
}

// Forms delegates to the wrapped source.
func (l *Loader) Forms(ctx context.Context) ([]Form, error) {
	return l.Source.Forms(ctx)
}

// Load decodes form, retrying up to Attempts times. The returned error is the
// last attempt's, so errors.Is(err, formerr.ErrImageLoad) still holds.
func (l *Loader) Load(ctx context.Context, form Form) (image.Image, error) {
	var img image.Image
	err := retry.Do(
		func() error {
			loaded, err := l.Source.Load(ctx, form)
			if err != nil {
				return err
			}
			img = loaded
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(l.Attempts),
		retry.Delay(l.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			l.Logger.Debug("retrying form load", "form", form.ID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return img, nil
}
