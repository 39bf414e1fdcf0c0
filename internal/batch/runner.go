package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/form-segment/internal/annotation"
	"github.com/ironsheep/form-segment/internal/detection"
	"github.com/ironsheep/form-segment/internal/formerr"
	"github.com/ironsheep/form-segment/internal/imaging"
	"github.com/ironsheep/form-segment/internal/segment"
	"github.com/ironsheep/form-segment/internal/source"
)

// Mode selects how split rows are found.
type Mode string

const (
	// ModeLines detects rule lines and slices by band boundaries.
	ModeLines Mode = "lines"

	// ModeAnnotations splits above the handwritten word boxes and slices by a
	// single boundary.
	ModeAnnotations Mode = "annotations"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLines, ModeAnnotations:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeLines, ModeAnnotations)
}

// ReasonNoAnnotations marks forms absent from the annotation file.
const ReasonNoAnnotations = "no_annotations"

// Options controls where and how a run writes its crops.
type Options struct {
	Mode       Mode
	OutputDir  string
	Workers    int
	SaveHeader bool
}

// Runner segments every form of a source. Per-form failures are logged and
// recorded; they never stop the run.
type Runner struct {
	Source source.Source

	// Detector is used in ModeLines.
	Detector detection.Detector

	// Annotations and Words are used in ModeAnnotations. Words maps form id to
	// its raw annotation lines.
	Annotations *annotation.Detector
	Words       map[string][]string

	Options Options
	Logger  *slog.Logger
}

// Run processes all forms with up to Options.Workers in flight and returns the
// run summary. The error is non-nil only when the forms cannot be listed or
// ctx is canceled; the summary then covers the forms that finished.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	logger := r.logger()

	if err := r.validate(); err != nil {
		return nil, err
	}

	forms, err := r.Source.Forms(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		Mode:      r.Options.Mode,
		OutputDir: r.Options.OutputDir,
		StartedAt: time.Now(),
	}
	logger.Info("starting run", "run_id", summary.RunID, "mode", r.Options.Mode, "forms", len(forms))

	workers := r.Options.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]*FormResult, len(forms))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, form := range forms {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := r.ProcessForm(gctx, form)
			results[i] = &result
			logger.Debug("progress", "done", done.Add(1), "total", len(forms))
			return nil
		})
	}
	waitErr := g.Wait()

	for _, res := range results {
		if res != nil {
			summary.add(*res)
		}
	}
	summary.FinishedAt = time.Now()

	logger.Info("run complete",
		"run_id", summary.RunID,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, waitErr
}

// ProcessForm segments one form and writes its non-empty bands. Failures come
// back as a skipped result carrying the taxonomy reason.
func (r *Runner) ProcessForm(ctx context.Context, form source.Form) FormResult {
	logger := r.logger()
	start := time.Now()

	result := FormResult{ID: form.ID, Source: form.Path}
	skip := func(reason string, err error) FormResult {
		result.Status = StatusSkipped
		result.Reason = reason
		if err != nil {
			result.Error = err.Error()
		}
		result.Duration = time.Since(start)
		logger.Warn("skipping form", "form", form.ID, "reason", reason, "error", err)
		return result
	}

	var lines []string
	if r.Options.Mode == ModeAnnotations {
		var ok bool
		if lines, ok = r.Words[form.ID]; !ok {
			return skip(ReasonNoAnnotations, nil)
		}
	}

	img, err := r.Source.Load(ctx, form)
	if err != nil {
		return skip(formerr.Reason(err), err)
	}

	regions, estimated, err := r.segment(img, lines)
	if err != nil {
		return skip(formerr.Reason(err), err)
	}
	result.Lines = regions.Lines
	result.Estimated = estimated

	written, err := r.write(form.ID, regions)
	result.Written = written
	if err != nil {
		return skip("write_failure", err)
	}

	result.Status = StatusOK
	result.Duration = time.Since(start)
	logger.Info("segmented form", "form", form.ID, "lines", regions.Lines, "estimated", estimated, "files", len(written))
	return result
}

func (r *Runner) segment(img image.Image, lines []string) (*segment.Regions, bool, error) {
	if r.Options.Mode == ModeAnnotations {
		y, err := r.Annotations.Detect(img, lines)
		if err != nil {
			return nil, false, err
		}
		regions, err := segment.SliceBySingleBoundary(img, y)
		return regions, false, err
	}

	detected, err := r.Detector.Detect(img)
	if err != nil {
		return nil, false, err
	}
	regions, err := segment.SliceByBandBoundaries(img, detected.Lines)
	return regions, detected.Estimated, err
}

// write saves each non-empty band to <OutputDir>/<role dir>/<id>.png. The
// header band is written only with SaveHeader.
func (r *Runner) write(id string, regions *segment.Regions) ([]string, error) {
	written := make([]string, 0, 4)
	for _, band := range regions.Bands() {
		if band.Role == segment.RoleHeader && !r.Options.SaveHeader {
			continue
		}
		if band.Empty() {
			r.logger().Debug("empty band", "form", id, "role", band.Role)
			continue
		}

		path := filepath.Join(r.Options.OutputDir, band.Role.Dir(), id+".png")
		if err := imaging.Save(band.Image, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (r *Runner) validate() error {
	if r.Source == nil {
		return errors.New("batch: no source configured")
	}
	switch r.Options.Mode {
	case ModeLines:
		if r.Detector == nil {
			return errors.New("batch: lines mode needs a detector")
		}
	case ModeAnnotations:
		if r.Annotations == nil {
			return errors.New("batch: annotations mode needs an annotation detector")
		}
	default:
		return fmt.Errorf("batch: unknown mode %q", r.Options.Mode)
	}
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
