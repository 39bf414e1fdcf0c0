package detection

import (
	"image"
	"log/slog"
	"sync"

	"github.com/ironsheep/form-segment/internal/imaging"
)

// DebugHook observes a detection result. It runs after the result is final and
// cannot change it.
type DebugHook func(src image.Image, lines []int, estimated bool)

// DefaultDebugPath is where overlays land unless configured otherwise. It is
// fixed rather than derived from a run's output directory.
const DefaultDebugPath = "outputs/debug_lines_fallback.png"

// debugMu serializes overlay writes; concurrent workers share one path.
var debugMu sync.Mutex

// Overlay draws lines on a copy of src: detected rules in red, fallback
// estimates in yellow, each labeled with its row.
func Overlay(src image.Image, lines []int, estimated bool) *image.RGBA {
	hex := imaging.DetectedLineHex
	if estimated {
		hex = imaging.EstimatedLineHex
	}

	overlay := make([]imaging.OverlayLine, 0, len(lines))
	for _, y := range lines {
		overlay = append(overlay, imaging.OverlayLine{
			Y:        y,
			ColorHex: hex,
			Label:    imaging.LineLabel(y, estimated),
		})
	}
	return imaging.DrawHorizontalLines(src, overlay)
}

// DebugFile returns a hook that writes the overlay to path, replacing the
// previous one. Write failures are logged, never returned.
func DebugFile(path string, logger *slog.Logger) DebugHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(src image.Image, lines []int, estimated bool) {
		if estimated {
			logger.Warn("falling back to estimated line positions", "lines", lines)
		}
		overlay := Overlay(src, lines, estimated)

		debugMu.Lock()
		err := imaging.Save(overlay, path)
		debugMu.Unlock()
		if err != nil {
			logger.Error("failed to write debug overlay", "path", path, "error", err)
			return
		}
		logger.Debug("wrote debug overlay", "path", path, "lines", lines, "estimated", estimated)
	}
}
