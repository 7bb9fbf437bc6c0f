// Package export turns the host document into the artifact pair a
// generation request references: a JPEG of the untouched document and a PNG
// whose alpha marks the region to inpaint.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/document"
	"github.com/GriffinCanCode/comfybridge/internal/imaging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/monitoring"
)

// ErrExtraction reports a pixel read that came back malformed or partial.
// Exports are never retried automatically after it.
var ErrExtraction = errors.New("pixel extraction failed")

// Artifacts names the two artifact slots.
type Artifacts struct {
	RGBPath     string
	InpaintPath string
}

// Exists reports whether both artifacts are on disk.
func (a Artifacts) Exists() bool {
	for _, p := range []string{a.RGBPath, a.InpaintPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Pipeline runs PixelSource -> MaskCompositor -> Encoder.
type Pipeline struct {
	source  document.Source
	encoder *imaging.Encoder
	slots   Artifacts
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewPipeline creates a pipeline writing into slots.
func NewPipeline(source document.Source, encoder *imaging.Encoder, slots Artifacts, logger *logging.Logger, metrics *monitoring.Metrics) *Pipeline {
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Pipeline{
		source:  source,
		encoder: encoder,
		slots:   slots,
		logger:  logging.OrNop(logger).Named("export"),
		metrics: metrics,
	}
}

// Slots returns the artifact paths the pipeline writes.
func (p *Pipeline) Slots() Artifacts {
	return p.slots
}

// Run exports the current document. Either both artifacts are replaced or,
// on any failure, no new artifact is left behind.
func (p *Pipeline) Run(ctx context.Context) (Artifacts, error) {
	start := time.Now()
	artifacts, err := p.run(ctx)
	p.metrics.RecordExport(time.Since(start), Cause(err))
	if err != nil {
		p.logger.Warn("export aborted", zap.Error(err), zap.String("cause", Cause(err)))
		return Artifacts{}, err
	}
	p.logger.Debug("export complete",
		zap.String("rgb", artifacts.RGBPath),
		zap.String("inpaint", artifacts.InpaintPath),
		zap.Duration("took", time.Since(start)),
	)
	return artifacts, nil
}

func (p *Pipeline) run(ctx context.Context) (Artifacts, error) {
	mask, err := p.source.ExtractSelectionMask(ctx)
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: selection: %w", ErrExtraction, err)
	}

	pixels, err := p.source.ExtractPixels(ctx)
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if pixels == nil || pixels.Channels != 4 || len(pixels.Data) != pixels.Width*pixels.Height*4 {
		return Artifacts{}, fmt.Errorf("%w: raster does not match width*height*4", ErrExtraction)
	}

	if mask == nil {
		mask = imaging.FullMask(pixels.Width, pixels.Height)
	}
	masked, err := imaging.ApplyMask(pixels, mask)
	if err != nil {
		return Artifacts{}, err
	}

	rgb, err := imaging.StripAlpha(pixels)
	if err != nil {
		return Artifacts{}, err
	}
	jpegData, err := p.encoder.MarshalJPEG(rgb)
	if err != nil {
		return Artifacts{}, err
	}
	pngData, err := p.encoder.MarshalPNG(masked)
	if err != nil {
		return Artifacts{}, err
	}

	if err := writePair(p.slots, jpegData, pngData); err != nil {
		return Artifacts{}, err
	}
	return p.slots, nil
}

// writePair stages both files before touching either slot. If the second
// rename fails the first artifact is removed so no mismatched pair remains.
func writePair(slots Artifacts, rgb, inpaint []byte) error {
	rgbTmp, err := imaging.CreateTemp(slots.RGBPath, rgb)
	if err != nil {
		return err
	}
	inpaintTmp, err := imaging.CreateTemp(slots.InpaintPath, inpaint)
	if err != nil {
		os.Remove(rgbTmp)
		return err
	}

	if err := os.Rename(rgbTmp, slots.RGBPath); err != nil {
		os.Remove(rgbTmp)
		os.Remove(inpaintTmp)
		return fmt.Errorf("%w: %s: %v", imaging.ErrWrite, slots.RGBPath, err)
	}
	if err := os.Rename(inpaintTmp, slots.InpaintPath); err != nil {
		os.Remove(inpaintTmp)
		os.Remove(slots.RGBPath)
		return fmt.Errorf("%w: %s: %v", imaging.ErrWrite, slots.InpaintPath, err)
	}
	return nil
}

// Cause classifies an export error for metrics and user-facing messages.
func Cause(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, imaging.ErrWrite):
		return "write"
	case errors.Is(err, imaging.ErrEncode):
		return "encode"
	case errors.Is(err, imaging.ErrInvalidBuffer):
		return "invalid_buffer"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
