package stdimg

import (
	"context"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultExportScale is the output multiplier of ProcessImageForExport.
const DefaultExportScale = 2

// Params are the user-facing effect settings of the buffer pipeline.
// Contrast and Exposure are optional; tone adjustment runs only when both are
// set. The pipeline never modifies Params.
type Params struct {
	Contrast      *float64
	Exposure      *float64
	InvertImage   bool
	MedianEnabled bool
	MedianRadius  int
}

// Float returns a pointer to v, for filling the optional Params fields.
func Float(v float64) *float64 { return &v }

func (p Params) hasTone() bool {
	return p.Contrast != nil && p.Exposure != nil
}

// Pipeline runs the fixed chain fit, tone, dither, median, invert.
type Pipeline struct {
	// Loader supplies the dither pattern. Required.
	Loader PatternLoader
	// Interp is the resampler of the preview draw.
	Interp Interpolation
	// ExportInterp is the resampler of the export draw.
	ExportInterp Interpolation
	// ExportScale multiplies the export dimensions and the pattern.
	ExportScale int
}

// NewPipeline returns a Pipeline with bilinear preview sampling and
// nearest-neighbor export sampling at DefaultExportScale.
func NewPipeline(loader PatternLoader) *Pipeline {
	return &Pipeline{
		Loader:       loader,
		Interp:       InterpBilinear,
		ExportInterp: InterpNearest,
		ExportScale:  DefaultExportScale,
	}
}

// ProcessImage renders src into a dstW x dstH black and white buffer. A nil
// src yields (nil, nil). A pattern load failure aborts the run and no buffer
// is returned.
func (p *Pipeline) ProcessImage(ctx context.Context, src image.Image, dstW, dstH int, params Params) (*image.NRGBA, error) {
	return p.run(ctx, src, dstW, dstH, 1, p.Interp, params)
}

// ProcessImageForExport is ProcessImage at ExportScale times the requested
// size, dithered against the pattern upscaled by the same factor so the dot
// period matches the preview.
func (p *Pipeline) ProcessImageForExport(ctx context.Context, src image.Image, dstW, dstH int, params Params) (*image.NRGBA, error) {
	scale := p.ExportScale
	if scale < 1 {
		scale = DefaultExportScale
	}
	return p.run(ctx, src, dstW*scale, dstH*scale, scale, p.ExportInterp, params)
}

func (p *Pipeline) run(ctx context.Context, src image.Image, w, h, scale int, interp Interpolation, params Params) (*image.NRGBA, error) {
	if src == nil {
		log.Debug("no source image, nothing to process")
		return nil, nil
	}
	if p.Loader == nil {
		return nil, fmt.Errorf("%w: no pattern loader", ErrPatternLoad)
	}
	start := time.Now()
	logger := log.WithFields(log.Fields{
		"width":  w,
		"height": h,
		"scale":  scale,
		"interp": interp.String(),
	})

	buf, rect, err := DrawCover(src, w, h, interp)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{
		"fit_x": rect.X, "fit_y": rect.Y,
		"fit_w": rect.Width, "fit_h": rect.Height,
	}).Debug("source drawn")

	if params.hasTone() {
		AdjustTone(buf, *params.Contrast, *params.Exposure)
		logger.WithFields(log.Fields{
			"contrast": *params.Contrast,
			"exposure": *params.Exposure,
		}).Debug("tone adjusted")
	}

	pattern, err := p.Loader.LoadPattern(ctx, scale)
	if err != nil {
		return nil, fmt.Errorf("loading dither pattern: %w", err)
	}
	buf = PatternDither(buf, pattern)

	if params.MedianEnabled {
		buf = MedianFilter(buf, params.MedianRadius)
		logger.WithField("radius", params.MedianRadius).Debug("median applied")
	}
	if params.InvertImage {
		Invert(buf)
	}

	logger.WithField("duration", time.Since(start)).Debug("image processed")
	return buf, nil
}
