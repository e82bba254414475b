// Package effect exposes the dither effect behind one capability with two
// strategies: BufferEffect runs the pixel-buffer pipeline of package stdimg,
// ShaderEffect evaluates the fragment passes of package shader. Canvas
// composes either result with a background and a text overlay.
package effect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Fepozopo/halftone/pkg/shader"
	"github.com/Fepozopo/halftone/pkg/stdimg"
	"github.com/Fepozopo/halftone/pkg/text"
)

// Request is one render of a source image into a width x height frame.
// Export renders at the export scale of the effect.
type Request struct {
	Source        image.Image
	Width, Height int
	Export        bool
}

// DitherEffect turns a source image into its dithered rendition.
//
// A nil Source yields (nil, nil). Any other failure returns an error and no
// image.
type DitherEffect interface {
	Name() string
	Render(ctx context.Context, req Request) (*image.NRGBA, error)
}

// BufferEffect is the reference strategy. Its output is always opaque pure
// black and white and supports every stage, median included.
type BufferEffect struct {
	Pipeline *stdimg.Pipeline
	Params   stdimg.Params
}

var _ DitherEffect = (*BufferEffect)(nil)

// NewBufferEffect returns a BufferEffect over a default pipeline.
func NewBufferEffect(loader stdimg.PatternLoader, params stdimg.Params) *BufferEffect {
	return &BufferEffect{Pipeline: stdimg.NewPipeline(loader), Params: params}
}

func (e *BufferEffect) Name() string { return "buffer" }

func (e *BufferEffect) Render(ctx context.Context, req Request) (*image.NRGBA, error) {
	if req.Export {
		return e.Pipeline.ProcessImageForExport(ctx, req.Source, req.Width, req.Height, e.Params)
	}
	return e.Pipeline.ProcessImage(ctx, req.Source, req.Width, req.Height, e.Params)
}

// ShaderEffect renders through the dither pass, optionally followed by the
// halftone-grid pass. Tone is applied without intermediate quantization,
// output alpha follows the source, and there is no median stage. The pattern
// period is defined at the request size and scales with the export factor.
type ShaderEffect struct {
	// Loader supplies the pattern texture when Dither.UsePatternTexture is
	// set. A nil Loader selects the procedural dot pattern.
	Loader   stdimg.PatternLoader
	Dither   shader.DitherParams
	Halftone *shader.HalftoneParams

	Interp       stdimg.Interpolation
	ExportInterp stdimg.Interpolation
	ExportScale  int
}

var _ DitherEffect = (*ShaderEffect)(nil)

// NewShaderEffect returns a ShaderEffect with the sampling defaults of the
// buffer pipeline.
func NewShaderEffect(loader stdimg.PatternLoader, dither shader.DitherParams) *ShaderEffect {
	return &ShaderEffect{
		Loader:       loader,
		Dither:       dither,
		Interp:       stdimg.InterpBilinear,
		ExportInterp: stdimg.InterpNearest,
		ExportScale:  stdimg.DefaultExportScale,
	}
}

func (e *ShaderEffect) Name() string { return "shader" }

func (e *ShaderEffect) Render(ctx context.Context, req Request) (*image.NRGBA, error) {
	if req.Source == nil {
		log.Debug("no source image, nothing to render")
		return nil, nil
	}
	scale, interp := 1, e.Interp
	if req.Export {
		scale, interp = e.ExportScale, e.ExportInterp
		if scale < 1 {
			scale = stdimg.DefaultExportScale
		}
	}
	w, h := req.Width*scale, req.Height*scale
	start := time.Now()

	fitted, _, err := stdimg.DrawCover(req.Source, w, h, interp)
	if err != nil {
		return nil, err
	}

	dither, err := shader.NewDitherPass(req.Width, req.Height, e.Dither)
	if err != nil {
		return nil, err
	}
	if e.Dither.UsePatternTexture && e.Loader != nil {
		pattern, err := e.Loader.LoadPattern(ctx, 1)
		if err != nil {
			dither.Release()
			return nil, fmt.Errorf("loading dither pattern: %w", err)
		}
		dither.SetPatternTexture(shader.PatternTexture(pattern))
	} else {
		// procedural dots
		dither.SetPatternTexture(nil)
	}

	composer := shader.NewComposer(req.Width, req.Height)
	defer composer.Release()
	composer.AddPass(dither)
	if e.Halftone != nil {
		grid, err := shader.NewHalftonePass(req.Width, req.Height, *e.Halftone)
		if err != nil {
			return nil, err
		}
		composer.AddPass(grid)
	}
	composer.SetSize(w, h)

	out, err := composer.Render(ctx, shader.NewTexture(fitted))
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"width":    w,
		"height":   h,
		"halftone": e.Halftone != nil,
		"duration": time.Since(start),
	}).Debug("shader effect rendered")
	return out, nil
}

// ShaderParams returns the dither uniforms that reproduce the buffer
// pipeline params p with a pattern texture patternWidth pixels wide. Tone
// falls back to identity unless both contrast and exposure are set. The
// median stage has no uniform and is dropped.
func ShaderParams(p stdimg.Params, patternWidth int) shader.DitherParams {
	d := shader.DefaultDitherParams()
	if p.Contrast != nil && p.Exposure != nil {
		d.Contrast = *p.Contrast
		d.Exposure = *p.Exposure
	}
	d.Invert = p.InvertImage
	d.Greyscale = true
	d.Blending = 1
	d.UsePatternTexture = true
	d.PatternSize = float64(max(patternWidth, 1))
	return d
}

// Agreement returns the fraction of pixels whose color channels are equal in
// a and b. Alpha is ignored.
func Agreement(a, b *image.NRGBA) (float64, error) {
	if a == nil || b == nil {
		return 0, errors.New("agreement needs two images")
	}
	if a.Rect.Size() != b.Rect.Size() {
		return 0, fmt.Errorf("size mismatch: %v vs %v", a.Rect.Size(), b.Rect.Size())
	}
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w*h == 0 {
		return 1, nil
	}
	same := 0
	for y := 0; y < h; y++ {
		ai := a.PixOffset(a.Rect.Min.X, a.Rect.Min.Y+y)
		bi := b.PixOffset(b.Rect.Min.X, b.Rect.Min.Y+y)
		for x := 0; x < w; x++ {
			if a.Pix[ai] == b.Pix[bi] && a.Pix[ai+1] == b.Pix[bi+1] && a.Pix[ai+2] == b.Pix[bi+2] {
				same++
			}
			ai += 4
			bi += 4
		}
	}
	return float64(same) / float64(w*h), nil
}

// Canvas is the output frame: a background, the processed image on top
// replacing the background pixels it covers, then an optional text overlay.
type Canvas struct {
	Width, Height int
	Background    color.Color
	// Text is drawn last when non-nil. It is given in canvas units and
	// scaled with the export factor.
	Text        *text.Settings
	ExportScale int
}

// NewCanvas returns a white width x height canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		Width:       width,
		Height:      height,
		Background:  color.White,
		ExportScale: stdimg.DefaultExportScale,
	}
}

// Compose renders src with e and lays the result out on the canvas. A nil
// src leaves the background (and text) only. The effect must render at the
// canvas size, so its export scale has to match ExportScale.
func (c *Canvas) Compose(ctx context.Context, e DitherEffect, src image.Image, export bool) (*image.NRGBA, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", stdimg.ErrInvalidGeometry, c.Width, c.Height)
	}
	scale := 1
	if export {
		scale = c.ExportScale
		if scale < 1 {
			scale = stdimg.DefaultExportScale
		}
	}
	out := image.NewNRGBA(image.Rect(0, 0, c.Width*scale, c.Height*scale))
	bg := c.Background
	if bg == nil {
		bg = color.White
	}
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if src != nil && e != nil {
		processed, err := e.Render(ctx, Request{Source: src, Width: c.Width, Height: c.Height, Export: export})
		if err != nil {
			return nil, err
		}
		if processed != nil {
			if got := processed.Bounds().Size(); got != out.Bounds().Size() {
				return nil, fmt.Errorf("%w: %s effect rendered %v for a %v canvas, export scales differ",
					stdimg.ErrInvalidGeometry, e.Name(), got, out.Bounds().Size())
			}
			draw.Draw(out, processed.Bounds().Sub(processed.Bounds().Min), processed, processed.Bounds().Min, draw.Src)
		}
	}

	if c.Text != nil {
		if err := text.Render(out, c.Text.Scaled(float64(scale))); err != nil {
			return nil, fmt.Errorf("drawing text: %w", err)
		}
	}
	return out, nil
}
