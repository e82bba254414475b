package shader

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Halftone dot shapes. Shape is a float uniform: below 0.5 selects a
// circle, below 1.5 a square, anything else a diamond.
const (
	ShapeCircle  = 0.0
	ShapeSquare  = 1.0
	ShapeDiamond = 2.0
)

// ParseShape maps "circle", "square" or "diamond" to its uniform value.
func ParseShape(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "circle", "dot":
		return ShapeCircle, nil
	case "square":
		return ShapeSquare, nil
	case "diamond":
		return ShapeDiamond, nil
	}
	return 0, fmt.Errorf("%w: unknown shape %q", ErrInvalidParams, s)
}

// ShapeName returns the mask a shape uniform selects.
func ShapeName(shape float64) string {
	switch {
	case shape < 0.5:
		return "circle"
	case shape < 1.5:
		return "square"
	}
	return "diamond"
}

// HalftoneParams are the uniforms of HalftonePass.
type HalftoneParams struct {
	// PixelSize is the grid period in pixels at the base size.
	PixelSize float64
	Shape     float64
	// RotationAngle rotates the grid, in radians.
	RotationAngle float64
	Greyscale     bool
	Blending      float64
	Disable       bool
}

// DefaultHalftoneParams returns 6px square cells rotated by 45 degrees.
func DefaultHalftoneParams() HalftoneParams {
	return HalftoneParams{
		PixelSize:     6,
		Shape:         ShapeSquare,
		RotationAngle: math.Pi / 4,
		Blending:      1,
	}
}

func (p HalftoneParams) validate() error {
	if err := positive("pixel size", p.PixelSize); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"shape":          p.Shape,
		"rotation angle": p.RotationAngle,
		"blending":       p.Blending,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, name)
		}
	}
	return nil
}

// CircleMask is 1 inside a disc of the given radius, with a 0.1 soft edge.
func CircleMask(coord Vec2, radius float64) float64 {
	return 1 - Smoothstep(radius-0.1, radius+0.1, coord.Length())
}

// SquareMask is 1 inside an axis aligned square of half side size.
func SquareMask(coord Vec2, size float64) float64 {
	d := math.Max(math.Abs(coord.X)-size, math.Abs(coord.Y)-size)
	return 1 - Smoothstep(-0.1, 0.1, d)
}

// DiamondMask is 1 inside the L1 ball of radius size.
func DiamondMask(coord Vec2, size float64) float64 {
	d := math.Abs(coord.X) + math.Abs(coord.Y) - size
	return 1 - Smoothstep(-0.1, 0.1, d)
}

type halftoneUniforms struct {
	HalftoneParams
	resolution Vec2
	pixelSize  float64
}

func (u *halftoneUniforms) fragment(src *Texture, fragCoord Vec2) Vec4 {
	if u.Disable {
		return src.Sample(fragCoord.Div(u.resolution))
	}
	ps := u.pixelSize
	rotated := Rotate(fragCoord, u.RotationAngle)
	grid := rotated.Scale(1 / ps).Floor().Scale(ps)
	cellCenter := grid.AddScalar(ps * 0.5)
	cellCoord := rotated.Sub(cellCenter).Scale(1 / (ps * 0.5))

	sampleCoord := Rotate(cellCenter, -u.RotationAngle).Div(u.resolution).Clamp(0, 1)
	tex := src.Sample(sampleCoord)
	dotSize := brightness(tex, u.Greyscale)*0.8 + 0.1

	var mask float64
	switch {
	case u.Shape < 0.5:
		mask = CircleMask(cellCoord, dotSize)
	case u.Shape < 1.5:
		mask = SquareMask(cellCoord, dotSize)
	default:
		mask = DiamondMask(cellCoord, dotSize)
	}
	masked := Vec4{tex.R * mask, tex.G * mask, tex.B * mask, tex.A}
	return MixRGB(tex, masked, u.Blending)
}

// HalftonePass redraws the source as a rotated grid of dots, squares or
// diamonds whose size follows the brightness of the cell center.
type HalftonePass struct {
	mu            sync.RWMutex
	params        HalftoneParams
	baseW, baseH  int
	width, height int
	released      bool
}

var _ Pass = (*HalftonePass)(nil)

// NewHalftonePass returns a pass whose base size is width x height.
func NewHalftonePass(width, height int, params HalftoneParams) (*HalftonePass, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: base size %dx%d", ErrInvalidParams, width, height)
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &HalftonePass{
		params: params,
		baseW:  width,
		baseH:  height,
		width:  width,
		height: height,
	}, nil
}

// Configure replaces the uniforms; params must be a HalftoneParams.
func (p *HalftonePass) Configure(params Params) error {
	hp, ok := params.(HalftoneParams)
	if !ok {
		return fmt.Errorf("%w: halftone pass cannot take %T", ErrInvalidParams, params)
	}
	if err := hp.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}
	p.params = hp
	return nil
}

// Params returns the current uniforms.
func (p *HalftonePass) Params() HalftoneParams {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}

// Resize sets the render size.
func (p *HalftonePass) Resize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.width, p.height = width, height
}

func (p *HalftonePass) uniforms() (*halftoneUniforms, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.released {
		return nil, ErrReleased
	}
	scale := float64(p.width) / float64(p.baseW)
	return &halftoneUniforms{
		HalftoneParams: p.params,
		resolution:     Vec2{float64(p.width), float64(p.height)},
		pixelSize:      p.params.PixelSize * scale,
	}, nil
}

// RenderInto evaluates the pass for every pixel of dst.
func (p *HalftonePass) RenderInto(ctx context.Context, dst *image.NRGBA, src *Texture) error {
	u, err := p.uniforms()
	if err != nil {
		return err
	}
	if err := checkTarget(dst, src, int(u.resolution.X), int(u.resolution.Y)); err != nil {
		return err
	}
	start := time.Now()
	if err := Render(ctx, dst, func(fc Vec2) Vec4 { return u.fragment(src, fc) }); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"pass":       "halftone",
		"size":       fmt.Sprintf("%vx%v", u.resolution.X, u.resolution.Y),
		"pixel_size": u.pixelSize,
		"shape":      ShapeName(u.Shape),
		"duration":   time.Since(start),
	}).Debug("pass rendered")
	return nil
}

// Release marks the pass unusable.
func (p *HalftonePass) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}
