package shader

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Fepozopo/halftone/pkg/stdimg"
)

// DitherParams are the uniforms of DitherPass.
type DitherParams struct {
	// PatternSize is the horizontal tile period in pixels at the base size.
	// A pattern texture keeps its aspect ratio vertically.
	PatternSize float64
	// Threshold scales the procedural dot pattern.
	Threshold float64
	Contrast  float64
	Exposure  float64
	Invert    bool
	// Greyscale selects luma over the channel average.
	Greyscale bool
	// Blending mixes the toned color (0) with the dithered decision (1).
	Blending float64
	Disable  bool
	// UsePatternTexture samples the pattern texture instead of the
	// procedural dot pattern.
	UsePatternTexture bool
}

// DefaultDitherParams returns the uniforms of a fresh DitherPass.
func DefaultDitherParams() DitherParams {
	return DitherParams{
		PatternSize: 8,
		Threshold:   1,
		Contrast:    1,
		Exposure:    0,
		Greyscale:   true,
		Blending:    1,
	}
}

func (p DitherParams) validate() error {
	if err := positive("pattern size", p.PatternSize); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"threshold": p.Threshold,
		"contrast":  p.Contrast,
		"exposure":  p.Exposure,
		"blending":  p.Blending,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, name)
		}
	}
	return nil
}

// GenerateDotPattern is the procedural clustered-dot threshold: 1 at the
// center of every unit cell, falling smoothly to 0 half a cell away.
func GenerateDotPattern(coord Vec2) float64 {
	d := coord.Fract().AddScalar(-0.5).Length()
	return 1 - Smoothstep(0, 0.5, d)
}

// ditherUniforms is the state one render reads.
type ditherUniforms struct {
	DitherParams
	resolution Vec2
	// patternSize is the tile period per axis in render pixels.
	patternSize Vec2
	pattern     *Texture
}

func (u *ditherUniforms) fragment(src *Texture, fragCoord Vec2) Vec4 {
	c := src.Sample(fragCoord.Div(u.resolution))
	if u.Disable {
		return c
	}
	toned := Vec4{
		R: stdimg.ToneValue(c.R, u.Contrast, u.Exposure),
		G: stdimg.ToneValue(c.G, u.Contrast, u.Exposure),
		B: stdimg.ToneValue(c.B, u.Contrast, u.Exposure),
		A: c.A,
	}
	l := brightness(toned, u.Greyscale)

	patternCoord := fragCoord.Div(u.patternSize)
	var t float64
	if u.UsePatternTexture && u.pattern != nil {
		t = u.pattern.Sample(patternCoord).R
	} else {
		t = GenerateDotPattern(patternCoord) * u.Threshold
	}

	var d float64
	if l > t {
		d = 1
	}
	if u.Invert {
		d = 1 - d
	}
	return MixRGB(toned, Gray(d), u.Blending)
}

// DitherPass thresholds the source against a tiled pattern, either a
// pattern texture or the procedural dot pattern, and blends the decision
// over the tone-adjusted color.
type DitherPass struct {
	mu            sync.RWMutex
	params        DitherParams
	pattern       *Texture
	baseW, baseH  int
	width, height int
	released      bool
}

var _ Pass = (*DitherPass)(nil)

// NewDitherPass returns a pass whose base size is width x height. The
// pattern period is defined at the base size; rendering at another size
// scales it by the width ratio.
func NewDitherPass(width, height int, params DitherParams) (*DitherPass, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: base size %dx%d", ErrInvalidParams, width, height)
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &DitherPass{
		params: params,
		baseW:  width,
		baseH:  height,
		width:  width,
		height: height,
	}, nil
}

// Configure replaces the uniforms; params must be a DitherParams.
func (p *DitherPass) Configure(params Params) error {
	dp, ok := params.(DitherParams)
	if !ok {
		return fmt.Errorf("%w: dither pass cannot take %T", ErrInvalidParams, params)
	}
	if err := dp.validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}
	p.params = dp
	return nil
}

// Params returns the current uniforms.
func (p *DitherPass) Params() DitherParams {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params
}

// SetPatternTexture sets the threshold texture. A non-nil texture enables
// UsePatternTexture, nil disables it.
func (p *DitherPass) SetPatternTexture(t *Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.pattern = t
	p.params.UsePatternTexture = t != nil
}

// Resize sets the render size.
func (p *DitherPass) Resize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.width, p.height = width, height
}

// Scale is the ratio of the render width to the base width.
func (p *DitherPass) Scale() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return float64(p.width) / float64(p.baseW)
}

func (p *DitherPass) uniforms() (*ditherUniforms, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.released {
		return nil, ErrReleased
	}
	scale := float64(p.width) / float64(p.baseW)
	period := p.params.PatternSize * scale
	size := Vec2{period, period}
	if p.params.UsePatternTexture && p.pattern != nil {
		// PatternSize spans the texture width; the height follows its aspect.
		if tw, th := p.pattern.Size(); tw > 0 && th > 0 {
			size.Y = period * float64(th) / float64(tw)
		}
	}
	return &ditherUniforms{
		DitherParams: p.params,
		resolution:   Vec2{float64(p.width), float64(p.height)},
		patternSize:  size,
		pattern:      p.pattern,
	}, nil
}

// RenderInto evaluates the pass for every pixel of dst, which must have the
// current render size.
func (p *DitherPass) RenderInto(ctx context.Context, dst *image.NRGBA, src *Texture) error {
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
		"pass":         "dither",
		"size":         fmt.Sprintf("%vx%v", u.resolution.X, u.resolution.Y),
		"pattern_size": fmt.Sprintf("%vx%v", u.patternSize.X, u.patternSize.Y),
		"texture":      u.UsePatternTexture && u.pattern != nil,
		"duration":     time.Since(start),
	}).Debug("pass rendered")
	return nil
}

// Release drops the pattern texture. Further use returns ErrReleased.
func (p *DitherPass) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
	p.pattern = nil
}
