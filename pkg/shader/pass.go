package shader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrReleased is returned by a pass used after Release.
	ErrReleased = errors.New("shader pass released")
	// ErrInvalidParams is returned by Configure for unusable uniforms.
	ErrInvalidParams = errors.New("invalid shader parameters")
)

// Params is a uniform set accepted by a Pass. The concrete types are
// DitherParams and HalftoneParams.
type Params interface {
	validate() error
}

// Pass is one full-screen fragment effect.
//
// Configure replaces the uniforms, Resize sets the render size and
// re-derives the size-dependent uniforms, RenderInto evaluates every fragment
// of dst reading from src, and Release drops the pass resources. A pass is
// safe for concurrent use; a render always sees one consistent uniform set.
type Pass interface {
	Configure(params Params) error
	Resize(width, height int)
	RenderInto(ctx context.Context, dst *image.NRGBA, src *Texture) error
	Release()
}

// FragmentFunc returns the color of the fragment whose center is at
// fragCoord, in pixels from the top-left corner of the target.
type FragmentFunc func(fragCoord Vec2) Vec4

// bandRows is the number of target rows evaluated per task.
const bandRows = 16

// Render evaluates fn for every pixel of dst. Rows are split into bands that
// run concurrently, at most GOMAXPROCS at a time. Fragments are evaluated at
// pixel centers, (x+0.5, y+0.5).
func Render(ctx context.Context, dst *image.NRGBA, fn FragmentFunc) error {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y0 := 0; y0 < h; y0 += bandRows {
		g.Go(func() error {
			for y := y0; y < min(y0+bandRows, h); y++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := dst.PixOffset(b.Min.X, b.Min.Y+y)
				fy := float64(y) + 0.5
				for x := 0; x < w; x++ {
					c := fn(Vec2{float64(x) + 0.5, fy})
					dst.Pix[i+0] = quantize(c.R)
					dst.Pix[i+1] = quantize(c.G)
					dst.Pix[i+2] = quantize(c.B)
					dst.Pix[i+3] = quantize(c.A)
					i += 4
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func quantize(v float64) uint8 {
	return uint8(math.Round(Clamp(v, 0, 1) * 255))
}

// checkTarget verifies that dst matches the render size of a pass.
func checkTarget(dst *image.NRGBA, src *Texture, width, height int) error {
	if dst == nil {
		return errors.New("render target is nil")
	}
	if src == nil {
		return errors.New("source texture is nil")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: render size %dx%d", ErrInvalidParams, width, height)
	}
	if dst.Rect.Dx() != width || dst.Rect.Dy() != height {
		return fmt.Errorf("render target is %dx%d, pass is sized %dx%d", dst.Rect.Dx(), dst.Rect.Dy(), width, height)
	}
	return nil
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidParams, name, v)
	}
	return nil
}

// Composer runs a chain of passes, each reading the previous output. Two
// targets are alternated; each is cleared before a pass writes it.
type Composer struct {
	width, height int
	passes        []Pass
}

// NewComposer returns an empty chain rendering at width x height.
func NewComposer(width, height int) *Composer {
	return &Composer{width: width, height: height}
}

// AddPass appends p and sizes it to the composer.
func (c *Composer) AddPass(p Pass) {
	p.Resize(c.width, c.height)
	c.passes = append(c.passes, p)
}

// SetSize resizes the composer and every pass.
func (c *Composer) SetSize(width, height int) {
	c.width, c.height = width, height
	for _, p := range c.passes {
		p.Resize(width, height)
	}
}

// Render runs the chain on src and returns the output of the last pass. With
// no passes the source image is copied unchanged.
func (c *Composer) Render(ctx context.Context, src *Texture) (*image.NRGBA, error) {
	if src == nil {
		return nil, errors.New("source texture is nil")
	}
	if len(c.passes) == 0 {
		out := image.NewNRGBA(src.img.Rect)
		copy(out.Pix, src.img.Pix)
		return out, nil
	}
	var targets [2]*image.NRGBA
	read := src
	for i, p := range c.passes {
		write := targets[i%2]
		if write == nil {
			write = image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
			targets[i%2] = write
		} else {
			clear(write.Pix)
		}
		if err := p.RenderInto(ctx, write, read); err != nil {
			return nil, fmt.Errorf("pass %d: %w", i, err)
		}
		read = &Texture{img: write, w: c.width, h: c.height, Wrap: src.Wrap, Filter: src.Filter}
	}
	return read.img, nil
}

// Release releases every pass and empties the chain.
func (c *Composer) Release() {
	for _, p := range c.passes {
		p.Release()
	}
	c.passes = nil
}
