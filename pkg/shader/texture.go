package shader

import (
	"image"
	"math"

	"github.com/Fepozopo/halftone/pkg/stdimg"
)

// Wrap selects how texture coordinates outside [0,1] are resolved.
type Wrap uint8

const (
	// WrapClamp clamps coordinates to the edge texels.
	WrapClamp Wrap = iota
	// WrapRepeat tiles the texture.
	WrapRepeat
)

// Filter selects the texture sampling filter.
type Filter uint8

const (
	// FilterNearest returns the texel containing the coordinate.
	FilterNearest Filter = iota
	// FilterLinear interpolates the four nearest texels.
	FilterLinear
)

func (f Filter) String() string {
	if f == FilterLinear {
		return "linear"
	}
	return "nearest"
}

// Texture is a read-only sampler over an NRGBA image. Coordinates are
// normalized with (0,0) at the top-left corner of the first texel.
type Texture struct {
	img    *image.NRGBA
	w, h   int
	Wrap   Wrap
	Filter Filter
}

// NewTexture copies img into a texture with clamp wrapping and nearest
// filtering.
func NewTexture(img image.Image) *Texture {
	n := stdimg.ToNRGBA(img)
	if n == nil {
		return nil
	}
	return &Texture{img: n, w: n.Rect.Dx(), h: n.Rect.Dy()}
}

// PatternTexture wraps a dither pattern as a repeating, nearest-filtered
// texture.
func PatternTexture(p *stdimg.Pattern) *Texture {
	if p == nil {
		return nil
	}
	img := p.Image()
	return &Texture{img: img, w: img.Rect.Dx(), h: img.Rect.Dy(), Wrap: WrapRepeat}
}

// Size returns the texture dimensions in texels.
func (t *Texture) Size() (int, int) { return t.w, t.h }

// Image returns the backing image. Callers must not modify it.
func (t *Texture) Image() *image.NRGBA { return t.img }

// Sample returns the filtered color at normalized coordinate uv.
func (t *Texture) Sample(uv Vec2) Vec4 {
	if t.w == 0 || t.h == 0 {
		return Vec4{}
	}
	u, v := uv.X, uv.Y
	if t.Wrap == WrapRepeat {
		u, v = Fract(u), Fract(v)
	} else {
		u, v = Clamp(u, 0, 1), Clamp(v, 0, 1)
	}
	if t.Filter == FilterLinear {
		return t.sampleLinear(u, v)
	}
	return t.texel(int(math.Floor(u*float64(t.w))), int(math.Floor(v*float64(t.h))))
}

func (t *Texture) sampleLinear(u, v float64) Vec4 {
	fx := u*float64(t.w) - 0.5
	fy := v*float64(t.h) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	c00 := t.texel(x0, y0)
	c10 := t.texel(x0+1, y0)
	c01 := t.texel(x0, y0+1)
	c11 := t.texel(x0+1, y0+1)
	lerp := func(a, b, c, d float64) float64 {
		return Mix(Mix(a, b, tx), Mix(c, d, tx), ty)
	}
	return Vec4{
		R: lerp(c00.R, c10.R, c01.R, c11.R),
		G: lerp(c00.G, c10.G, c01.G, c11.G),
		B: lerp(c00.B, c10.B, c01.B, c11.B),
		A: lerp(c00.A, c10.A, c01.A, c11.A),
	}
}

// texel fetches integer texel (x, y), resolving out-of-range indices with
// the wrap mode.
func (t *Texture) texel(x, y int) Vec4 {
	if t.Wrap == WrapRepeat {
		x = ((x % t.w) + t.w) % t.w
		y = ((y % t.h) + t.h) % t.h
	} else {
		x = min(max(x, 0), t.w-1)
		y = min(max(y, 0), t.h-1)
	}
	i := t.img.PixOffset(t.img.Rect.Min.X+x, t.img.Rect.Min.Y+y)
	p := t.img.Pix[i : i+4 : i+4]
	return Vec4{
		R: float64(p[0]) / 255,
		G: float64(p[1]) / 255,
		B: float64(p[2]) / 255,
		A: float64(p[3]) / 255,
	}
}
