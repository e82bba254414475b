package stdimg

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrInvalidGeometry is returned when a source or destination has a
// non-positive (or non-finite) dimension.
var ErrInvalidGeometry = errors.New("invalid geometry")

// FitRect describes where a source image is drawn inside a destination so
// that it covers the destination completely. Offsets are usually negative on
// the cropped axis.
type FitRect struct {
	X, Y          float64
	Width, Height float64
}

// Fit computes the cover-fit rectangle of a srcW x srcH image inside a
// dstW x dstH destination. The rectangle keeps the source aspect ratio and is
// centered on the overflowing axis; cropping is left to the drawing step.
func Fit(srcW, srcH, dstW, dstH float64) (FitRect, error) {
	for _, v := range [...]float64{srcW, srcH, dstW, dstH} {
		if !(v > 0) || math.IsInf(v, 0) {
			return FitRect{}, fmt.Errorf("%w: source %vx%v, destination %vx%v", ErrInvalidGeometry, srcW, srcH, dstW, dstH)
		}
	}
	srcAspect := srcW / srcH
	dstAspect := dstW / dstH

	var r FitRect
	if srcAspect > dstAspect {
		// wider than the destination: fill height, crop the sides
		r.Height = dstH
		r.Width = dstH * srcAspect
		r.X = (dstW - r.Width) / 2
	} else {
		// taller (or equal): fill width, crop top/bottom
		r.Width = dstW
		r.Height = dstW / srcAspect
		r.Y = (dstH - r.Height) / 2
	}
	return r, nil
}

// Interpolation selects the resampler used to draw a source into the
// working buffer.
type Interpolation int

const (
	// InterpBilinear matches a canvas with image smoothing enabled.
	InterpBilinear Interpolation = iota
	// InterpNearest matches a canvas with image smoothing disabled.
	InterpNearest
	// InterpCatmullRom is slower and sharper than bilinear.
	InterpCatmullRom
)

func (i Interpolation) String() string {
	switch i {
	case InterpNearest:
		return "nearest"
	case InterpCatmullRom:
		return "catmullrom"
	default:
		return "bilinear"
	}
}

// ParseInterpolation maps a textual name to an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "bilinear", "linear":
		return InterpBilinear, nil
	case "nearest", "nn":
		return InterpNearest, nil
	case "catmullrom", "bicubic":
		return InterpCatmullRom, nil
	}
	return InterpBilinear, fmt.Errorf("unknown interpolation %q", s)
}

func (i Interpolation) transformer() draw.Transformer {
	switch i {
	case InterpNearest:
		return draw.NearestNeighbor
	case InterpCatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// DrawCover allocates a dstW x dstH working buffer and draws src into it at
// its cover-fit rectangle. Overflow outside the destination is cropped.
func DrawCover(src image.Image, dstW, dstH int, interp Interpolation) (*image.NRGBA, FitRect, error) {
	if src == nil {
		return nil, FitRect{}, fmt.Errorf("source image is nil")
	}
	sb := src.Bounds()
	r, err := Fit(float64(sb.Dx()), float64(sb.Dy()), float64(dstW), float64(dstH))
	if err != nil {
		return nil, FitRect{}, err
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))

	sx := r.Width / float64(sb.Dx())
	sy := r.Height / float64(sb.Dy())
	// source-to-destination affine map
	s2d := f64.Aff3{
		sx, 0, r.X - sx*float64(sb.Min.X),
		0, sy, r.Y - sy*float64(sb.Min.Y),
	}
	interp.transformer().Transform(dst, s2d, src, sb, draw.Src, nil)
	return dst, r, nil
}
