package stdimg

import (
	"image"
	"image/color"
	"image/draw"
)

// Rec. 601 luma weights, shared by the dither stage and the shader passes.
const (
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114
)

// ToNRGBA converts any image.Image to a freshly allocated *image.NRGBA whose
// bounds start at the origin. The source is never aliased.
func ToNRGBA(src image.Image) *image.NRGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := n.PixOffset(b.Min.X, b.Min.Y+y)
			di := out.PixOffset(0, y)
			copy(out.Pix[di:di+4*b.Dx()], n.Pix[si:si+4*b.Dx()])
		}
		return out
	}
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// CloneNRGBA returns a copy of the provided image.NRGBA with the same
// bounds. Sub-images are copied row by row.
func CloneNRGBA(src *image.NRGBA) *image.NRGBA {
	if src == nil {
		return nil
	}
	b := src.Rect
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		si := src.PixOffset(b.Min.X, y)
		di := out.PixOffset(b.Min.X, y)
		copy(out.Pix[di:di+4*b.Dx()], src.Pix[si:si+4*b.Dx()])
	}
	return out
}

// NewSolid returns a w x h buffer filled with c.
func NewSolid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// clampInt clamps v to [lo,hi]
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampFloatToUint8 ensures v in [0,255]
func clampFloatToUint8(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// luminance returns the normalized Rec. 601 luma of an 8-bit RGB triple.
func luminance(r, g, b uint8) float64 {
	return (LumaR*float64(r) + LumaG*float64(g) + LumaB*float64(b)) / 255
}
