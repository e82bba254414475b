package stdimg

import (
	"image"
	"math"
)

// AdjustTone applies exposure then contrast to every color channel of buf, in
// place. exposure is a gain of 2^exposure; contrast pivots around mid-grey
// (0.5 normalized). Alpha is left untouched. The order matters: for any
// exposure != 0 and contrast != 1 the two steps do not commute.
func AdjustTone(buf *image.NRGBA, contrast, exposure float64) *image.NRGBA {
	if buf == nil {
		return nil
	}
	lut := toneLUT(contrast, exposure)
	b := buf.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := buf.PixOffset(b.Min.X, y)
		end := i + 4*b.Dx()
		for ; i < end; i += 4 {
			buf.Pix[i+0] = lut[buf.Pix[i+0]]
			buf.Pix[i+1] = lut[buf.Pix[i+1]]
			buf.Pix[i+2] = lut[buf.Pix[i+2]]
		}
	}
	return buf
}

// ToneValue maps a single normalized channel value through exposure and
// contrast and clamps the result to [0,1]. The shader passes use it unquantized.
func ToneValue(v, contrast, exposure float64) float64 {
	v *= math.Pow(2, exposure)
	v = (v-0.5)*contrast + 0.5
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// toneLUT precomputes the 8-bit mapping; every channel goes through the same
// function, so 256 entries cover the whole buffer.
func toneLUT(contrast, exposure float64) *[256]uint8 {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		lut[v] = uint8(math.Round(ToneValue(float64(v)/255, contrast, exposure) * 255))
	}
	return &lut
}
