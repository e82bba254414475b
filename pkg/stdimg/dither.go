package stdimg

import "image"

// PatternDither thresholds buf against a tiled pattern and returns a new
// pure black and white buffer of the same size. A pixel becomes white when its
// Rec. 601 luma (normalized to [0,1]) is strictly greater than the pattern
// threshold at (x mod pw, y mod ph). Output alpha is always 255; buf is left
// untouched.
func PatternDither(buf *image.NRGBA, pattern *Pattern) *image.NRGBA {
	if buf == nil || pattern == nil {
		return nil
	}
	b := buf.Bounds()
	out := image.NewNRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		si := buf.PixOffset(b.Min.X, b.Min.Y+y)
		di := out.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < b.Dx(); x++ {
			l := luminance(buf.Pix[si], buf.Pix[si+1], buf.Pix[si+2])
			var v uint8
			if l > pattern.Threshold(x, y) {
				v = 255
			}
			out.Pix[di+0] = v
			out.Pix[di+1] = v
			out.Pix[di+2] = v
			out.Pix[di+3] = 255
			si += 4
			di += 4
		}
	}
	return out
}

// ThresholdDither is PatternDither against a single global threshold in [0,1].
func ThresholdDither(buf *image.NRGBA, threshold float64) *image.NRGBA {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	t := uint8(threshold*255 + 0.5)
	return PatternDither(buf, UniformPattern(1, 1, t))
}
