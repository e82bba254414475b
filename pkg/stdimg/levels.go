package stdimg

import (
	"image"
	"math"
)

// applyLUT maps the color channels of a copy of src through per-channel
// lookup tables. Alpha is copied.
func applyLUT(src *image.NRGBA, lut *[3][256]uint8) *image.NRGBA {
	out := ToNRGBA(src)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i+0] = lut[0][out.Pix[i+0]]
		out.Pix[i+1] = lut[1][out.Pix[i+1]]
		out.Pix[i+2] = lut[2][out.Pix[i+2]]
	}
	return out
}

func sameLUT(f func(v float64) float64) *[3][256]uint8 {
	var lut [3][256]uint8
	for v := 0; v < 256; v++ {
		m := uint8(math.Round(clampFloatToUint8(f(float64(v)/255) * 255)))
		lut[0][v], lut[1][v], lut[2][v] = m, m, m
	}
	return &lut
}

// Level remaps [blackPoint, whitePoint] (0..255) to the full range and applies
// the midtone gamma. whitePoint <= blackPoint leaves the image unchanged.
func Level(src *image.NRGBA, blackPoint, gamma, whitePoint float64) *image.NRGBA {
	if src == nil {
		return nil
	}
	if whitePoint <= blackPoint {
		return ToNRGBA(src)
	}
	span := whitePoint - blackPoint
	return applyLUT(src, sameLUT(func(v float64) float64 {
		n := math.Min(math.Max((v*255-blackPoint)/span, 0), 1)
		if gamma > 0 {
			n = math.Pow(n, 1/gamma)
		}
		return n
	}))
}

// Gamma applies v^(1/gamma) to every color channel. Non-positive or
// non-finite gamma leaves the image unchanged.
func Gamma(src *image.NRGBA, gamma float64) *image.NRGBA {
	if src == nil {
		return nil
	}
	if gamma <= 0 || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return ToNRGBA(src)
	}
	return applyLUT(src, sameLUT(func(v float64) float64 { return math.Pow(v, 1/gamma) }))
}

// Normalize stretches each color channel so its darkest value maps to 0 and
// its brightest to 255. Flat channels are left as they are.
func Normalize(src *image.NRGBA) *image.NRGBA {
	if src == nil {
		return nil
	}
	lo := [3]int{255, 255, 255}
	hi := [3]int{}
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := src.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			for c := 0; c < 3; c++ {
				v := int(src.Pix[i+c])
				lo[c] = min(lo[c], v)
				hi[c] = max(hi[c], v)
			}
			i += 4
		}
	}
	var lut [3][256]uint8
	for c := 0; c < 3; c++ {
		for v := 0; v < 256; v++ {
			if hi[c] <= lo[c] {
				lut[c][v] = uint8(v)
				continue
			}
			n := float64(clampInt(v, lo[c], hi[c])-lo[c]) / float64(hi[c]-lo[c])
			lut[c][v] = uint8(math.Round(n * 255))
		}
	}
	return applyLUT(src, &lut)
}

// AutoLevel is Normalize.
func AutoLevel(src *image.NRGBA) *image.NRGBA {
	return Normalize(src)
}

// AutoGamma picks the gamma that moves the mean luma to 0.5 and applies it.
// The estimate is clamped to [0.1, 10].
func AutoGamma(src *image.NRGBA) *image.NRGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return ToNRGBA(src)
	}
	mean := 0.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := src.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			mean += luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			i += 4
		}
	}
	mean /= float64(total)
	if mean <= 0 || mean >= 1 {
		return ToNRGBA(src)
	}
	// mean^e = 0.5
	e := math.Log(0.5) / math.Log(mean)
	e = math.Min(math.Max(e, 0.1), 10)
	return applyLUT(src, sameLUT(func(v float64) float64 { return math.Pow(v, e) }))
}

// Grayscale replaces the color channels with their Rec. 601 luma.
func Grayscale(src *image.NRGBA) *image.NRGBA {
	if src == nil {
		return nil
	}
	out := ToNRGBA(src)
	for i := 0; i < len(out.Pix); i += 4 {
		l := uint8(math.Round(luminance(out.Pix[i], out.Pix[i+1], out.Pix[i+2]) * 255))
		out.Pix[i+0], out.Pix[i+1], out.Pix[i+2] = l, l, l
	}
	return out
}
