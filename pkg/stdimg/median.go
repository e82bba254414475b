package stdimg

import "image"

// MedianFilter applies a square (2*radius+1)^2 median filter to the color
// channels of src and returns a new buffer. Out-of-range neighbors replicate
// the nearest edge pixel, so every window holds exactly (2r+1)^2 samples and
// the median is the sample at sorted index area/2. Alpha is copied from the
// center pixel. radius <= 0 returns an identical copy.
//
// Each row slides a per-channel histogram across the columns; a column of
// clamped samples enters on the right and leaves on the left.
func MedianFilter(src *image.NRGBA, radius int) *image.NRGBA {
	if src == nil {
		return nil
	}
	if radius <= 0 {
		return CloneNRGBA(src)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(b)
	if w == 0 || h == 0 {
		return out
	}
	side := 2*radius + 1
	// 0-based sorted index of the median sample
	k := side * side / 2

	var hist [3][256]int
	addColumn := func(x, y, delta int) {
		cx := b.Min.X + clampInt(x, 0, w-1)
		for oy := y - radius; oy <= y+radius; oy++ {
			i := src.PixOffset(cx, b.Min.Y+clampInt(oy, 0, h-1))
			hist[0][src.Pix[i+0]] += delta
			hist[1][src.Pix[i+1]] += delta
			hist[2][src.Pix[i+2]] += delta
		}
	}

	for y := 0; y < h; y++ {
		hist = [3][256]int{}
		for ox := -radius; ox <= radius; ox++ {
			addColumn(ox, y, 1)
		}
		for x := 0; x < w; x++ {
			if x > 0 {
				addColumn(x-radius-1, y, -1)
				addColumn(x+radius, y, 1)
			}
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			di := out.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := 0; c < 3; c++ {
				out.Pix[di+c] = histogramRank(&hist[c], k)
			}
			out.Pix[di+3] = src.Pix[si+3]
		}
	}
	return out
}

// histogramRank returns the value at 0-based sorted index k.
func histogramRank(hist *[256]int, k int) uint8 {
	sum := 0
	for v := 0; v < 256; v++ {
		sum += hist[v]
		if sum > k {
			return uint8(v)
		}
	}
	return 255
}
