package stdimg

import "image"

// AutoOrient returns img turned upright according to an EXIF orientation tag
// (1..8). Orientation 1 and unknown values return img unchanged.
func AutoOrient(img image.Image, orientation int) image.Image {
	if img == nil || orientation <= 1 || orientation > 8 {
		return img
	}
	src := ToNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	switch orientation {
	case 2: // mirrored horizontally
		return remap(src, w, h, func(x, y int) (int, int) { return w - 1 - x, y })
	case 3: // rotated 180
		return remap(src, w, h, func(x, y int) (int, int) { return w - 1 - x, h - 1 - y })
	case 4: // mirrored vertically
		return remap(src, w, h, func(x, y int) (int, int) { return x, h - 1 - y })
	case 5: // transpose
		return remap(src, h, w, func(x, y int) (int, int) { return y, x })
	case 6: // needs 90 clockwise
		return remap(src, h, w, func(x, y int) (int, int) { return h - 1 - y, x })
	case 7: // transverse
		return remap(src, h, w, func(x, y int) (int, int) { return h - 1 - y, w - 1 - x })
	default: // 8, needs 90 counter-clockwise
		return remap(src, h, w, func(x, y int) (int, int) { return y, w - 1 - x })
	}
}

// remap allocates a dw x dh image and copies each source pixel to the
// destination position returned by to.
func remap(src *image.NRGBA, dw, dh int, to func(x, y int) (int, int)) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := to(x, y)
			si := src.PixOffset(x, y)
			di := out.PixOffset(dx, dy)
			copy(out.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return out
}
