package stdimg

import "image"

// Invert replaces every color channel v of buf with 255-v, in place, and
// returns buf. Alpha is unchanged; applying Invert twice restores the input.
func Invert(buf *image.NRGBA) *image.NRGBA {
	if buf == nil {
		return nil
	}
	b := buf.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := buf.PixOffset(b.Min.X, y)
		end := i + 4*b.Dx()
		for ; i < end; i += 4 {
			buf.Pix[i+0] = 255 - buf.Pix[i+0]
			buf.Pix[i+1] = 255 - buf.Pix[i+1]
			buf.Pix[i+2] = 255 - buf.Pix[i+2]
		}
	}
	return buf
}

// Negate is the copying form of Invert; src is not modified.
func Negate(src *image.NRGBA) *image.NRGBA {
	if src == nil {
		return nil
	}
	return Invert(CloneNRGBA(src))
}
