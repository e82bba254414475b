package shader

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestRenderEvaluatesPixelCenters(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 5, 37))
	err := Render(context.Background(), dst, func(fc Vec2) Vec4 {
		return Vec4{R: (fc.X - 0.5) / 255, G: (fc.Y - 0.5) / 255, B: 0, A: 1}
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for y := 0; y < 37; y++ {
		for x := 0; x < 5; x++ {
			i := dst.PixOffset(x, y)
			if int(dst.Pix[i]) != x || int(dst.Pix[i+1]) != y || dst.Pix[i+3] != 255 {
				t.Fatalf("(%d,%d) = %v", x, y, dst.Pix[i:i+4])
			}
		}
	}
}

func TestRenderClampsOutput(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	_ = Render(context.Background(), dst, func(Vec2) Vec4 { return Vec4{-1, 2, 0.5, 1} })
	if dst.Pix[0] != 0 || dst.Pix[1] != 255 || dst.Pix[2] != 128 {
		t.Fatalf("got %v", dst.Pix[:4])
	}
}

func TestComposerChainsPasses(t *testing.T) {
	src := solidTexture(8, 8, color.NRGBA{R: 128, G: 128, B: 128, A: 255})

	dither, _ := NewDitherPass(8, 8, DefaultDitherParams())
	threshold := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	threshold.Pix[0], threshold.Pix[3] = 10, 255
	dither.SetPatternTexture(&Texture{img: threshold, w: 1, h: 1, Wrap: WrapRepeat})

	inverted := DefaultDitherParams()
	inverted.Invert = true
	second, _ := NewDitherPass(8, 8, inverted)
	second.SetPatternTexture(&Texture{img: threshold, w: 1, h: 1, Wrap: WrapRepeat})

	halftone := DefaultHalftoneParams()
	halftone.Disable = true
	third, _ := NewHalftonePass(8, 8, halftone)

	c := NewComposer(8, 8)
	c.AddPass(dither)
	c.AddPass(second)
	c.AddPass(third)
	out, err := c.Render(context.Background(), src)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// grey -> white -> inverted black -> unchanged
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 0 || out.Pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want opaque black", i/4, out.Pix[i:i+4])
		}
	}
	if src.Image().Pix[0] != 128 {
		t.Fatalf("source texture modified")
	}

	c.Release()
	if err := dither.Configure(DefaultDitherParams()); !errors.Is(err, ErrReleased) {
		t.Fatalf("composer Release must release passes, got %v", err)
	}
}

func TestComposerSetSizeResizesPasses(t *testing.T) {
	p, _ := NewDitherPass(10, 10, DefaultDitherParams())
	c := NewComposer(10, 10)
	c.AddPass(p)
	c.SetSize(30, 30)
	if p.Scale() != 3 {
		t.Fatalf("scale = %v, want 3", p.Scale())
	}
	out, err := c.Render(context.Background(), solidTexture(10, 10, color.NRGBA{A: 255}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Bounds().Dx() != 30 {
		t.Fatalf("output width %d", out.Bounds().Dx())
	}
}

func TestComposerWithoutPassesCopies(t *testing.T) {
	src := noiseTexture(4, 3, 8)
	out, err := NewComposer(4, 3).Render(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if &out.Pix[0] == &src.Image().Pix[0] {
		t.Fatalf("expected a copy")
	}
	for i := range out.Pix {
		if out.Pix[i] != src.Image().Pix[i] {
			t.Fatalf("byte %d differs", i)
		}
	}
	if _, err := NewComposer(4, 3).Render(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}
