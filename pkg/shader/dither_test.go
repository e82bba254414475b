package shader

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/Fepozopo/halftone/pkg/stdimg"
)

func solidTexture(w, h int, c color.NRGBA) *Texture {
	return NewTexture(stdimg.NewSolid(w, h, c))
}

func noiseTexture(w, h int, seed uint32) *Texture {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	s := seed
	for i := range img.Pix {
		s = s*1664525 + 1013904223
		img.Pix[i] = uint8(s >> 24)
	}
	return NewTexture(img)
}

func renderPass(t *testing.T, p Pass, w, h int, src *Texture) *image.NRGBA {
	t.Helper()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if err := p.RenderInto(context.Background(), dst, src); err != nil {
		t.Fatalf("RenderInto: %v", err)
	}
	return dst
}

func TestGenerateDotPatternPeaksAtCellCenters(t *testing.T) {
	for _, c := range []Vec2{{0.5, 0.5}, {1.5, 0.5}, {-2.5, 7.5}} {
		if got := GenerateDotPattern(c); !approx(got, 1) {
			t.Errorf("center %+v = %v, want 1", c, got)
		}
	}
	for _, c := range []Vec2{{0, 0}, {1, 1}, {0, 0.5}, {3, 2.5}} {
		if got := GenerateDotPattern(c); !approx(got, 0) {
			t.Errorf("edge %+v = %v, want 0", c, got)
		}
	}
}

func TestGenerateDotPatternMatchesBufferTile(t *testing.T) {
	const size = 8
	tile := stdimg.DotPattern(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := GenerateDotPattern(V2((float64(x)+0.5)/size, (float64(y)+0.5)/size))
			if got, want := quantize(v), tile.Image().Pix[tile.Image().PixOffset(x, y)]; got != want {
				t.Fatalf("(%d,%d): shader %d, tile %d", x, y, got, want)
			}
		}
	}
}

func TestDitherPassDisableBypasses(t *testing.T) {
	src := noiseTexture(16, 12, 1)
	params := DefaultDitherParams()
	params.Disable = true
	params.Contrast = 2
	p, err := NewDitherPass(16, 12, params)
	if err != nil {
		t.Fatal(err)
	}
	out := renderPass(t, p, 16, 12, src)
	for i := range out.Pix {
		if out.Pix[i] != src.Image().Pix[i] {
			t.Fatalf("byte %d: %d != %d", i, out.Pix[i], src.Image().Pix[i])
		}
	}
}

func TestDitherPassBlendingZeroKeepsTonedColor(t *testing.T) {
	src := noiseTexture(10, 10, 2)
	params := DefaultDitherParams()
	params.Blending = 0
	p, _ := NewDitherPass(10, 10, params)
	out := renderPass(t, p, 10, 10, src)
	for i := range out.Pix {
		if out.Pix[i] != src.Image().Pix[i] {
			t.Fatalf("identity tone with blending 0 changed byte %d", i)
		}
	}

	params.Exposure = -1
	_ = p.Configure(params)
	out = renderPass(t, p, 10, 10, src)
	in := src.Image().Pix
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			want := uint8(math.Round(float64(in[i+c]) / 2))
			if d := int(out.Pix[i+c]) - int(want); d < -1 || d > 1 {
				t.Fatalf("byte %d = %d, want about %d", i+c, out.Pix[i+c], want)
			}
		}
		if out.Pix[i+3] != in[i+3] {
			t.Fatalf("alpha changed at %d", i)
		}
	}
}

func TestDitherPassUniformThreshold(t *testing.T) {
	tests := []struct {
		name      string
		grey      uint8
		threshold uint8
		invert    bool
		want      uint8
	}{
		{"above", 128, 100, false, 255},
		{"below", 128, 200, false, 0},
		{"above inverted", 128, 100, true, 0},
		{"below inverted", 128, 200, true, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultDitherParams()
			params.Invert = tt.invert
			p, _ := NewDitherPass(6, 6, params)
			p.SetPatternTexture(PatternTexture(stdimg.UniformPattern(3, 3, tt.threshold)))
			if !p.Params().UsePatternTexture {
				t.Fatalf("SetPatternTexture must enable the pattern texture")
			}
			out := renderPass(t, p, 6, 6, solidTexture(6, 6, color.NRGBA{R: tt.grey, G: tt.grey, B: tt.grey, A: 90}))
			for i := 0; i < len(out.Pix); i += 4 {
				if out.Pix[i] != tt.want || out.Pix[i+1] != tt.want || out.Pix[i+2] != tt.want {
					t.Fatalf("pixel %d = %v, want %d", i/4, out.Pix[i:i+3], tt.want)
				}
				if out.Pix[i+3] != 90 {
					t.Fatalf("alpha = %d, want source alpha 90", out.Pix[i+3])
				}
			}
		})
	}
}

func TestDitherPassProceduralThreshold(t *testing.T) {
	// with threshold 0 every non-black fragment is white
	params := DefaultDitherParams()
	params.Threshold = 0
	p, _ := NewDitherPass(8, 8, params)
	out := renderPass(t, p, 8, 8, solidTexture(8, 8, color.NRGBA{R: 3, G: 3, B: 3, A: 255}))
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 255 {
			t.Fatalf("pixel %d = %d, want white", i/4, out.Pix[i])
		}
	}

	// mid grey against the full dot pattern: black cores, white corners
	params.Threshold = 1
	_ = p.Configure(params)
	out = renderPass(t, p, 8, 8, solidTexture(8, 8, color.NRGBA{R: 128, G: 128, B: 128, A: 255}))
	if c := out.Pix[out.PixOffset(3, 3)]; c != 0 {
		t.Errorf("cell center = %d, want black", c)
	}
	if c := out.Pix[out.PixOffset(0, 0)]; c != 255 {
		t.Errorf("cell corner = %d, want white", c)
	}
}

func TestDitherPassGreyscaleSelectsLuma(t *testing.T) {
	// pure blue: luma 0.114, average 0.333; threshold 0.2 separates them
	src := solidTexture(4, 4, color.NRGBA{B: 255, A: 255})
	pattern := PatternTexture(stdimg.UniformPattern(1, 1, 51))
	for _, greyscale := range []bool{true, false} {
		params := DefaultDitherParams()
		params.Greyscale = greyscale
		p, _ := NewDitherPass(4, 4, params)
		p.SetPatternTexture(pattern)
		out := renderPass(t, p, 4, 4, src)
		want := uint8(255)
		if greyscale {
			want = 0
		}
		if out.Pix[0] != want {
			t.Errorf("greyscale=%v: got %d, want %d", greyscale, out.Pix[0], want)
		}
	}
}

// bandedPattern is a 2x4 tile: rows 0-1 hold threshold lo, rows 2-3 hi.
func bandedPattern(t *testing.T, lo, hi uint8) *stdimg.Pattern {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 4))
	for y := 0; y < 4; y++ {
		v := lo
		if y >= 2 {
			v = hi
		}
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	p, err := stdimg.NewPattern(img)
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	return p
}

func TestDitherPassNonSquarePatternTilesPerAxis(t *testing.T) {
	params := DefaultDitherParams()
	params.PatternSize = 2
	p, _ := NewDitherPass(8, 8, params)
	p.SetPatternTexture(PatternTexture(bandedPattern(t, 50, 200)))
	src := solidTexture(8, 8, color.NRGBA{R: 128, G: 128, B: 128, A: 255})

	check := func(out *image.NRGBA, band int) {
		t.Helper()
		b := out.Bounds()
		for y := 0; y < b.Dy(); y++ {
			want := uint8(0)
			if y%(4*band) < 2*band {
				want = 255
			}
			for x := 0; x < b.Dx(); x++ {
				if got := out.Pix[out.PixOffset(x, y)]; got != want {
					t.Fatalf("(%d,%d) = %d, want %d", x, y, got, want)
				}
			}
		}
	}
	check(renderPass(t, p, 8, 8, src), 1)

	p.Resize(16, 16)
	check(renderPass(t, p, 16, 16, src), 2)
}

func TestDitherPassResizeScalesPattern(t *testing.T) {
	pattern := stdimg.DotPattern(5)
	src := solidTexture(4, 4, color.NRGBA{R: 150, G: 150, B: 150, A: 255})
	params := DefaultDitherParams()
	params.PatternSize = 5
	p, _ := NewDitherPass(20, 20, params)
	p.SetPatternTexture(PatternTexture(pattern))

	preview := renderPass(t, p, 20, 20, src)
	p.Resize(40, 40)
	if p.Scale() != 2 {
		t.Fatalf("scale = %v, want 2", p.Scale())
	}
	export := renderPass(t, p, 40, 40, src)
	up := stdimg.UpscaleNearest(preview, 2)
	for i := range up.Pix {
		if up.Pix[i] != export.Pix[i] {
			t.Fatalf("export differs from upscaled preview at byte %d", i)
		}
	}
}

func TestDitherPassErrors(t *testing.T) {
	if _, err := NewDitherPass(0, 10, DefaultDitherParams()); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("zero base size: %v", err)
	}
	bad := DefaultDitherParams()
	bad.PatternSize = 0
	if _, err := NewDitherPass(10, 10, bad); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("zero pattern size: %v", err)
	}

	p, _ := NewDitherPass(10, 10, DefaultDitherParams())
	bad.PatternSize = -4
	if err := p.Configure(bad); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("negative pattern size: %v", err)
	}
	if err := p.Configure(DefaultHalftoneParams()); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("wrong params type: %v", err)
	}
	nan := DefaultDitherParams()
	nan.Blending = math.NaN()
	if err := p.Configure(nan); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("NaN blending: %v", err)
	}

	src := solidTexture(10, 10, color.NRGBA{A: 255})
	if err := p.RenderInto(context.Background(), image.NewNRGBA(image.Rect(0, 0, 5, 10)), src); err == nil {
		t.Fatalf("expected size mismatch error")
	}
	if err := p.RenderInto(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)), nil); err == nil {
		t.Fatalf("expected nil source error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.RenderInto(ctx, image.NewNRGBA(image.Rect(0, 0, 10, 10)), src); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled render: %v", err)
	}

	p.Release()
	if err := p.Configure(DefaultDitherParams()); !errors.Is(err, ErrReleased) {
		t.Fatalf("Configure after Release: %v", err)
	}
	if err := p.RenderInto(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)), src); !errors.Is(err, ErrReleased) {
		t.Fatalf("RenderInto after Release: %v", err)
	}
}

func TestSetPatternTextureNilDisables(t *testing.T) {
	p, _ := NewDitherPass(4, 4, DefaultDitherParams())
	p.SetPatternTexture(PatternTexture(stdimg.DotPattern(4)))
	p.SetPatternTexture(nil)
	if p.Params().UsePatternTexture {
		t.Fatalf("nil texture must disable the pattern texture")
	}
}

func BenchmarkDitherPass(b *testing.B) {
	src := noiseTexture(1080, 1080, 1)
	p, _ := NewDitherPass(1080, 1080, DefaultDitherParams())
	dst := image.NewNRGBA(image.Rect(0, 0, 1080, 1080))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.RenderInto(context.Background(), dst, src)
	}
}
