package stdimg

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pattern.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestPatternThresholdWraps(t *testing.T) {
	tile := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i, v := range []uint8{0, 51, 102, 255} {
		tile.Pix[i*4] = v
		tile.Pix[i*4+3] = 255
	}
	p, err := NewPattern(tile)
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	cases := []struct {
		x, y int
		want float64
	}{
		{0, 0, 0},
		{1, 0, 0.2},
		{2, 1, 0.4},
		{3, 3, 1},
		{-1, 0, 0.2},
		{-2, -1, 0.4},
	}
	for _, c := range cases {
		if got := p.Threshold(c.x, c.y); got != c.want {
			t.Errorf("Threshold(%d,%d) = %v, want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestNewPatternRejectsEmpty(t *testing.T) {
	if _, err := NewPattern(image.NewNRGBA(image.Rect(0, 0, 0, 3))); !errors.Is(err, ErrPatternLoad) {
		t.Fatalf("expected ErrPatternLoad, got %v", err)
	}
	if _, err := NewPattern(nil); !errors.Is(err, ErrPatternLoad) {
		t.Fatalf("expected ErrPatternLoad for nil, got %v", err)
	}
}

func TestPatternScaleNearest(t *testing.T) {
	p := DotPattern(5)
	s, err := p.Scale(2)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if s.Width() != 10 || s.Height() != 10 {
		t.Fatalf("scaled size %dx%d", s.Width(), s.Height())
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if s.Threshold(x, y) != p.Threshold(x/2, y/2) {
				t.Fatalf("scaled (%d,%d) does not replicate source (%d,%d)", x, y, x/2, y/2)
			}
		}
	}
	if same, _ := p.Scale(1); same != p {
		t.Fatalf("scale 1 should return the receiver")
	}
	if _, err := p.Scale(0); err == nil {
		t.Fatalf("expected error for scale 0")
	}
}

func TestDotPatternShape(t *testing.T) {
	p := DotPattern(9)
	center := p.Threshold(4, 4)
	if center < 0.99 {
		t.Fatalf("center threshold %v, want ~1", center)
	}
	if corner := p.Threshold(0, 0); corner != 0 {
		t.Fatalf("corner threshold %v, want 0", corner)
	}
	// thresholds fall off monotonically along the diagonal
	for i := 1; i <= 4; i++ {
		if p.Threshold(4-i, 4-i) > p.Threshold(5-i, 5-i) {
			t.Fatalf("not monotonic at %d", i)
		}
	}
}

func TestStaticPatternLoader(t *testing.T) {
	l := NewStaticPatternLoader(DotPattern(4))
	p1, err := l.LoadPattern(context.Background(), 1)
	if err != nil || p1.Width() != 4 {
		t.Fatalf("scale 1: %v %v", p1, err)
	}
	p2, err := l.LoadPattern(context.Background(), 3)
	if err != nil || p2.Width() != 12 {
		t.Fatalf("scale 3: %v", err)
	}
	again, _ := l.LoadPattern(context.Background(), 3)
	if again != p2 {
		t.Fatalf("scaled pattern not cached")
	}
	if _, err := NewStaticPatternLoader(nil).LoadPattern(context.Background(), 1); !errors.Is(err, ErrPatternLoad) {
		t.Fatalf("expected ErrPatternLoad, got %v", err)
	}
}

func TestFilePatternLoaderLoadsOnce(t *testing.T) {
	path := writePNG(t, makeSolid(3, 2, color.NRGBA{R: 77, G: 0, B: 0, A: 255}))
	l := NewFilePatternLoader(path)

	var wg sync.WaitGroup
	results := make([]*Pattern, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := l.LoadPattern(context.Background(), 1+i%2)
			if err != nil {
				t.Errorf("LoadPattern: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()
	for i, p := range results {
		if p == nil {
			t.Fatalf("result %d missing", i)
		}
		if p != results[i%2] {
			t.Fatalf("result %d is a distinct instance", i)
		}
	}
	if results[0].Width() != 3 || results[1].Width() != 6 || results[1].Height() != 4 {
		t.Fatalf("unexpected sizes %dx%d / %dx%d", results[0].Width(), results[0].Height(), results[1].Width(), results[1].Height())
	}
	if got := results[1].Threshold(5, 3); got != 77.0/255 {
		t.Fatalf("threshold %v", got)
	}
}

func TestFilePatternLoaderErrors(t *testing.T) {
	l := NewFilePatternLoader(filepath.Join(t.TempDir(), "missing.png"))
	if _, err := l.LoadPattern(context.Background(), 1); !errors.Is(err, ErrPatternLoad) {
		t.Fatalf("expected ErrPatternLoad, got %v", err)
	}
	if _, err := l.LoadPattern(context.Background(), 2); !errors.Is(err, ErrPatternLoad) {
		t.Fatalf("expected ErrPatternLoad at scale 2, got %v", err)
	}
	if _, err := l.LoadPattern(context.Background(), 0); !errors.Is(err, ErrPatternLoad) {
		t.Fatalf("expected ErrPatternLoad for scale 0, got %v", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFilePatternLoader(garbage).LoadPattern(context.Background(), 1); !errors.Is(err, ErrPatternLoad) {
		t.Fatalf("expected ErrPatternLoad for undecodable file, got %v", err)
	}
}

func TestFilePatternLoaderCanceled(t *testing.T) {
	path := writePNG(t, makeSolid(2, 2, color.NRGBA{A: 255}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewFilePatternLoader(path)
	// either the load wins the race or the context does; a canceled
	// context must never yield a wrong pattern
	p, err := l.LoadPattern(ctx, 1)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error %v", err)
	}
	if err == nil && p.Width() != 2 {
		t.Fatalf("unexpected pattern %dx%d", p.Width(), p.Height())
	}
}
