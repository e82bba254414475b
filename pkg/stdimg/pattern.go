package stdimg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strconv"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

// ErrPatternLoad wraps every failure to obtain a dither pattern.
var ErrPatternLoad = errors.New("pattern load failed")

// Pattern is a tileable threshold map. Only the red channel is consulted:
// R/255 is the local threshold. A Pattern is immutable once built and safe to
// share between concurrent pipeline invocations.
type Pattern struct {
	img *image.NRGBA
}

// NewPattern copies img into a Pattern. Empty images are rejected.
func NewPattern(img image.Image) (*Pattern, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrPatternLoad)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty pattern %dx%d", ErrPatternLoad, b.Dx(), b.Dy())
	}
	return &Pattern{img: ToNRGBA(img)}, nil
}

// Width returns the tile width in pixels.
func (p *Pattern) Width() int { return p.img.Rect.Dx() }

// Height returns the tile height in pixels.
func (p *Pattern) Height() int { return p.img.Rect.Dy() }

// Image returns the underlying tile. Callers must not modify it.
func (p *Pattern) Image() *image.NRGBA { return p.img }

// Threshold returns the normalized threshold for output pixel (x, y), tiling
// the pattern across the plane.
func (p *Pattern) Threshold(x, y int) float64 {
	return float64(p.red(x, y)) / 255
}

func (p *Pattern) red(x, y int) uint8 {
	pw, ph := p.Width(), p.Height()
	px := ((x % pw) + pw) % pw
	py := ((y % ph) + ph) % ph
	return p.img.Pix[py*p.img.Stride+px*4]
}

// Scale returns the pattern upscaled by an integer factor with
// nearest-neighbor sampling, so cell boundaries stay crisp.
func (p *Pattern) Scale(factor int) (*Pattern, error) {
	if factor < 1 {
		return nil, fmt.Errorf("%w: scale factor %d", ErrPatternLoad, factor)
	}
	if factor == 1 {
		return p, nil
	}
	return &Pattern{img: UpscaleNearest(p.img, factor)}, nil
}

// UpscaleNearest enlarges src by an integer factor without smoothing.
func UpscaleNearest(src *image.NRGBA, factor int) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// UniformPattern returns a w x h pattern whose every cell has threshold t/255.
func UniformPattern(w, h int, t uint8) *Pattern {
	return &Pattern{img: NewSolid(w, h, color.NRGBA{R: t, G: t, B: t, A: 255})}
}

// DotPattern builds a size x size clustered-dot tile: thresholds peak at the
// cell center and fall to zero at the corners, following
// 1 - smoothstep(0, 0.5, distance(cell - 0.5)). It is the pixel-exact
// counterpart of the procedural dot pattern of the dither shader.
func DotPattern(size int) *Pattern {
	if size < 1 {
		size = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := (float64(x)+0.5)/float64(size) - 0.5
			dy := (float64(y)+0.5)/float64(size) - 0.5
			d := math.Hypot(dx, dy)
			t := d / 0.5
			if t > 1 {
				t = 1
			}
			v := 1 - t*t*(3-2*t)
			c := uint8(math.Round(v * 255))
			i := img.PixOffset(x, y)
			img.Pix[i+0] = c
			img.Pix[i+1] = c
			img.Pix[i+2] = c
			img.Pix[i+3] = 255
		}
	}
	return &Pattern{img: img}
}

// PatternLoader obtains a pattern at an integer scale (1 = native resolution).
// Implementations must be safe for concurrent use and should load each scale
// at most once.
type PatternLoader interface {
	LoadPattern(ctx context.Context, scale int) (*Pattern, error)
}

// StaticPatternLoader serves an in-memory pattern.
type StaticPatternLoader struct {
	pattern *Pattern

	mu     sync.Mutex
	scaled map[int]*Pattern
}

// NewStaticPatternLoader wraps p.
func NewStaticPatternLoader(p *Pattern) *StaticPatternLoader {
	return &StaticPatternLoader{pattern: p, scaled: map[int]*Pattern{1: p}}
}

// LoadPattern returns the wrapped pattern scaled by scale.
func (l *StaticPatternLoader) LoadPattern(ctx context.Context, scale int) (*Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.pattern == nil {
		return nil, fmt.Errorf("%w: no pattern configured", ErrPatternLoad)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.scaled[scale]; ok {
		return p, nil
	}
	p, err := l.pattern.Scale(scale)
	if err != nil {
		return nil, err
	}
	l.scaled[scale] = p
	return p, nil
}

// FilePatternLoader decodes a pattern image from disk on first use and keeps
// every requested scale in memory. Concurrent first requests share a single
// decode.
type FilePatternLoader struct {
	path string

	group singleflight.Group
	mu    sync.RWMutex
	cache map[int]*Pattern
}

// NewFilePatternLoader returns a loader for the image at path.
func NewFilePatternLoader(path string) *FilePatternLoader {
	return &FilePatternLoader{path: path, cache: map[int]*Pattern{}}
}

// Path returns the pattern file path.
func (l *FilePatternLoader) Path() string { return l.path }

// LoadPattern returns the pattern at the requested integer scale. The call
// blocks until the load completes or ctx is done.
func (l *FilePatternLoader) LoadPattern(ctx context.Context, scale int) (*Pattern, error) {
	if scale < 1 {
		return nil, fmt.Errorf("%w: scale factor %d", ErrPatternLoad, scale)
	}
	if p := l.cached(scale); p != nil {
		return p, nil
	}
	ch := l.group.DoChan(strconv.Itoa(scale), func() (interface{}, error) {
		return l.load(scale)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Pattern), nil
	}
}

func (l *FilePatternLoader) cached(scale int) *Pattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[scale]
}

func (l *FilePatternLoader) load(scale int) (*Pattern, error) {
	if p := l.cached(scale); p != nil {
		return p, nil
	}
	var p *Pattern
	if scale == 1 {
		f, err := os.Open(l.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPatternLoad, err)
		}
		defer f.Close()
		img, format, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrPatternLoad, l.path, err)
		}
		if p, err = NewPattern(img); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"path":   l.path,
			"format": format,
			"size":   fmt.Sprintf("%dx%d", p.Width(), p.Height()),
		}).Debug("pattern loaded")
	} else {
		v, err, _ := l.group.Do("1", func() (interface{}, error) {
			return l.load(1)
		})
		if err != nil {
			return nil, err
		}
		if p, err = v.(*Pattern).Scale(scale); err != nil {
			return nil, err
		}
	}
	l.mu.Lock()
	l.cache[scale] = p
	l.mu.Unlock()
	return p, nil
}
