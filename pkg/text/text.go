// Package text draws caption text over a rendered canvas: multi-line
// content with alignment, line height, letter spacing, an optional stroke
// and an optional blurred drop shadow.
package text

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Fepozopo/halftone/pkg/stdimg"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrInvalidColor is returned by ParseColor.
var ErrInvalidColor = errors.New("invalid color")

// Align is the horizontal anchor of each line relative to Settings.X.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Baseline is the vertical anchor of the first line relative to Settings.Y.
type Baseline int

const (
	BaselineAlphabetic Baseline = iota
	BaselineTop
	BaselineMiddle
	BaselineBottom
)

// ParseAlign accepts left, center and right.
func ParseAlign(s string) (Align, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left", "start":
		return AlignLeft, nil
	case "center", "centre":
		return AlignCenter, nil
	case "right", "end":
		return AlignRight, nil
	}
	return AlignLeft, fmt.Errorf("unknown text alignment %q", s)
}

// ParseBaseline accepts alphabetic, top, middle and bottom.
func ParseBaseline(s string) (Baseline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "alphabetic":
		return BaselineAlphabetic, nil
	case "top", "hanging":
		return BaselineTop, nil
	case "middle":
		return BaselineMiddle, nil
	case "bottom", "ideographic":
		return BaselineBottom, nil
	}
	return BaselineAlphabetic, fmt.Errorf("unknown text baseline %q", s)
}

// Settings describe one text overlay. Settings are plain values: Render
// never keeps or mutates them.
type Settings struct {
	Content string
	// FontPath is a TrueType/OpenType file. Empty selects the built-in
	// 7x13 bitmap face, which ignores FontSize.
	FontPath string
	FontSize float64
	Color    color.Color
	Align    Align
	Baseline Baseline
	X, Y     float64
	// LineHeight multiplies FontSize to get the distance between lines.
	LineHeight    float64
	LetterSpacing float64

	Stroke      bool
	StrokeColor color.Color
	StrokeWidth float64

	Shadow        bool
	ShadowOffsetX float64
	ShadowOffsetY float64
	ShadowBlur    float64
	ShadowColor   color.Color
}

// DefaultSettings returns black 24px left-aligned text with no effects.
func DefaultSettings() Settings {
	return Settings{
		FontSize:    24,
		Color:       color.Black,
		LineHeight:  1.2,
		StrokeColor: color.White,
		StrokeWidth: 2,
		ShadowColor: color.NRGBA{A: 128},
		ShadowBlur:  4,
	}
}

// Scaled returns a copy of s with every length multiplied by f, for drawing
// the same overlay on an export canvas.
func (s Settings) Scaled(f float64) Settings {
	s.FontSize *= f
	s.X *= f
	s.Y *= f
	s.LetterSpacing *= f
	s.StrokeWidth *= f
	s.ShadowOffsetX *= f
	s.ShadowOffsetY *= f
	s.ShadowBlur *= f
	return s
}

// Lines splits the content on newlines.
func (s Settings) Lines() []string {
	return strings.Split(s.Content, "\n")
}

// LoadFace opens the face described by path and size. An empty path returns
// the built-in bitmap face. The caller closes the face.
func LoadFace(path string, size float64) (font.Face, error) {
	if path == "" {
		return basicfont.Face7x13, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", path, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("creating font face: %w", err)
	}
	return face, nil
}

// MeasureLine returns the advance width of line in pixels, including
// letterSpacing between glyphs.
func MeasureLine(face font.Face, line string, letterSpacing float64) float64 {
	if letterSpacing == 0 {
		return fixedToFloat(font.MeasureString(face, line))
	}
	total := 0.0
	n := 0
	for _, r := range line {
		if n > 0 {
			total += letterSpacing
		}
		total += fixedToFloat(font.MeasureString(face, string(r)))
		n++
	}
	return total
}

// layers are temporary coverage masks reused across Render calls.
var layers = sync.Pool{
	New: func() any { return new(image.Alpha) },
}

func acquireLayer(r image.Rectangle) *image.Alpha {
	a := layers.Get().(*image.Alpha)
	n := r.Dx() * r.Dy()
	if cap(a.Pix) < n {
		a.Pix = make([]uint8, n)
	}
	a.Pix = a.Pix[:n]
	clear(a.Pix)
	a.Stride = r.Dx()
	a.Rect = r
	return a
}

func releaseLayer(a *image.Alpha) {
	if a != nil {
		layers.Put(a)
	}
}

// Render draws s onto dst. Empty or whitespace-only content draws nothing.
// A font that cannot be loaded falls back to the built-in face with a
// warning.
func Render(dst draw.Image, s Settings) error {
	if dst == nil {
		return fmt.Errorf("text: nil destination")
	}
	if strings.TrimSpace(s.Content) == "" {
		return nil
	}
	if s.FontSize <= 0 {
		return fmt.Errorf("text: font size must be positive, got %g", s.FontSize)
	}
	face, err := LoadFace(s.FontPath, s.FontSize)
	if err != nil {
		log.WithError(err).WithField("font", s.FontPath).Warn("falling back to the built-in font")
		face = basicfont.Face7x13
	}
	defer face.Close()

	bounds := dst.Bounds()
	fill := acquireLayer(bounds)
	defer releaseLayer(fill)
	drawGlyphs(fill, face, s)

	coverage := fill
	if s.Stroke && s.StrokeWidth > 0 {
		stroke := acquireLayer(bounds)
		defer releaseLayer(stroke)
		dilate(stroke, fill, s.StrokeWidth/2)
		coverage = stroke
	}

	if s.Shadow && s.ShadowColor != nil {
		drawShadow(dst, coverage, s)
	}
	if coverage != fill {
		draw.DrawMask(dst, bounds, image.NewUniform(orDefault(s.StrokeColor, color.White)), image.Point{}, coverage, bounds.Min, draw.Over)
	}
	draw.DrawMask(dst, bounds, image.NewUniform(orDefault(s.Color, color.Black)), image.Point{}, fill, bounds.Min, draw.Over)
	return nil
}

// drawGlyphs rasterizes every line of s into mask.
func drawGlyphs(mask *image.Alpha, face font.Face, s Settings) {
	m := face.Metrics()
	ascent := fixedToFloat(m.Ascent)
	descent := fixedToFloat(m.Descent)
	y := s.Y
	switch s.Baseline {
	case BaselineTop:
		y += ascent
	case BaselineMiddle:
		y += (ascent - descent) / 2
	case BaselineBottom:
		y -= descent
	}
	lineHeight := s.FontSize * s.LineHeight
	if lineHeight <= 0 {
		lineHeight = fixedToFloat(m.Height)
	}

	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: face}
	for i, line := range s.Lines() {
		x := s.X
		switch s.Align {
		case AlignCenter:
			x -= MeasureLine(face, line, s.LetterSpacing) / 2
		case AlignRight:
			x -= MeasureLine(face, line, s.LetterSpacing)
		}
		d.Dot = fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(y + float64(i)*lineHeight)}
		if s.LetterSpacing == 0 {
			d.DrawString(line)
			continue
		}
		for _, r := range line {
			d.DrawString(string(r))
			d.Dot.X += floatToFixed(s.LetterSpacing)
		}
	}
}

// dilate writes into dst the maximum coverage of src within a disc of the
// given radius around each pixel.
func dilate(dst, src *image.Alpha, radius float64) {
	r := int(math.Ceil(radius))
	b := src.Rect
	var offsets []image.Point
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) <= radius*radius+0.5 {
				offsets = append(offsets, image.Pt(dx, dy))
			}
		}
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := src.Pix[src.PixOffset(x, y)]
			if v == 0 {
				continue
			}
			for _, o := range offsets {
				p := image.Pt(x+o.X, y+o.Y)
				if !p.In(b) {
					continue
				}
				i := dst.PixOffset(p.X, p.Y)
				if dst.Pix[i] < v {
					dst.Pix[i] = v
				}
			}
		}
	}
}

// drawShadow blurs coverage, tints it with the shadow color and composites
// it under the text at the shadow offset.
func drawShadow(dst draw.Image, coverage *image.Alpha, s Settings) {
	sc := color.NRGBAModel.Convert(s.ShadowColor).(color.NRGBA)
	b := coverage.Rect
	layer := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := coverage.Pix[coverage.PixOffset(b.Min.X+x, b.Min.Y+y)]
			i := layer.PixOffset(x, y)
			layer.Pix[i+0] = sc.R
			layer.Pix[i+1] = sc.G
			layer.Pix[i+2] = sc.B
			layer.Pix[i+3] = uint8((uint32(a)*uint32(sc.A) + 127) / 255)
		}
	}
	// canvas shadows use sigma = blur/2
	if s.ShadowBlur > 0 {
		layer = stdimg.SeparableGaussianBlur(layer, s.ShadowBlur/2)
	}
	off := image.Pt(int(math.Round(s.ShadowOffsetX)), int(math.Round(s.ShadowOffsetY)))
	draw.Draw(dst, b.Add(off), layer, image.Point{}, draw.Over)
}

// ParseColor accepts CSS color names, #rgb, #rgba, #rrggbb and #rrggbbaa.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidColor)
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, nil
	}
	if s[0] != '#' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	hex := s[1:]
	switch len(hex) {
	case 3, 4:
		var long strings.Builder
		for _, r := range hex {
			long.WriteRune(r)
			long.WriteRune(r)
		}
		hex = long.String()
	case 6, 8:
	default:
		return nil, fmt.Errorf("%w: hex length %d", ErrInvalidColor, len(hex))
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func orDefault(c, def color.Color) color.Color {
	if c == nil {
		return def
	}
	return c
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
