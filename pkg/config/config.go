// Package config holds the halftone settings: defaults, a TOML file, a
// .env file and HALFTONE_* environment overrides, applied in that order.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	log "github.com/sirupsen/logrus"

	"github.com/Fepozopo/halftone/pkg/shader"
	"github.com/Fepozopo/halftone/pkg/stdimg"
	"github.com/Fepozopo/halftone/pkg/text"
)

// ErrInvalidParam reports a setting outside its allowed range.
var ErrInvalidParam = errors.New("invalid parameter")

type config struct {
	Main           configMain     `toml:"main"`
	Canvas         configCanvas   `toml:"canvas"`
	Effect         configEffect   `toml:"effect"`
	DitherShader   configDither   `toml:"dither_shader"`
	HalftoneShader configHalftone `toml:"halftone_shader"`
	Text           configText     `toml:"text"`
}

type configMain struct {
	LogLevel string `toml:"log_level" comment:"panic, fatal, error, warn, info, debug or trace"`
	Engine   string `toml:"engine" comment:"buffer or shader"`
}

type configCanvas struct {
	Width       int `toml:"width"`
	Height      int `toml:"height"`
	ExportScale int `toml:"export_scale"`
}

type configEffect struct {
	Contrast      float64 `toml:"contrast" comment:"0 to 2, 1 leaves the image unchanged"`
	Exposure      float64 `toml:"exposure" comment:"-1 to 1, in stops"`
	InvertImage   bool    `toml:"invert_image"`
	MedianEnabled bool    `toml:"median_enabled"`
	MedianRadius  int     `toml:"median_radius"`
	Pattern       string  `toml:"pattern" comment:"pattern image; empty uses the built-in dot tile"`
	DotSize       int     `toml:"dot_size" comment:"tile size of the built-in dot pattern"`
}

type configDither struct {
	PatternSize float64 `toml:"pattern_size"`
	Threshold   float64 `toml:"threshold"`
	Greyscale   bool    `toml:"greyscale"`
	Blending    float64 `toml:"blending"`
	Invert      bool    `toml:"invert"`
	Disable     bool    `toml:"disable"`
}

type configHalftone struct {
	PixelSize     float64 `toml:"pixel_size"`
	Shape         string  `toml:"shape" comment:"circle, square or diamond"`
	RotationAngle float64 `toml:"rotation_angle" comment:"radians"`
	Greyscale     bool    `toml:"greyscale"`
	Blending      float64 `toml:"blending"`
	Disable       bool    `toml:"disable"`
}

type configText struct {
	Content       string  `toml:"content"`
	Font          string  `toml:"font"`
	Size          float64 `toml:"size"`
	Color         string  `toml:"color"`
	Align         string  `toml:"align"`
	Baseline      string  `toml:"baseline"`
	X             float64 `toml:"x"`
	Y             float64 `toml:"y"`
	LineHeight    float64 `toml:"line_height"`
	LetterSpacing float64 `toml:"letter_spacing"`
	Stroke        bool    `toml:"stroke"`
	StrokeColor   string  `toml:"stroke_color"`
	StrokeWidth   float64 `toml:"stroke_width"`
	Shadow        bool    `toml:"shadow"`
	ShadowOffsetX float64 `toml:"shadow_offset_x"`
	ShadowOffsetY float64 `toml:"shadow_offset_y"`
	ShadowBlur    float64 `toml:"shadow_blur"`
	ShadowColor   string  `toml:"shadow_color"`
}

// Config holds the active configuration. It starts with the defaults and
// is overwritten by LoadConfiguration and LoadEnv.
var Config = Defaults()

// Defaults returns the built-in configuration.
func Defaults() config {
	dither := shader.DefaultDitherParams()
	grid := shader.DefaultHalftoneParams()
	return config{
		Main: configMain{
			LogLevel: "info",
			Engine:   "buffer",
		},
		Canvas: configCanvas{
			Width:       800,
			Height:      800,
			ExportScale: stdimg.DefaultExportScale,
		},
		Effect: configEffect{
			Contrast: 1,
			Exposure: 0,
			DotSize:  8,
		},
		DitherShader: configDither{
			PatternSize: dither.PatternSize,
			Threshold:   dither.Threshold,
			Greyscale:   dither.Greyscale,
			Blending:    dither.Blending,
		},
		HalftoneShader: configHalftone{
			PixelSize:     grid.PixelSize,
			Shape:         shader.ShapeName(grid.Shape),
			RotationAngle: grid.RotationAngle,
			Blending:      grid.Blending,
		},
		Text: configText{
			Size:        24,
			Color:       "#000000",
			Align:       "left",
			Baseline:    "alphabetic",
			LineHeight:  1.2,
			StrokeColor: "#ffffff",
			StrokeWidth: 2,
			ShadowColor: "#00000080",
			ShadowBlur:  4,
		},
	}
}

// Reset restores the defaults.
func Reset() {
	Config = Defaults()
}

// LoadConfiguration loads the configuration file. An empty path is a no-op.
func LoadConfiguration(configPath string) error {
	if configPath == "" {
		return nil
	}
	fd, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer fd.Close()

	dec := toml.NewDecoder(fd)
	if err := dec.Decode(&Config); err != nil {
		return fmt.Errorf("%s: %w", configPath, err)
	}
	return nil
}

// Environment variables read by LoadEnv.
const (
	EnvPattern  = "HALFTONE_PATTERN"
	EnvLogLevel = "HALFTONE_LOG_LEVEL"
	EnvWidth    = "HALFTONE_WIDTH"
	EnvHeight   = "HALFTONE_HEIGHT"
	EnvEngine   = "HALFTONE_ENGINE"
)

// LoadEnv reads the given .env files (default ".env"), skipping missing ones,
// then applies the HALFTONE_* overrides. Variables already set in the
// process environment win over the files.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
		log.WithField("file", f).Debug("environment file loaded")
	}

	if v, ok := os.LookupEnv(EnvPattern); ok {
		Config.Effect.Pattern = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		Config.Main.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvEngine); ok {
		Config.Main.Engine = v
	}
	for name, dst := range map[string]*int{EnvWidth: &Config.Canvas.Width, EnvHeight: &Config.Canvas.Height} {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidParam, name, v)
		}
		*dst = n
	}
	return nil
}

// WriteConfig writes the active configuration to filename.
func WriteConfig(filename string) error {
	fd, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(fd).
		Indentation("  ").
		Order(toml.OrderPreserve)
	if err = enc.Encode(Config); err != nil {
		defer fd.Close()
		return err
	}
	return fd.Close()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParam, fmt.Sprintf(format, args...))
}

func inRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return invalid("%s must be in [%g, %g], got %g", name, lo, hi, v)
	}
	return nil
}

// Validate checks every setting of c. The core packages do not clamp; this
// is where out-of-range values are rejected.
func (c config) Validate() error {
	if _, err := log.ParseLevel(c.Main.LogLevel); err != nil {
		return invalid("log_level %q", c.Main.LogLevel)
	}
	switch c.Main.Engine {
	case "buffer", "shader":
	default:
		return invalid("engine must be buffer or shader, got %q", c.Main.Engine)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return invalid("canvas must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.ExportScale < 1 {
		return invalid("export_scale must be >= 1, got %d", c.Canvas.ExportScale)
	}

	e := c.Effect
	if err := inRange("contrast", e.Contrast, 0, 2); err != nil {
		return err
	}
	if err := inRange("exposure", e.Exposure, -1, 1); err != nil {
		return err
	}
	if e.MedianRadius < 0 {
		return invalid("median_radius must be >= 0, got %d", e.MedianRadius)
	}
	if e.DotSize < 1 {
		return invalid("dot_size must be >= 1, got %d", e.DotSize)
	}

	d := c.DitherShader
	if !(d.PatternSize > 0) {
		return invalid("pattern_size must be > 0, got %g", d.PatternSize)
	}
	if err := inRange("threshold", d.Threshold, 0, 1); err != nil {
		return err
	}
	if err := inRange("dither blending", d.Blending, 0, 1); err != nil {
		return err
	}

	h := c.HalftoneShader
	if !(h.PixelSize > 0) {
		return invalid("pixel_size must be > 0, got %g", h.PixelSize)
	}
	if _, err := shader.ParseShape(h.Shape); err != nil {
		return invalid("%v", err)
	}
	if err := inRange("halftone blending", h.Blending, 0, 1); err != nil {
		return err
	}

	if _, err := c.TextSettings(); err != nil {
		return err
	}
	return nil
}

// PipelineParams returns the buffer pipeline parameters.
func (c config) PipelineParams() stdimg.Params {
	return stdimg.Params{
		Contrast:      stdimg.Float(c.Effect.Contrast),
		Exposure:      stdimg.Float(c.Effect.Exposure),
		InvertImage:   c.Effect.InvertImage,
		MedianEnabled: c.Effect.MedianEnabled,
		MedianRadius:  c.Effect.MedianRadius,
	}
}

// PatternLoader returns a loader for the configured pattern file, or the
// built-in dot tile when none is set.
func (c config) PatternLoader() stdimg.PatternLoader {
	if c.Effect.Pattern != "" {
		return stdimg.NewFilePatternLoader(c.Effect.Pattern)
	}
	return stdimg.NewStaticPatternLoader(stdimg.DotPattern(c.Effect.DotSize))
}

// DitherParams returns the uniforms of the dither pass. Tone comes from the
// effect section.
func (c config) DitherParams() shader.DitherParams {
	d := c.DitherShader
	return shader.DitherParams{
		PatternSize: d.PatternSize,
		Threshold:   d.Threshold,
		Contrast:    c.Effect.Contrast,
		Exposure:    c.Effect.Exposure,
		Invert:      d.Invert,
		Greyscale:   d.Greyscale,
		Blending:    d.Blending,
		Disable:     d.Disable,
	}
}

// HalftoneParams returns the uniforms of the halftone-grid pass.
func (c config) HalftoneParams() (shader.HalftoneParams, error) {
	h := c.HalftoneShader
	shape, err := shader.ParseShape(h.Shape)
	if err != nil {
		return shader.HalftoneParams{}, invalid("%v", err)
	}
	return shader.HalftoneParams{
		PixelSize:     h.PixelSize,
		Shape:         shape,
		RotationAngle: h.RotationAngle,
		Greyscale:     h.Greyscale,
		Blending:      h.Blending,
		Disable:       h.Disable,
	}, nil
}

// TextSettings returns the overlay settings, or nil when there is no text.
func (c config) TextSettings() (*text.Settings, error) {
	t := c.Text
	if strings.TrimSpace(t.Content) == "" {
		return nil, nil
	}
	if !(t.Size > 0) {
		return nil, invalid("text size must be > 0, got %g", t.Size)
	}
	s := text.DefaultSettings()
	s.Content = t.Content
	s.FontPath = t.Font
	s.FontSize = t.Size
	s.X, s.Y = t.X, t.Y
	s.LineHeight = t.LineHeight
	s.LetterSpacing = t.LetterSpacing
	s.Stroke = t.Stroke
	s.StrokeWidth = t.StrokeWidth
	s.Shadow = t.Shadow
	s.ShadowOffsetX, s.ShadowOffsetY = t.ShadowOffsetX, t.ShadowOffsetY
	s.ShadowBlur = t.ShadowBlur

	var err error
	if s.Align, err = text.ParseAlign(t.Align); err != nil {
		return nil, invalid("%v", err)
	}
	if s.Baseline, err = text.ParseBaseline(t.Baseline); err != nil {
		return nil, invalid("%v", err)
	}
	for _, p := range []struct {
		name string
		src  string
		dst  *color.Color
	}{
		{"color", t.Color, &s.Color},
		{"stroke_color", t.StrokeColor, &s.StrokeColor},
		{"shadow_color", t.ShadowColor, &s.ShadowColor},
	} {
		if p.src == "" {
			continue
		}
		col, err := text.ParseColor(p.src)
		if err != nil {
			return nil, invalid("text %s: %v", p.name, err)
		}
		*p.dst = col
	}
	return &s, nil
}
