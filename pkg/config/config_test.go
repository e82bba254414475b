package config

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fepozopo/halftone/pkg/shader"
	"github.com/Fepozopo/halftone/pkg/stdimg"
	"github.com/Fepozopo/halftone/pkg/text"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaultsAreValid(t *testing.T) {
	Reset()
	require.NoError(t, Config.Validate())
	assert.Equal(t, "square", Config.HalftoneShader.Shape)
	assert.Equal(t, stdimg.DefaultExportScale, Config.Canvas.ExportScale)
}

func TestLoadConfigurationKeepsDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	p := writeFile(t, "halftone.toml", `
[main]
log_level = "debug"

[effect]
contrast = 1.4
invert_image = true
median_enabled = true
median_radius = 2

[halftone_shader]
shape = "diamond"
`)
	require.NoError(t, LoadConfiguration(p))
	assert.Equal(t, "debug", Config.Main.LogLevel)
	assert.Equal(t, 1.4, Config.Effect.Contrast)
	assert.Equal(t, 0.0, Config.Effect.Exposure)
	assert.Equal(t, 800, Config.Canvas.Width, "untouched sections keep their defaults")
	assert.Equal(t, "buffer", Config.Main.Engine)
	require.NoError(t, Config.Validate())

	params := Config.PipelineParams()
	require.NotNil(t, params.Contrast)
	assert.Equal(t, 1.4, *params.Contrast)
	assert.True(t, params.InvertImage)
	assert.Equal(t, 2, params.MedianRadius)

	hp, err := Config.HalftoneParams()
	require.NoError(t, err)
	assert.Equal(t, shader.ShapeDiamond, hp.Shape)
}

func TestLoadConfigurationErrors(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	require.NoError(t, LoadConfiguration(""))
	assert.Error(t, LoadConfiguration(filepath.Join(t.TempDir(), "missing.toml")))
	assert.Error(t, LoadConfiguration(writeFile(t, "bad.toml", "[effect\ncontrast = ")))
}

func TestWriteConfigRoundTrip(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	Config.Effect.Exposure = -0.25
	Config.Text.Content = "hello"
	p := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, WriteConfig(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[dither_shader]")
	assert.Contains(t, string(data), "pattern_size")

	Reset()
	require.NoError(t, LoadConfiguration(p))
	assert.Equal(t, -0.25, Config.Effect.Exposure)
	assert.Equal(t, "hello", Config.Text.Content)
}

func TestLoadEnv(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	env := writeFile(t, ".env", "HALFTONE_WIDTH=320\nHALFTONE_PATTERN=dots.png\n")
	t.Setenv(EnvHeight, "240")
	t.Setenv(EnvEngine, "shader")
	// godotenv.Load sets variables in the process; clear them afterwards
	t.Cleanup(func() {
		os.Unsetenv(EnvWidth)
		os.Unsetenv(EnvPattern)
	})

	require.NoError(t, LoadEnv(env, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, 320, Config.Canvas.Width)
	assert.Equal(t, 240, Config.Canvas.Height)
	assert.Equal(t, "dots.png", Config.Effect.Pattern)
	assert.Equal(t, "shader", Config.Main.Engine)

	_, isFile := Config.PatternLoader().(*stdimg.FilePatternLoader)
	assert.True(t, isFile)
}

func TestLoadEnvRejectsBadSize(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv(EnvWidth, "wide")
	assert.ErrorIs(t, LoadEnv(filepath.Join(t.TempDir(), "none.env")), ErrInvalidParam)
}

func TestValidateRanges(t *testing.T) {
	cases := map[string]func(c *config){
		"log level":         func(c *config) { c.Main.LogLevel = "loud" },
		"engine":            func(c *config) { c.Main.Engine = "gpu" },
		"width":             func(c *config) { c.Canvas.Width = 0 },
		"export scale":      func(c *config) { c.Canvas.ExportScale = 0 },
		"contrast":          func(c *config) { c.Effect.Contrast = 2.5 },
		"exposure":          func(c *config) { c.Effect.Exposure = -1.5 },
		"median radius":     func(c *config) { c.Effect.MedianRadius = -1 },
		"dot size":          func(c *config) { c.Effect.DotSize = 0 },
		"pattern size":      func(c *config) { c.DitherShader.PatternSize = 0 },
		"threshold":         func(c *config) { c.DitherShader.Threshold = 1.1 },
		"dither blending":   func(c *config) { c.DitherShader.Blending = -0.1 },
		"pixel size":        func(c *config) { c.HalftoneShader.PixelSize = -2 },
		"shape":             func(c *config) { c.HalftoneShader.Shape = "star" },
		"halftone blending": func(c *config) { c.HalftoneShader.Blending = 2 },
		"text size":         func(c *config) { c.Text.Content = "x"; c.Text.Size = 0 },
		"text color":        func(c *config) { c.Text.Content = "x"; c.Text.Color = "#zz" },
		"text align":        func(c *config) { c.Text.Content = "x"; c.Text.Align = "justify" },
	}
	for name, mutate := range cases {
		c := Defaults()
		mutate(&c)
		assert.ErrorIs(t, c.Validate(), ErrInvalidParam, name)
	}

	edge := Defaults()
	edge.Effect.Contrast, edge.Effect.Exposure = 2, -1
	edge.DitherShader.Threshold, edge.DitherShader.Blending = 0, 1
	assert.NoError(t, edge.Validate(), "range bounds are inclusive")
}

func TestTextSettings(t *testing.T) {
	c := Defaults()
	s, err := c.TextSettings()
	require.NoError(t, err)
	assert.Nil(t, s, "no content, no overlay")

	c.Text.Content = "Caption"
	c.Text.Align = "center"
	c.Text.Color = "red"
	c.Text.X, c.Text.Y = 10, 20
	s, err = c.TextSettings()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, text.AlignCenter, s.Align)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, color.NRGBAModel.Convert(s.Color))
	assert.Equal(t, 20.0, s.Y)
	assert.Equal(t, color.NRGBA{0, 0, 0, 0x80}, color.NRGBAModel.Convert(s.ShadowColor))
}

func TestShaderParams(t *testing.T) {
	c := Defaults()
	c.Effect.Contrast = 1.2
	c.DitherShader.Invert = true
	d := c.DitherParams()
	assert.Equal(t, 1.2, d.Contrast)
	assert.True(t, d.Invert)
	assert.Equal(t, 8.0, d.PatternSize)

	_, err := shader.NewDitherPass(10, 10, d)
	assert.NoError(t, err)
}

func TestBuiltInPatternLoader(t *testing.T) {
	c := Defaults()
	c.Effect.DotSize = 5
	p, err := c.PatternLoader().LoadPattern(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Width())
}
