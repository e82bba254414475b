package cli

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Fepozopo/halftone/pkg/config"
	"github.com/Fepozopo/halftone/pkg/effect"
	"github.com/Fepozopo/halftone/pkg/shader"
)

var shaderFlags struct {
	effect  string
	scale   int
	check   bool
	width   int
	height  int
	pattern string

	patternSize float64
	threshold   float64
	pixelSize   float64
	shape       string
	rotation    float64
}

func init() {
	rootCmd.AddCommand(shaderCmd)
	d := config.Defaults()
	f := shaderCmd.Flags()
	f.StringVar(&shaderFlags.effect, "effect", "dither", "Passes to run: dither, halftone or both")
	f.IntVar(&shaderFlags.scale, "scale", 1, "Render at this multiple of the canvas size")
	f.BoolVar(&shaderFlags.check, "check", false, "Compile the WGSL passes and exit")
	f.IntVar(&shaderFlags.width, "width", d.Canvas.Width, "Canvas width")
	f.IntVar(&shaderFlags.height, "height", d.Canvas.Height, "Canvas height")
	f.StringVar(&shaderFlags.pattern, "pattern", "", "Pattern texture (default procedural dots)")
	f.Float64Var(&shaderFlags.patternSize, "pattern-size", d.DitherShader.PatternSize, "Pattern period in pixels")
	f.Float64Var(&shaderFlags.threshold, "threshold", d.DitherShader.Threshold, "Threshold of the procedural pattern")
	f.Float64Var(&shaderFlags.pixelSize, "pixel-size", d.HalftoneShader.PixelSize, "Halftone cell size in pixels")
	f.StringVar(&shaderFlags.shape, "shape", d.HalftoneShader.Shape, "Halftone shape: circle, square or diamond")
	f.Float64Var(&shaderFlags.rotation, "rotation", d.HalftoneShader.RotationAngle, "Halftone grid rotation in radians")
}

var shaderCmd = &cobra.Command{
	Use:   "shader <input> <output>",
	Short: "Render with the shader passes",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if shaderFlags.check {
			return checkWGSL(cmd.OutOrStdout())
		}
		if len(args) != 2 {
			return errors.New("shader needs an input and an output file")
		}
		c := &config.Config
		if err := applyFlags(cmd, map[string]func(){
			"width":        func() { c.Canvas.Width = shaderFlags.width },
			"height":       func() { c.Canvas.Height = shaderFlags.height },
			"pattern":      func() { c.Effect.Pattern = shaderFlags.pattern },
			"pattern-size": func() { c.DitherShader.PatternSize = shaderFlags.patternSize },
			"threshold":    func() { c.DitherShader.Threshold = shaderFlags.threshold },
			"pixel-size":   func() { c.HalftoneShader.PixelSize = shaderFlags.pixelSize },
			"shape":        func() { c.HalftoneShader.Shape = shaderFlags.shape },
			"rotation":     func() { c.HalftoneShader.RotationAngle = shaderFlags.rotation },
		}); err != nil {
			return err
		}
		if shaderFlags.scale < 1 {
			return fmt.Errorf("%w: scale must be >= 1, got %d", config.ErrInvalidParam, shaderFlags.scale)
		}

		e, err := newShaderEffect(shaderFlags.effect)
		if err != nil {
			return err
		}
		src, _, err := LoadImage(args[0])
		if err != nil {
			return err
		}
		e.ExportScale = shaderFlags.scale
		out, err := e.Render(cmd.Context(), effect.Request{
			Source: src,
			Width:  c.Canvas.Width,
			Height: c.Canvas.Height,
			Export: shaderFlags.scale > 1,
		})
		if err != nil {
			return err
		}
		return SaveImage(args[1], out)
	},
}

// newShaderEffect builds a ShaderEffect from the shader sections of the
// configuration. which selects the passes.
func newShaderEffect(which string) (*effect.ShaderEffect, error) {
	c := config.Config
	e := effect.NewShaderEffect(nil, c.DitherParams())
	if c.Effect.Pattern != "" {
		e.Loader = c.PatternLoader()
		e.Dither.UsePatternTexture = true
	}
	grid, err := c.HalftoneParams()
	if err != nil {
		return nil, err
	}
	switch which {
	case "dither":
	case "halftone":
		e.Dither.Disable = true
		e.Halftone = &grid
	case "both":
		e.Halftone = &grid
	default:
		return nil, fmt.Errorf("%w: effect must be dither, halftone or both, got %q", config.ErrInvalidParam, which)
	}
	return e, nil
}

// checkWGSL compiles every embedded WGSL pass with naga.
func checkWGSL(w io.Writer) error {
	var failed []error
	for _, name := range shader.WGSLNames() {
		words, err := shader.CompileWGSL(name)
		if err != nil {
			log.WithError(err).WithField("pass", name).Error("WGSL compilation failed")
			failed = append(failed, err)
			continue
		}
		fmt.Fprintf(w, "%s: ok, %d SPIR-V words\n", name, len(words))
	}
	return errors.Join(failed...)
}
