package cli

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Fepozopo/halftone/pkg/config"
	"github.com/Fepozopo/halftone/pkg/effect"
	"github.com/Fepozopo/halftone/pkg/stdimg"
)

// effectOptions are the flags shared by process and batch. They override
// the configuration when given.
type effectOptions struct {
	width, height int
	contrast      float64
	exposure      float64
	invert        bool
	median        bool
	medianRadius  int
	pattern       string
	dotSize       int
	engine        string
	export        bool
	pre           []string

	text      string
	font      string
	fontSize  float64
	textColor string
	textX     float64
	textY     float64
	align     string
}

func (o *effectOptions) register(cmd *cobra.Command) {
	d := config.Defaults()
	f := cmd.Flags()
	f.IntVar(&o.width, "width", d.Canvas.Width, "Canvas width")
	f.IntVar(&o.height, "height", d.Canvas.Height, "Canvas height")
	f.Float64Var(&o.contrast, "contrast", d.Effect.Contrast, "Contrast, 0 to 2")
	f.Float64Var(&o.exposure, "exposure", d.Effect.Exposure, "Exposure in stops, -1 to 1")
	f.BoolVar(&o.invert, "invert", false, "Invert the dithered image")
	f.BoolVar(&o.median, "median", false, "Median filter the dithered image")
	f.IntVar(&o.medianRadius, "median-radius", d.Effect.MedianRadius, "Median radius")
	f.StringVar(&o.pattern, "pattern", "", "Pattern image (default built-in dots)")
	f.IntVar(&o.dotSize, "dot-size", d.Effect.DotSize, "Tile size of the built-in dot pattern")
	f.StringVar(&o.engine, "engine", d.Main.Engine, "Rendering engine: buffer or shader")
	f.BoolVar(&o.export, "export", false, "Render at the export scale")
	f.StringArrayVar(&o.pre, "pre", nil, `Pre-processing stage applied to the source, e.g. "blur 1.5" (repeatable)`)

	f.StringVar(&o.text, "text", "", "Text overlay, \\n separates lines")
	f.StringVar(&o.font, "font", "", "TrueType or OpenType font file")
	f.Float64Var(&o.fontSize, "font-size", d.Text.Size, "Font size in canvas pixels")
	f.StringVar(&o.textColor, "text-color", d.Text.Color, "Text color, name or #hex")
	f.Float64Var(&o.textX, "text-x", 0, "Text anchor X")
	f.Float64Var(&o.textY, "text-y", 0, "Text anchor Y")
	f.StringVar(&o.align, "align", d.Text.Align, "Text alignment: left, center or right")
}

// apply copies the flags given on the command line into the configuration.
func (o *effectOptions) apply(cmd *cobra.Command) error {
	c := &config.Config
	return applyFlags(cmd, map[string]func(){
		"width":         func() { c.Canvas.Width = o.width },
		"height":        func() { c.Canvas.Height = o.height },
		"contrast":      func() { c.Effect.Contrast = o.contrast },
		"exposure":      func() { c.Effect.Exposure = o.exposure },
		"invert":        func() { c.Effect.InvertImage = o.invert },
		"median":        func() { c.Effect.MedianEnabled = o.median },
		"median-radius": func() { c.Effect.MedianRadius = o.medianRadius },
		"pattern":       func() { c.Effect.Pattern = o.pattern },
		"dot-size":      func() { c.Effect.DotSize = o.dotSize },
		"engine":        func() { c.Main.Engine = o.engine },
		"text":          func() { c.Text.Content = strings.ReplaceAll(o.text, `\n`, "\n") },
		"font":          func() { c.Text.Font = o.font },
		"font-size":     func() { c.Text.Size = o.fontSize },
		"text-color":    func() { c.Text.Color = o.textColor },
		"text-x":        func() { c.Text.X = o.textX },
		"text-y":        func() { c.Text.Y = o.textY },
		"align":         func() { c.Text.Align = o.align },
	})
}

// newEffect builds the effect selected by the configuration engine.
func newEffect(ctx context.Context) (effect.DitherEffect, error) {
	c := config.Config
	loader := c.PatternLoader()
	params := c.PipelineParams()

	if c.Main.Engine == "shader" {
		p, err := loader.LoadPattern(ctx, 1)
		if err != nil {
			return nil, err
		}
		if params.MedianEnabled {
			log.Warn("the shader engine has no median stage, ignoring it")
		}
		e := effect.NewShaderEffect(loader, effect.ShaderParams(params, p.Width()))
		e.ExportScale = c.Canvas.ExportScale
		return e, nil
	}
	e := effect.NewBufferEffect(loader, params)
	e.Pipeline.ExportScale = c.Canvas.ExportScale
	return e, nil
}

// renderer turns input files into composed canvases. It is safe for
// concurrent use.
type renderer struct {
	effect effect.DitherEffect
	canvas *effect.Canvas
	stages []stdimg.Stage
	export bool
}

func newRenderer(ctx context.Context, export bool, pre []string) (*renderer, error) {
	stages, err := stdimg.ParseStages(pre)
	if err != nil {
		return nil, err
	}
	e, err := newEffect(ctx)
	if err != nil {
		return nil, err
	}
	c := config.Config
	canvas := effect.NewCanvas(c.Canvas.Width, c.Canvas.Height)
	canvas.ExportScale = c.Canvas.ExportScale
	if canvas.Text, err = c.TextSettings(); err != nil {
		return nil, err
	}
	return &renderer{effect: e, canvas: canvas, stages: stages, export: export}, nil
}

func (r *renderer) render(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	if len(r.stages) > 0 {
		pre, err := stdimg.ApplyStages(src, r.stages)
		if err != nil {
			return nil, err
		}
		src = pre
	}
	return r.canvas.Compose(ctx, r.effect, src, r.export)
}

func (r *renderer) renderFile(ctx context.Context, in, out string) (*image.NRGBA, error) {
	start := time.Now()
	src, format, err := LoadImage(in)
	if err != nil {
		return nil, err
	}
	log.WithField("input", in).Debug(ImageInfo(src, format))

	img, err := r.render(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}
	if err := SaveImage(out, img); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"input":    in,
		"output":   out,
		"engine":   r.effect.Name(),
		"size":     img.Bounds().Size(),
		"duration": time.Since(start),
	}).Info("image processed")
	return img, nil
}

var processFlags struct {
	effectOptions
	preview bool
}

func init() {
	rootCmd.AddCommand(processCmd)
	processFlags.register(processCmd)
	processCmd.Flags().BoolVar(&processFlags.preview, "preview", false, "Show the result in the terminal")
}

var processCmd = &cobra.Command{
	Use:   "process <input> <output>",
	Short: "Dither one image onto the canvas",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := processFlags.apply(cmd); err != nil {
			return err
		}
		r, err := newRenderer(cmd.Context(), processFlags.export, processFlags.pre)
		if err != nil {
			return err
		}
		img, err := r.renderFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if processFlags.preview {
			if !PreviewSupported() {
				log.Warn("terminal preview is not supported here")
				return nil
			}
			return PreviewImage(cmd.OutOrStdout(), img, "png")
		}
		return nil
	},
}
