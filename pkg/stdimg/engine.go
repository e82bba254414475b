package stdimg

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrUnknownStage is returned for a stage name missing from Commands.
var ErrUnknownStage = errors.New("unknown stage")

// Stage is one parsed pre-processing step such as "blur 1.5".
type Stage struct {
	Name string
	Args []string
}

func (s Stage) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// ParseStage splits a stage expression on whitespace and checks the name and
// argument count against Commands.
func ParseStage(expr string) (Stage, error) {
	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return Stage{}, fmt.Errorf("%w: empty expression", ErrUnknownStage)
	}
	spec, ok := LookupCommand(fields[0])
	if !ok {
		return Stage{}, fmt.Errorf("%w: %q", ErrUnknownStage, fields[0])
	}
	args := fields[1:]
	if len(args) < spec.requiredArgs() || len(args) > len(spec.Args) {
		return Stage{}, fmt.Errorf("%s: wrong number of arguments, usage: %s", spec.Name, spec.Usage)
	}
	return Stage{Name: spec.Name, Args: args}, nil
}

// ParseStages parses every expression, stopping at the first error.
func ParseStages(exprs []string) ([]Stage, error) {
	stages := make([]Stage, 0, len(exprs))
	for _, e := range exprs {
		s, err := ParseStage(e)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// ApplyStages runs stages in order on a copy of img.
func ApplyStages(img image.Image, stages []Stage) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("source image is nil")
	}
	buf := ToNRGBA(img)
	for _, s := range stages {
		var err error
		if buf, err = ApplyStage(buf, s); err != nil {
			return nil, err
		}
		log.WithField("stage", s.String()).Debug("stage applied")
	}
	return buf, nil
}

// ApplyStage applies a single stage and returns the resulting buffer. Stages
// that work in place (tone, invert) modify src.
func ApplyStage(src *image.NRGBA, s Stage) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("source image is nil")
	}
	switch strings.ToLower(s.Name) {
	case "blur":
		sigma, err := floatArg(s, 0, 0)
		if err != nil {
			return nil, err
		}
		return SeparableGaussianBlur(src, sigma), nil

	case "median":
		radius, err := intArg(s, 0, 0)
		if err != nil {
			return nil, err
		}
		if radius < 0 {
			return nil, fmt.Errorf("median: radius must be >= 0, got %d", radius)
		}
		return MedianFilter(src, radius), nil

	case "tone":
		contrast, err := floatArg(s, 0, 1)
		if err != nil {
			return nil, err
		}
		exposure, err := floatArg(s, 1, 0)
		if err != nil {
			return nil, err
		}
		return AdjustTone(src, contrast, exposure), nil

	case "level":
		black, err := floatArg(s, 0, 0)
		if err != nil {
			return nil, err
		}
		gamma, err := floatArg(s, 1, 1)
		if err != nil {
			return nil, err
		}
		white, err := floatArg(s, 2, 255)
		if err != nil {
			return nil, err
		}
		return Level(src, black, gamma, white), nil

	case "gamma":
		g, err := floatArg(s, 0, 1)
		if err != nil {
			return nil, err
		}
		return Gamma(src, g), nil

	case "normalize":
		return Normalize(src), nil

	case "autolevel":
		return AutoLevel(src), nil

	case "autogamma":
		return AutoGamma(src), nil

	case "grayscale":
		return Grayscale(src), nil

	case "invert":
		return Invert(src), nil

	case "threshold":
		t, err := floatArg(s, 0, 0.5)
		if err != nil {
			return nil, err
		}
		if t < 0 || t > 1 {
			return nil, fmt.Errorf("threshold: value must be in [0,1], got %g", t)
		}
		return ThresholdDither(src, t), nil

	case "dither":
		size, err := intArg(s, 0, 8)
		if err != nil {
			return nil, err
		}
		if size < 1 {
			return nil, fmt.Errorf("dither: size must be positive, got %d", size)
		}
		return PatternDither(src, DotPattern(size)), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStage, s.Name)
}

func floatArg(s Stage, i int, def float64) (float64, error) {
	if i >= len(s.Args) {
		return def, nil
	}
	v, err := strconv.ParseFloat(s.Args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid argument %d: %w", s.Name, i+1, err)
	}
	return v, nil
}

func intArg(s Stage, i int, def int) (int, error) {
	if i >= len(s.Args) {
		return def, nil
	}
	v, err := strconv.Atoi(s.Args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid argument %d: %w", s.Name, i+1, err)
	}
	return v, nil
}
