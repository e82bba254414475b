// Registry of the pre-processing stages understood by ApplyStage.
//
// Keep this list in sync with the switch in engine.go; the CLI reads it for
// help text and argument validation.

package stdimg

import "strings"

// ArgSpec describes a single stage argument. Fields are textual and meant for
// help output.
type ArgSpec struct {
	Name        string // human name
	Type        string // "int", "float"
	Required    bool
	Default     string // textual default (for help only)
	Description string
}

// CommandSpec defines a stage and its arguments.
type CommandSpec struct {
	Name        string
	Args        []ArgSpec
	Usage       string
	Description string
}

// Commands lists every stage implemented by ApplyStage.
var Commands = []CommandSpec{
	{
		Name:        "blur",
		Args:        []ArgSpec{{"sigma", "float", true, "", "gaussian sigma"}},
		Usage:       "blur <sigma>",
		Description: "Separable Gaussian blur.",
	},
	{
		Name:        "median",
		Args:        []ArgSpec{{"radius", "int", true, "", "median radius"}},
		Usage:       "median <radius>",
		Description: "Median filter over a (2r+1)^2 window.",
	},
	{
		Name:        "tone",
		Args:        []ArgSpec{{"contrast", "float", true, "", "contrast, 1 = identity"}, {"exposure", "float", false, "0", "exposure in stops"}},
		Usage:       "tone <contrast> [exposure]",
		Description: "Exposure then contrast, as in the dither pipeline.",
	},
	{
		Name:        "level",
		Args:        []ArgSpec{{"blackPoint", "float", true, "", "black point"}, {"gamma", "float", true, "", "gamma"}, {"whitePoint", "float", true, "", "white point"}},
		Usage:       "level <blackPoint> <gamma> <whitePoint>",
		Description: "Adjust levels (black/gamma/white).",
	},
	{
		Name:        "gamma",
		Args:        []ArgSpec{{"gamma", "float", true, "", "gamma value"}},
		Usage:       "gamma <gamma>",
		Description: "Apply gamma correction.",
	},
	{
		Name:        "normalize",
		Usage:       "normalize",
		Description: "Stretch per-channel extremes to full [0,255].",
	},
	{
		Name:        "autoLevel",
		Usage:       "autoLevel",
		Description: "Automatic level normalization.",
	},
	{
		Name:        "autoGamma",
		Usage:       "autoGamma",
		Description: "Move the mean luma to mid grey.",
	},
	{
		Name:        "grayscale",
		Usage:       "grayscale",
		Description: "Convert to Rec. 601 luma.",
	},
	{
		Name:        "invert",
		Usage:       "invert",
		Description: "Invert color channels.",
	},
	{
		Name:        "threshold",
		Args:        []ArgSpec{{"value", "float", true, "", "threshold in [0,1]"}},
		Usage:       "threshold <value>",
		Description: "Black and white by a single luma threshold.",
	},
	{
		Name:        "dither",
		Args:        []ArgSpec{{"size", "int", false, "8", "dot cell size in pixels"}},
		Usage:       "dither [size]",
		Description: "Clustered-dot pattern dither.",
	},
}

// LookupCommand finds a stage by name, ignoring case.
func LookupCommand(name string) (CommandSpec, bool) {
	for _, c := range Commands {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// requiredArgs counts the mandatory arguments of c.
func (c CommandSpec) requiredArgs() int {
	n := 0
	for _, a := range c.Args {
		if a.Required {
			n++
		}
	}
	return n
}
