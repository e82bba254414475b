package shader

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gogpu/naga"
)

//go:embed shaders/dither.wgsl
var ditherWGSL string

//go:embed shaders/halftone.wgsl
var halftoneWGSL string

var wgslSources = map[string]string{
	"dither":   ditherWGSL,
	"halftone": halftoneWGSL,
}

// WGSLNames lists the passes that ship a GPU implementation.
func WGSLNames() []string {
	names := make([]string, 0, len(wgslSources))
	for name := range wgslSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WGSLSource returns the WGSL source of the named pass.
func WGSLSource(name string) (string, error) {
	src, ok := wgslSources[name]
	if !ok {
		return "", fmt.Errorf("no WGSL source for pass %q", name)
	}
	return src, nil
}

// CompileWGSL compiles the named pass to SPIR-V words.
func CompileWGSL(name string) ([]uint32, error) {
	src, err := WGSLSource(name)
	if err != nil {
		return nil, err
	}
	spirv, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compiling %s shader: %w", name, err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("compiling %s shader: SPIR-V size %d is not word aligned", name, len(spirv))
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}
