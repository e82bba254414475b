package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

func TestWGSLSourcesEmbedded(t *testing.T) {
	required := map[string][]string{
		"dither":   {"@vertex", "@fragment", "fs_main", "generate_dot_pattern", "smoothstep", "use_pattern_texture"},
		"halftone": {"@vertex", "@fragment", "fs_main", "circle_mask", "square_mask", "diamond_mask", "rotation_angle"},
	}
	names := WGSLNames()
	if len(names) != len(required) {
		t.Fatalf("WGSLNames() = %v", names)
	}
	for _, name := range names {
		src, err := WGSLSource(name)
		if err != nil {
			t.Fatalf("WGSLSource(%s): %v", name, err)
		}
		for _, want := range required[name] {
			if !strings.Contains(src, want) {
				t.Errorf("%s shader missing %q", name, want)
			}
		}
	}
	if _, err := WGSLSource("sepia"); err == nil {
		t.Errorf("expected error for unknown pass")
	}
}

func TestWGSLCompiles(t *testing.T) {
	for _, name := range WGSLNames() {
		t.Run(name, func(t *testing.T) {
			words, err := CompileWGSL(name)
			if err != nil {
				var msg string
				if u := errors.Unwrap(err); u != nil {
					msg = u.Error()
				}
				if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
					t.Skipf("Skipping: naga feature not yet implemented: %v", err)
				}
				t.Fatalf("CompileWGSL(%s): %v", name, err)
			}
			if len(words) == 0 {
				t.Fatal("SPIR-V output is empty")
			}
			// SPIR-V magic number
			if words[0] != 0x07230203 {
				t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
			}
		})
	}
}

func TestNagaDirectMatchesCompileWGSL(t *testing.T) {
	src, _ := WGSLSource("halftone")
	raw, err := naga.Compile(src)
	if err != nil {
		t.Skipf("naga cannot compile the halftone shader: %v", err)
	}
	words, err := CompileWGSL("halftone")
	if err != nil {
		t.Fatalf("CompileWGSL: %v", err)
	}
	if len(words)*4 != len(raw) {
		t.Fatalf("word count %d for %d bytes", len(words), len(raw))
	}
}
