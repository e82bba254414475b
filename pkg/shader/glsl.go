// Package shader evaluates per-fragment effects on the CPU. Each pass is a
// pure function of the fragment coordinate and a set of uniforms, written
// with the same helpers a GLSL/WGSL fragment shader would use, so the same
// math can run on a GPU (see the embedded WGSL sources) or here.
package shader

import (
	"math"

	"github.com/Fepozopo/halftone/pkg/stdimg"
)

// Vec2 is a 2-component float vector.
type Vec2 struct {
	X, Y float64
}

// V2 builds a Vec2.
func V2(x, y float64) Vec2 { return Vec2{x, y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Mul(o Vec2) Vec2 { return Vec2{v.X * o.X, v.Y * o.Y} }
func (v Vec2) Div(o Vec2) Vec2 { return Vec2{v.X / o.X, v.Y / o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) AddScalar(s float64) Vec2 { return Vec2{v.X + s, v.Y + s} }
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Floor is the component-wise floor.
func (v Vec2) Floor() Vec2 { return Vec2{math.Floor(v.X), math.Floor(v.Y)} }

// Fract is the component-wise fractional part.
func (v Vec2) Fract() Vec2 { return Vec2{Fract(v.X), Fract(v.Y)} }

// Clamp clamps both components to [lo,hi].
func (v Vec2) Clamp(lo, hi float64) Vec2 { return Vec2{Clamp(v.X, lo, hi), Clamp(v.Y, lo, hi)} }

// Vec4 is a normalized RGBA color.
type Vec4 struct {
	R, G, B, A float64
}

// Gray returns an opaque grey of value v.
func Gray(v float64) Vec4 { return Vec4{v, v, v, 1} }

// Smoothstep is Hermite interpolation between edge0 and edge1. Like GLSL,
// the result is 0 for x <= edge0 and 1 for x >= edge1.
func Smoothstep(edge0, edge1, x float64) float64 {
	t := Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// Fract returns x - floor(x).
func Fract(x float64) float64 {
	return x - math.Floor(x)
}

// Mix linearly interpolates between a and b.
func Mix(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// MixRGB mixes the color channels of a and b and keeps the alpha of a.
func MixRGB(a, b Vec4, t float64) Vec4 {
	return Vec4{Mix(a.R, b.R, t), Mix(a.G, b.G, t), Mix(a.B, b.B, t), a.A}
}

// Clamp restricts x to [lo,hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

// Rotate multiplies v by the GLSL matrix mat2(c, -s, s, c), which is column
// major: the result is (c*x + s*y, -s*x + c*y).
func Rotate(v Vec2, angle float64) Vec2 {
	s, c := math.Sincos(angle)
	return Vec2{c*v.X + s*v.Y, -s*v.X + c*v.Y}
}

// Luma is the Rec. 601 weighted brightness of c.
func Luma(c Vec4) float64 {
	return c.R*stdimg.LumaR + c.G*stdimg.LumaG + c.B*stdimg.LumaB
}

// Average is the unweighted mean of the color channels.
func Average(c Vec4) float64 {
	return (c.R + c.G + c.B) / 3
}

func brightness(c Vec4, greyscale bool) float64 {
	if greyscale {
		return Luma(c)
	}
	return Average(c)
}
