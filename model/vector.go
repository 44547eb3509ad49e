package model

import "math"

// Vec2 is a position or velocity on the simulation plane.
type Vec2 struct {
	X float64
	Y float64
}

// Zero is the zero vector.
var Zero = Vec2{}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale returns v * k.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }

// Dot returns the dot product of two vectors.
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// DistanceTo returns the straight-line distance between two points.
func (v Vec2) DistanceTo(o Vec2) float64 { return v.Sub(o).Norm() }

// Normalize returns the unit vector along v. The zero vector normalizes to
// itself.
func (v Vec2) Normalize() Vec2 {
	n := v.Norm()
	if n == 0 {
		return Zero
	}
	return Vec2{X: v.X / n, Y: v.Y / n}
}

// ClampMagnitude returns v scaled down so its length does not exceed max.
func (v Vec2) ClampMagnitude(max float64) Vec2 {
	n := v.Norm()
	if n <= max || n == 0 {
		return v
	}
	return v.Scale(max / n)
}

// IsFinite reports whether both components are finite numbers.
func (v Vec2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}
