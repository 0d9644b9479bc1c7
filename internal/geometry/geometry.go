// Package geometry converts OCR quadrilaterals into screen-space rectangles
// and provides the overlap predicate used when merging text boxes.
package geometry

import "math"

// Point represents a 2D coordinate in float space. Engines may report
// sub-pixel positions; they are truncated when normalized.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Quad is a text region outline ordered top-left, top-right, bottom-right,
// bottom-left.
type Quad [4]Point

// Rect is an axis-aligned rectangle in integer pixel coordinates. W and H are
// signed: a rotated or degenerate quad can produce negative extents.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Normalize derives a Rect from the top-left point and the diagonally
// opposite point (index 2). Coordinates are not checked against image bounds.
func Normalize(q Quad) Rect {
	x := truncate(q[0].X)
	y := truncate(q[0].Y)
	return Rect{
		X: x,
		Y: y,
		W: truncate(q[2].X) - x,
		H: truncate(q[2].Y) - y,
	}
}

// QuadFromRect builds a quad from min/max corners, for engines that only
// report axis-aligned boxes.
func QuadFromRect(minX, minY, maxX, maxY float64) Quad {
	return Quad{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

// Scale returns a copy of q with every point scaled by sx, sy.
func (q Quad) Scale(sx, sy float64) Quad {
	var out Quad
	for i, p := range q {
		out[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out
}

// Overlaps reports whether other should be merged into r: the top edges are
// closer than maxYDiff and both the x and y intervals intersect.
func (r Rect) Overlaps(other Rect, maxYDiff int) bool {
	return absInt(r.Y-other.Y) < maxYDiff &&
		other.X < r.X+r.W &&
		other.X+other.W > r.X &&
		other.Y < r.Y+r.H &&
		other.Y+other.H > r.Y
}

// truncate converts toward zero, matching int() on the engine's float output.
func truncate(v float64) int {
	return int(math.Trunc(v))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
