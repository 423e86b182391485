package systems

import "math"

// Point is a position in world units.
type Point struct {
	X, Y float64
}

// Dist returns the Euclidean distance to q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Rect is an axis-aligned box with its origin at the top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// BoxAt returns a square of the given size centered on (cx, cy).
func BoxAt(cx, cy, size float64) Rect {
	half := size / 2
	return Rect{X: cx - half, Y: cy - half, W: size, H: size}
}

// Center returns the center point of the box.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Intersects reports whether two boxes overlap. Touching edges do not count.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// rayAABB returns the distance along the unit direction (dx, dy) from (ox, oy)
// to the box, using the slab method. A ray starting inside the box hits at 0.
func rayAABB(ox, oy, dx, dy float64, r Rect) (float64, bool) {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)

	// X slab
	if math.Abs(dx) < 1e-12 {
		if ox < r.X || ox > r.X+r.W {
			return 0, false
		}
	} else {
		invD := 1.0 / dx
		t0 := (r.X - ox) * invD
		t1 := (r.X + r.W - ox) * invD
		if invD < 0 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
	}

	// Y slab
	if math.Abs(dy) < 1e-12 {
		if oy < r.Y || oy > r.Y+r.H {
			return 0, false
		}
	} else {
		invD := 1.0 / dy
		t0 := (r.Y - oy) * invD
		t1 := (r.Y + r.H - oy) * invD
		if invD < 0 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return 0, true
	}
	return tmin, true
}

// direction returns the unit vector for a heading in degrees.
func direction(headingDeg float64) (float64, float64) {
	rad := headingDeg * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

// bearing returns sin of the angle between the heading and the direction to target.
func bearing(from Point, headingDeg float64, target Point) float64 {
	ang := math.Atan2(target.Y-from.Y, target.X-from.X) - headingDeg*math.Pi/180
	return math.Sin(ang)
}

// angleDiff returns the absolute difference between two angles in radians,
// wrapped into [0, pi].
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
