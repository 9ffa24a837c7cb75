package geom

import "gonum.org/v1/gonum/spatial/r3"

// AABB is an axis-aligned bounding box. The zero value is an empty box.
type AABB struct {
	Min, Max    Vector3
	initialized bool
}

// Add grows the box to include p.
func (b *AABB) Add(p Vector3) *AABB {
	if !b.initialized {
		b.Min, b.Max = p, p
		b.initialized = true
		return b
	}

	b.Min.X = min(b.Min.X, p.X)
	b.Min.Y = min(b.Min.Y, p.Y)
	b.Min.Z = min(b.Min.Z, p.Z)
	b.Max.X = max(b.Max.X, p.X)
	b.Max.Y = max(b.Max.Y, p.Y)
	b.Max.Z = max(b.Max.Z, p.Z)
	return b
}

// AddRange grows the box to include every point.
func (b *AABB) AddRange(points []Vector3) *AABB {
	for _, p := range points {
		b.Add(p)
	}
	return b
}

// Empty reports whether no point has been added.
func (b *AABB) Empty() bool {
	return !b.initialized
}

// Center returns the midpoint of the box.
func (b *AABB) Center() Vector3 {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Sphere returns the sphere centered on the box midpoint whose radius reaches the
// box corners. It is not the minimal enclosing sphere of the points.
func (b *AABB) Sphere() BoundingSphere {
	if b.Empty() {
		return BoundingSphere{}
	}
	c := b.Center()
	return BoundingSphere{Center: c, Radius: r3.Norm(r3.Sub(b.Max, c))}
}

// BoundingSphere is a center/radius pair.
type BoundingSphere struct {
	Center Vector3
	Radius float64
}

// Contains reports whether p lies inside the sphere, allowing tol of slack.
func (s BoundingSphere) Contains(p Vector3, tol float64) bool {
	return r3.Norm(r3.Sub(p, s.Center)) <= s.Radius+tol
}

// SphereOf returns the AABB-derived bounding sphere of points.
func SphereOf(points []Vector3) BoundingSphere {
	var box AABB
	return box.AddRange(points).Sphere()
}
