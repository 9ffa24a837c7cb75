package geom

import (
	"math"
	"testing"
)

func TestFaceWithin(t *testing.T) {
	tests := []struct {
		face Face
		n    int
		want bool
	}{
		{Face{1, 2, 3}, 3, true},
		{Face{1, 2, 4}, 3, false},
		{Face{0, 1, 2}, 3, false},
		{Face{-1, 1, 2}, 3, false},
	}

	for _, tt := range tests {
		if got := tt.face.Within(tt.n); got != tt.want {
			t.Errorf("%v.Within(%d) = %v, want %v", tt.face, tt.n, got, tt.want)
		}
	}
}

func TestAABBSphere(t *testing.T) {
	points := []Vector3{
		{X: -1, Y: 0, Z: 2},
		{X: 3, Y: 4, Z: -2},
		{X: 0, Y: 1, Z: 0},
	}

	var box AABB
	box.AddRange(points)

	if box.Min != (Vector3{X: -1, Y: 0, Z: -2}) {
		t.Errorf("Min = %v", box.Min)
	}
	if box.Max != (Vector3{X: 3, Y: 4, Z: 2}) {
		t.Errorf("Max = %v", box.Max)
	}

	s := box.Sphere()
	if s.Center != (Vector3{X: 1, Y: 2, Z: 0}) {
		t.Errorf("Center = %v, want {1 2 0}", s.Center)
	}
	want := math.Sqrt(4 + 4 + 4)
	if math.Abs(s.Radius-want) > 1e-12 {
		t.Errorf("Radius = %v, want %v", s.Radius, want)
	}

	for _, p := range points {
		if !s.Contains(p, 1e-9) {
			t.Errorf("sphere %v does not contain %v", s, p)
		}
	}
}

func TestSphereOfEmpty(t *testing.T) {
	s := SphereOf(nil)
	if s.Radius != 0 || s.Center != (Vector3{}) {
		t.Errorf("SphereOf(nil) = %v, want zero", s)
	}
}

func TestSphereContainsRandomCloud(t *testing.T) {
	// Deterministic pseudo-random cloud.
	var points []Vector3
	seed := uint32(7)
	next := func() float64 {
		seed = seed*1664525 + 1013904223
		return float64(seed%20000)/100 - 100
	}
	for i := 0; i < 500; i++ {
		points = append(points, Vector3{X: next(), Y: next(), Z: next()})
	}

	s := SphereOf(points)
	for _, p := range points {
		if !s.Contains(p, 1e-9) {
			t.Fatalf("point %v outside sphere %v", p, s)
		}
	}
}
