// Package geom provides the geometric value types shared by the parsers and the
// chunking pipeline.
package geom

import "gonum.org/v1/gonum/spatial/r3"

// Vector3 is a position, normal or texture coordinate.
// Texture coordinates keep Z at 0.
type Vector3 = r3.Vec

// Face holds three 1-based indices into one attribute stream.
type Face struct {
	A, B, C int
}

// Corners returns the indices in a, b, c order.
func (f Face) Corners() [3]int {
	return [3]int{f.A, f.B, f.C}
}

// Within reports whether every index addresses one of n elements.
func (f Face) Within(n int) bool {
	for _, i := range f.Corners() {
		if i < 1 || i > n {
			return false
		}
	}
	return true
}
