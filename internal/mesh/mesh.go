// Package mesh turns parsed geometry into GPU-sized chunks: it unifies the
// independent OBJ attribute indices into one index per vertex and splits the
// result into chunks that fit 16-bit index buffers.
package mesh

import "github.com/Faultbox/chimera-importer/pkg/geom"

// Chunk limits. A chunk must stay addressable with 16-bit indices.
const (
	MaxChunkVertices  = 65535
	MaxChunkTriangles = 65535

	// A triangle adds at most three vertices, so a chunk is sealed once it
	// reaches this many vertices.
	sealVertexCount = MaxChunkVertices - 2
)

// Triangle holds three 0-based indices into a shared vertex stream.
type Triangle [3]int

// ValidityMask marks which source elements have not yet been copied into the
// current output. It is reset at the start of every emission pass.
type ValidityMask []bool

// NewValidityMask returns a mask of n valid entries.
func NewValidityMask(n int) ValidityMask {
	m := make(ValidityMask, n)
	m.Reset()
	return m
}

// Reset marks every entry valid again.
func (m ValidityMask) Reset() {
	for i := range m {
		m[i] = true
	}
}

// Take reports whether entry i was still valid and invalidates it.
func (m ValidityMask) Take(i int) bool {
	if !m[i] {
		return false
	}
	m[i] = false
	return true
}

// Unified is a mesh whose positions, UVs and normals share one index per vertex.
// The three streams always have the same length.
type Unified struct {
	Positions []geom.Vector3
	UVs       []geom.Vector3
	Normals   []geom.Vector3
	Groups    []Group

	// Mismatches counts corners whose position-side and UV-side slots still
	// disagreed after reconciliation. Such corners are repaired by duplication.
	Mismatches int
}

// Group is the triangle list of one material.
type Group struct {
	Name      string
	Triangles []Triangle
}

// VertexCount returns the unified vertex count.
func (u *Unified) VertexCount() int {
	return len(u.Positions)
}

// TriangleCount returns the triangle count over all groups.
func (u *Unified) TriangleCount() int {
	n := 0
	for _, g := range u.Groups {
		n += len(g.Triangles)
	}
	return n
}
