package mesh

// MaterialStats summarizes the chunks of one material.
type MaterialStats struct {
	Name      string
	Chunks    int
	Vertices  int
	Triangles int
}

// Stats summarizes a split mesh.
type Stats struct {
	Materials []MaterialStats
	Chunks    int
	Vertices  int
	Triangles int

	UnifiedVertices int
	Mismatches      int
}

// Summarize builds Stats from the unified mesh and its chunks.
func Summarize(u *Unified, groups []MaterialChunks) Stats {
	s := Stats{UnifiedVertices: u.VertexCount(), Mismatches: u.Mismatches}
	for _, mc := range groups {
		ms := MaterialStats{Name: mc.Name, Chunks: len(mc.Chunks)}
		for _, c := range mc.Chunks {
			ms.Vertices += c.VertexCount()
			ms.Triangles += c.TriangleCount()
		}
		s.Materials = append(s.Materials, ms)
		s.Chunks += ms.Chunks
		s.Vertices += ms.Vertices
		s.Triangles += ms.Triangles
	}
	return s
}
