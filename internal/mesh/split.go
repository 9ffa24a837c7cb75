package mesh

import (
	"github.com/Faultbox/chimera-importer/pkg/formats"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// Chunk is a slice of one material's triangles with its own local vertex
// streams. Triangles index into those streams, starting at 0.
type Chunk struct {
	Material      string
	MaterialIndex int
	Index         int

	Positions []geom.Vector3
	Normals   []geom.Vector3
	UVs       []geom.Vector3
	Triangles []Triangle
}

// VertexCount returns the number of local vertices.
func (c *Chunk) VertexCount() int { return len(c.Positions) }

// TriangleCount returns the number of triangles.
func (c *Chunk) TriangleCount() int { return len(c.Triangles) }

func (c *Chunk) full() bool {
	return len(c.Positions) >= sealVertexCount || len(c.Triangles) >= MaxChunkTriangles
}

// MaterialChunks groups the chunks of one material.
type MaterialChunks struct {
	Name   string
	Index  int
	Chunks []*Chunk
}

// Split cuts every group of u into chunks. Groups keep their order and are
// numbered from 0; empty groups are dropped before numbering.
func Split(u *Unified) []MaterialChunks {
	mask := NewValidityMask(len(u.Positions))
	local := make([]int, len(u.Positions))

	var out []MaterialChunks
	for _, g := range u.Groups {
		if len(g.Triangles) == 0 {
			continue
		}
		mc := MaterialChunks{Name: g.Name, Index: len(out)}
		c := &Chunk{Material: g.Name, MaterialIndex: mc.Index}

		for _, tri := range g.Triangles {
			if c.full() {
				mc.Chunks = append(mc.Chunks, c)
				mask.Reset()
				c = &Chunk{Material: g.Name, MaterialIndex: mc.Index, Index: c.Index + 1}
			}

			var lt Triangle
			for k, idx := range tri {
				if mask.Take(idx) {
					local[idx] = len(c.Positions)
					c.Positions = append(c.Positions, u.Positions[idx])
					c.Normals = append(c.Normals, u.Normals[idx])
					c.UVs = append(c.UVs, u.UVs[idx])
				}
				lt[k] = local[idx]
			}
			c.Triangles = append(c.Triangles, lt)
		}

		mc.Chunks = append(mc.Chunks, c)
		mask.Reset()
		out = append(out, mc)
	}
	return out
}

// PointChunk is a run of point-cloud rows.
type PointChunk struct {
	Index     int
	Positions []geom.Vector3
	Colors    []string
}

// Len returns the number of rows.
func (c *PointChunk) Len() int { return len(c.Positions) }

// SplitPoints cuts the cloud on MaxChunkVertices row boundaries. The chunks
// share backing arrays with pc.
func SplitPoints(pc *formats.PointCloud) []*PointChunk {
	var out []*PointChunk
	for start := 0; start < pc.Len(); start += MaxChunkVertices {
		end := min(start+MaxChunkVertices, pc.Len())
		out = append(out, &PointChunk{
			Index:     len(out),
			Positions: pc.Positions[start:end],
			Colors:    pc.Colors[start:end],
		})
	}
	return out
}
