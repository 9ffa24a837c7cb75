package mesh

import (
	"fmt"
	"testing"

	"github.com/Faultbox/chimera-importer/pkg/formats"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// stripOBJ builds a triangle strip over n vertices in a single material.
func stripOBJ(n int) *formats.OBJ {
	obj := &formats.OBJ{}
	for i := 0; i < n; i++ {
		p := geom.Vector3{X: float64(i / 2), Y: float64(i % 2)}
		obj.Positions = append(obj.Positions, p)
		obj.UVs = append(obj.UVs, geom.Vector3{X: p.X / float64(n), Y: p.Y})
		obj.Normals = append(obj.Normals, geom.Vector3{Z: 1})
	}
	g := obj.Groups.Open("strip")
	for i := 1; i+2 <= n; i++ {
		g.Positions = append(g.Positions, geom.Face{A: i, B: i + 1, C: i + 2})
		g.UVs = append(g.UVs, geom.Face{A: i, B: i + 1, C: i + 2})
		g.Normals = append(g.Normals, geom.Face{A: 1, B: 1, C: 1})
	}
	return obj
}

func checkChunks(t *testing.T, u *Unified, groups []MaterialChunks) {
	t.Helper()

	tris, verts := 0, 0
	for mi, mc := range groups {
		if mc.Index != mi {
			t.Errorf("material %s index = %d, want %d", mc.Name, mc.Index, mi)
		}
		for ci, c := range mc.Chunks {
			if c.Index != ci || c.MaterialIndex != mi {
				t.Errorf("chunk %s/%d numbered (%d, %d)", mc.Name, ci, c.MaterialIndex, c.Index)
			}
			if c.VertexCount() > MaxChunkVertices {
				t.Errorf("chunk %s/%d has %d vertices", mc.Name, ci, c.VertexCount())
			}
			if c.TriangleCount() > MaxChunkTriangles {
				t.Errorf("chunk %s/%d has %d triangles", mc.Name, ci, c.TriangleCount())
			}
			if len(c.Normals) != c.VertexCount() || len(c.UVs) != c.VertexCount() {
				t.Errorf("chunk %s/%d stream lengths differ", mc.Name, ci)
			}
			for _, tri := range c.Triangles {
				for _, idx := range tri {
					if idx < 0 || idx >= c.VertexCount() {
						t.Fatalf("chunk %s/%d: index %d out of range", mc.Name, ci, idx)
					}
				}
			}
			tris += c.TriangleCount()
			verts += c.VertexCount()
		}
	}

	if tris != u.TriangleCount() {
		t.Errorf("chunk triangles = %d, want %d", tris, u.TriangleCount())
	}
	if verts < u.VertexCount() {
		t.Errorf("chunk vertices = %d, want at least %d", verts, u.VertexCount())
	}
}

func TestSplit_SingleTriangle(t *testing.T) {
	obj := parseOBJ(t, "v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nvn 0 0 1\nf 1/1/1 2/2/1 3/3/1\n")
	u, err := NewReindexer(nil).Reindex(obj)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}

	groups := Split(u)
	if len(groups) != 1 || len(groups[0].Chunks) != 1 {
		t.Fatalf("got %d materials, want 1 with 1 chunk", len(groups))
	}
	c := groups[0].Chunks[0]
	if c.VertexCount() != 3 || c.TriangleCount() != 1 {
		t.Errorf("chunk has %d vertices and %d triangles, want 3 and 1", c.VertexCount(), c.TriangleCount())
	}
	if c.Material != "noMtltest" {
		t.Errorf("Material = %q, want noMtltest", c.Material)
	}
	checkChunks(t, u, groups)
}

func TestSplit_LargeMaterial(t *testing.T) {
	obj := stripOBJ(70000)
	u, err := NewReindexer(nil).Reindex(obj)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}

	groups := Split(u)
	if len(groups) != 1 {
		t.Fatalf("got %d materials, want 1", len(groups))
	}
	if n := len(groups[0].Chunks); n < 2 {
		t.Errorf("got %d chunks, want at least 2", n)
	}
	checkChunks(t, u, groups)
}

func TestSplit_TriangleLimit(t *testing.T) {
	// 80000 triangles over 3 shared vertices: only the triangle limit applies.
	obj := &formats.OBJ{
		Positions: []geom.Vector3{{}, {X: 1}, {Y: 1}},
		UVs:       []geom.Vector3{{}, {X: 1}, {Y: 1}},
		Normals:   []geom.Vector3{{Z: 1}},
	}
	g := obj.Groups.Open("flat")
	for i := 0; i < 80000; i++ {
		g.Positions = append(g.Positions, geom.Face{A: 1, B: 2, C: 3})
		g.UVs = append(g.UVs, geom.Face{A: 1, B: 2, C: 3})
		g.Normals = append(g.Normals, geom.Face{A: 1, B: 1, C: 1})
	}

	u, err := NewReindexer(nil).Reindex(obj)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	groups := Split(u)

	chunks := groups[0].Chunks
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].TriangleCount() != MaxChunkTriangles {
		t.Errorf("first chunk has %d triangles, want %d", chunks[0].TriangleCount(), MaxChunkTriangles)
	}
	if chunks[1].VertexCount() != 3 {
		t.Errorf("second chunk has %d vertices, want 3", chunks[1].VertexCount())
	}
	checkChunks(t, u, groups)
}

func TestSplit_MaterialsKeepOrder(t *testing.T) {
	obj := gridOBJ(30, 30, "granite", "moss", "bark")
	u, err := NewReindexer(nil).Reindex(obj)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}

	groups := Split(u)
	var names []string
	for _, mc := range groups {
		names = append(names, mc.Name)
	}
	if got := fmt.Sprint(names); got != "[granite moss bark]" {
		t.Errorf("materials = %s, want [granite moss bark]", got)
	}
	checkChunks(t, u, groups)
}

func TestSplit_DropsEmptyGroups(t *testing.T) {
	u := &Unified{
		Positions: []geom.Vector3{{}, {X: 1}, {Y: 1}},
		UVs:       make([]geom.Vector3, 3),
		Normals:   make([]geom.Vector3, 3),
		Groups: []Group{
			{Name: "empty"},
			{Name: "full", Triangles: []Triangle{{0, 1, 2}}},
		},
	}

	groups := Split(u)
	if len(groups) != 1 {
		t.Fatalf("got %d materials, want 1", len(groups))
	}
	if groups[0].Name != "full" || groups[0].Index != 0 {
		t.Errorf("material = %s/%d, want full/0", groups[0].Name, groups[0].Index)
	}
}

func TestSplitPoints(t *testing.T) {
	tests := []struct {
		rows int
		want []int
	}{
		{0, nil},
		{5, []int{5}},
		{MaxChunkVertices, []int{MaxChunkVertices}},
		{2*MaxChunkVertices + 10, []int{MaxChunkVertices, MaxChunkVertices, 10}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rows), func(t *testing.T) {
			pc := &formats.PointCloud{
				Positions: make([]geom.Vector3, tt.rows),
				Colors:    make([]string, tt.rows),
			}
			chunks := SplitPoints(pc)
			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.want))
			}
			for i, c := range chunks {
				if c.Index != i || c.Len() != tt.want[i] || len(c.Colors) != c.Len() {
					t.Errorf("chunk %d: index %d, %d rows, %d colors; want %d rows", i, c.Index, c.Len(), len(c.Colors), tt.want[i])
				}
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	obj := gridOBJ(10, 10, "a", "b")
	u, err := NewReindexer(nil).Reindex(obj)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}

	s := Summarize(u, Split(u))
	if len(s.Materials) != 2 {
		t.Fatalf("got %d materials, want 2", len(s.Materials))
	}
	if s.Triangles != obj.Groups.Faces() {
		t.Errorf("Triangles = %d, want %d", s.Triangles, obj.Groups.Faces())
	}
	if s.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", s.Chunks)
	}
	if s.UnifiedVertices != 100 {
		t.Errorf("UnifiedVertices = %d, want 100", s.UnifiedVertices)
	}
}
