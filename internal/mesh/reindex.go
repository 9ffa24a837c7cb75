package mesh

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/chimera-importer/pkg/formats"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// Reindexer resolves the per-attribute OBJ indices into one index per vertex,
// duplicating a vertex whenever its position/UV/normal combination is not unique.
type Reindexer struct {
	log *zap.Logger
}

// NewReindexer returns a Reindexer that reports soft mismatches to log.
func NewReindexer(log *zap.Logger) *Reindexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reindexer{log: log}
}

// Reindex walks every face corner of every non-empty material group, in group
// insertion order, and builds the unified streams.
func (r *Reindexer) Reindex(obj *formats.OBJ) (*Unified, error) {
	if err := checkIndices(obj); err != nil {
		return nil, err
	}

	p := newReindexPass(obj)
	out := &Unified{}

	for _, g := range obj.Groups.All() {
		if g.Len() == 0 {
			continue
		}
		group := Group{Name: g.Name, Triangles: make([]Triangle, 0, g.Len())}

		for i := range g.Positions {
			pos := g.Positions[i].Corners()
			uv := g.UVs[i].Corners()
			nrm := g.Normals[i].Corners()

			var tri Triangle
			for k := 0; k < 3; k++ {
				slot, warned := p.corner(pos[k]-1, uv[k]-1, nrm[k]-1)
				if warned {
					r.log.Warn("vertex attributes still differ after duplication",
						zap.String("material", g.Name),
						zap.Int("face", i),
						zap.Int("position", pos[k]),
						zap.Int("uv", uv[k]),
						zap.Int("normal", nrm[k]))
				}
				tri[k] = slot
			}
			group.Triangles = append(group.Triangles, tri)
		}

		out.Groups = append(out.Groups, group)
	}

	out.Positions = p.positions
	out.UVs = p.uvs
	out.Normals = p.normals
	out.Mismatches = p.mismatches
	return out, nil
}

// checkIndices rejects faces that address attributes the mesh does not define.
func checkIndices(obj *formats.OBJ) error {
	for _, g := range obj.Groups.All() {
		for i := range g.Positions {
			switch {
			case !g.Positions[i].Within(len(obj.Positions)):
				return fmt.Errorf("%w: material %s face %d: position %v out of range (%d positions)",
					formats.ErrFormat, g.Name, i, g.Positions[i], len(obj.Positions))
			case !g.UVs[i].Within(len(obj.UVs)):
				return fmt.Errorf("%w: material %s face %d: uv %v out of range (%d uvs)",
					formats.ErrFormat, g.Name, i, g.UVs[i], len(obj.UVs))
			case !g.Normals[i].Within(len(obj.Normals)):
				return fmt.Errorf("%w: material %s face %d: normal %v out of range (%d normals)",
					formats.ErrFormat, g.Name, i, g.Normals[i], len(obj.Normals))
			}
		}
	}
	return nil
}

// reindexPass holds the state of one unification pass. The three output streams
// have equal length between corners.
type reindexPass struct {
	src *formats.OBJ

	posValid ValidityMask
	uvValid  ValidityMask
	posSlot  []int // first output slot of each source position
	uvSlot   []int // first output slot of each source uv

	positions []geom.Vector3
	uvs       []geom.Vector3
	normals   []geom.Vector3

	mismatches int
}

func newReindexPass(obj *formats.OBJ) *reindexPass {
	return &reindexPass{
		src:       obj,
		posValid:  NewValidityMask(len(obj.Positions)),
		uvValid:   NewValidityMask(len(obj.UVs)),
		posSlot:   make([]int, len(obj.Positions)),
		uvSlot:    make([]int, len(obj.UVs)),
		positions: make([]geom.Vector3, 0, len(obj.Positions)),
		uvs:       make([]geom.Vector3, 0, len(obj.UVs)),
		normals:   make([]geom.Vector3, 0, len(obj.Positions)),
	}
}

// corner resolves one face corner given 0-based source indices and returns the
// output slot. warned is set when the reconciled slots still disagreed.
func (p *reindexPass) corner(pi, ti, ni int) (slot int, warned bool) {
	v := p.addPosition(pi)
	t := p.addUV(ti)

	// One stream ran ahead: duplicate the lagging attribute.
	switch {
	case len(p.positions) < len(p.uvs):
		v = p.duplicatePosition(pi)
	case len(p.positions) > len(p.uvs):
		t = p.duplicateUV(ti)
	}
	for len(p.normals) < len(p.positions) {
		p.normals = append(p.normals, p.src.Normals[ni])
	}

	if v != t {
		if p.positions[v] != p.positions[t] {
			if p.uvs[v] == p.uvs[t] {
				t = v
			} else {
				v = p.duplicateAll(pi, ti, ni)
				t = v
			}
		}
		if p.positions[v] != p.positions[t] || p.normals[v] != p.normals[t] || p.uvs[t] != p.src.UVs[ti] {
			warned = true
			p.mismatches++
		}
	}

	// The chosen slot must carry exactly this corner's attributes.
	if p.positions[t] != p.src.Positions[pi] || p.uvs[t] != p.src.UVs[ti] || p.normals[t] != p.src.Normals[ni] {
		t = p.duplicateAll(pi, ti, ni)
	}

	return t, warned
}

func (p *reindexPass) addPosition(i int) int {
	if p.posValid.Take(i) {
		p.positions = append(p.positions, p.src.Positions[i])
		p.posSlot[i] = len(p.positions) - 1
	}
	return p.posSlot[i]
}

func (p *reindexPass) addUV(i int) int {
	if p.uvValid.Take(i) {
		p.uvs = append(p.uvs, p.src.UVs[i])
		p.uvSlot[i] = len(p.uvs) - 1
	}
	return p.uvSlot[i]
}

func (p *reindexPass) duplicatePosition(i int) int {
	p.positions = append(p.positions, p.src.Positions[i])
	return len(p.positions) - 1
}

func (p *reindexPass) duplicateUV(i int) int {
	p.uvs = append(p.uvs, p.src.UVs[i])
	return len(p.uvs) - 1
}

func (p *reindexPass) duplicateAll(pi, ti, ni int) int {
	p.positions = append(p.positions, p.src.Positions[pi])
	p.uvs = append(p.uvs, p.src.UVs[ti])
	p.normals = append(p.normals, p.src.Normals[ni])
	return len(p.positions) - 1
}
