package formats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/chimera-importer/pkg/encoding"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// ImplicitMaterialPrefix names the group opened by faces that precede any usemtl.
const ImplicitMaterialPrefix = "noMtl"

// MaterialGroup holds the faces of one material as three parallel index streams.
type MaterialGroup struct {
	Name      string
	Positions []geom.Face
	UVs       []geom.Face
	Normals   []geom.Face
}

// Len returns the number of faces in the group.
func (g *MaterialGroup) Len() int {
	return len(g.Positions)
}

// MaterialGroups is a collection of groups that remembers insertion order.
// Artifact numbering depends on that order.
type MaterialGroups struct {
	order []*MaterialGroup
	index map[string]*MaterialGroup
}

// Open returns the group called name, appending an empty one if it is unseen.
func (m *MaterialGroups) Open(name string) *MaterialGroup {
	if g, ok := m.index[name]; ok {
		return g
	}
	if m.index == nil {
		m.index = make(map[string]*MaterialGroup)
	}
	g := &MaterialGroup{Name: name}
	m.index[name] = g
	m.order = append(m.order, g)
	return g
}

// Get looks up a group by name.
func (m *MaterialGroups) Get(name string) (*MaterialGroup, bool) {
	g, ok := m.index[name]
	return g, ok
}

// All returns the groups in insertion order.
func (m *MaterialGroups) All() []*MaterialGroup {
	return m.order
}

// Len returns the number of groups, including empty ones.
func (m *MaterialGroups) Len() int {
	return len(m.order)
}

// Faces returns the total face count over all groups.
func (m *MaterialGroups) Faces() int {
	n := 0
	for _, g := range m.order {
		n += g.Len()
	}
	return n
}

// OBJ is a parsed mesh.
type OBJ struct {
	Positions   []geom.Vector3
	UVs         []geom.Vector3
	Normals     []geom.Vector3
	Groups      MaterialGroups
	MaterialLib string            // mtllib reference, relative to the OBJ
	Textures    map[string]string // material name -> diffuse texture path
}

// MultiMaterial reports whether more than one material group has faces.
// Groups opened by a usemtl without faces are not exported and do not count.
func (o *OBJ) MultiMaterial() bool {
	n := 0
	for _, g := range o.Groups.All() {
		if g.Len() > 0 {
			n++
		}
	}
	return n > 1
}

// OBJOptions controls mesh parsing.
type OBJOptions struct {
	// Name is used for the implicit material of faces declared before any usemtl.
	Name string
	// Offset is added to every position.
	Offset geom.Vector3
	// TextureDir resolves relative map_Kd paths. Defaults to the OBJ directory.
	TextureDir string
}

// LoadOBJ parses the mesh at path and, when it references one, its material library.
func LoadOBJ(path string, opts OBJOptions) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh: %w", err)
	}
	defer f.Close()

	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	obj, err := ParseOBJ(f, opts)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}

	if obj.MaterialLib == "" {
		return obj, nil
	}

	libPath := filepath.Join(filepath.Dir(path), obj.MaterialLib)
	mtl, err := LoadMTL(libPath)
	if err != nil {
		return nil, err
	}

	textureDir := opts.TextureDir
	if textureDir == "" {
		textureDir = filepath.Dir(path)
	}
	obj.ApplyMaterials(mtl, textureDir)

	return obj, nil
}

// ParseOBJ parses mesh text from r.
func ParseOBJ(r io.Reader, opts OBJOptions) (*OBJ, error) {
	obj := &OBJ{Textures: make(map[string]string)}

	var current *MaterialGroup
	scanner := newScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		var err error

		switch fields[0] {
		case "mtllib":
			if len(fields) < 2 {
				err = ErrMissingValues
				break
			}
			obj.MaterialLib = encoding.NormalizePath(strings.TrimSpace(line[len("mtllib"):]))

		case "usemtl":
			if len(fields) < 2 {
				err = ErrMissingValues
				break
			}
			current = obj.Groups.Open(encoding.DecodeName(fields[1]))

		case "v":
			var v []float64
			if v, err = parseFloats(fields[1:], 3); err == nil {
				obj.Positions = append(obj.Positions, geom.Vector3{
					X: v[0] + opts.Offset.X,
					Y: v[1] + opts.Offset.Y,
					Z: v[2] + opts.Offset.Z,
				})
			}

		case "vt":
			var v []float64
			if v, err = parseFloats(fields[1:], 2); err == nil {
				obj.UVs = append(obj.UVs, geom.Vector3{X: v[0], Y: v[1]})
			}

		case "vn":
			var v []float64
			if v, err = parseFloats(fields[1:], 3); err == nil {
				obj.Normals = append(obj.Normals, geom.Vector3{X: v[0], Y: v[1], Z: v[2]})
			}

		case "f":
			if current == nil {
				current = obj.Groups.Open(ImplicitMaterialPrefix + opts.Name)
			}
			err = parseFace(fields[1:], current)
		}

		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: line, Err: err}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mesh: %w", err)
	}

	return obj, nil
}

// parseFace reads "a/b/c a/b/c a/b/c" into the three streams of g.
func parseFace(records []string, g *MaterialGroup) error {
	if len(records) != 3 {
		return fmt.Errorf("%w: got %d records", ErrFaceArity, len(records))
	}

	var idx [3][3]int // [attribute][corner]
	for corner, rec := range records {
		parts := strings.Split(rec, "/")
		if len(parts) != 3 {
			return fmt.Errorf("%w: record %q", ErrFaceArity, rec)
		}
		for attr, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 {
				return fmt.Errorf("%w: %q", ErrBadIndex, p)
			}
			idx[attr][corner] = n
		}
	}

	g.Positions = append(g.Positions, geom.Face{A: idx[0][0], B: idx[0][1], C: idx[0][2]})
	g.UVs = append(g.UVs, geom.Face{A: idx[1][0], B: idx[1][1], C: idx[1][2]})
	g.Normals = append(g.Normals, geom.Face{A: idx[2][0], B: idx[2][1], C: idx[2][2]})
	return nil
}

// ApplyMaterials registers the diffuse texture of every material that owns at
// least one face. Relative texture paths are resolved against textureDir.
func (o *OBJ) ApplyMaterials(mtl *MTL, textureDir string) {
	for _, g := range o.Groups.All() {
		if g.Len() == 0 {
			continue
		}
		m, ok := mtl.Lookup(g.Name)
		if !ok || m.DiffuseMap == "" {
			continue
		}
		path := m.DiffuseMap
		if !filepath.IsAbs(path) {
			path = filepath.Join(textureDir, path)
		}
		o.Textures[m.Name] = path
	}
}
