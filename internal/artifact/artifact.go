// Package artifact writes chunks to the JSON artifact schema consumed by the
// viewer and keeps track of the files it produced.
package artifact

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/chimera-importer/internal/mesh"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// LodCode combines a material index and a LOD into the code used for file
// names and store keys.
func LodCode(materialIndex, lod int) int {
	return materialIndex*100 + lod
}

// FileName returns the artifact file name for a chunk.
func FileName(base string, code, chunk int) string {
	return fmt.Sprintf("%s#%d-%d.json", base, code, chunk)
}

// BaseName strips directory and extension from a source path.
func BaseName(source string) string {
	name := filepath.Base(source)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Artifact is one written chunk file.
type Artifact struct {
	Path          string
	Lod           int
	Code          int
	MaterialIndex int
	Material      string
	Chunk         int
	Size          int64
}

// Set lists the artifacts of one LOD in write order.
type Set struct {
	Lod   int
	Items []Artifact
}

// Len returns the number of artifacts.
func (s *Set) Len() int {
	return len(s.Items)
}

// Paths returns the artifact file paths.
func (s *Set) Paths() []string {
	paths := make([]string, len(s.Items))
	for i, a := range s.Items {
		paths[i] = a.Path
	}
	return paths
}

// Remove deletes every artifact still present on disk.
func (s *Set) Remove() error {
	var firstErr error
	for _, a := range s.Items {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Writer serializes chunks into Dir using names derived from Base.
type Writer struct {
	Dir  string
	Base string
}

// NewWriter returns a Writer that names artifacts after the source file.
func NewWriter(dir, source string) *Writer {
	return &Writer{Dir: dir, Base: BaseName(source)}
}

// WriteMesh writes every chunk of every material for one LOD.
func (w *Writer) WriteMesh(lod int, groups []mesh.MaterialChunks) (*Set, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}

	set := &Set{Lod: lod}
	for _, mc := range groups {
		code := LodCode(mc.Index, lod)
		for _, c := range mc.Chunks {
			a := Artifact{
				Path:          filepath.Join(w.Dir, FileName(w.Base, code, c.Index)),
				Lod:           lod,
				Code:          code,
				MaterialIndex: mc.Index,
				Material:      mc.Name,
				Chunk:         c.Index,
			}
			size, err := writeFile(a.Path, func(bw *bufio.Writer) error { return EncodeMesh(bw, c) })
			if err != nil {
				return set, fmt.Errorf("writing %s: %w", a.Path, err)
			}
			a.Size = size
			set.Items = append(set.Items, a)
		}
	}
	return set, nil
}

// WritePoints writes point-cloud chunks. Point clouds have a single LOD and
// material, so every chunk uses code 0.
func (w *Writer) WritePoints(chunks []*mesh.PointChunk) (*Set, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}

	set := &Set{}
	for _, c := range chunks {
		a := Artifact{
			Path:  filepath.Join(w.Dir, FileName(w.Base, 0, c.Index)),
			Chunk: c.Index,
		}
		size, err := writeFile(a.Path, func(bw *bufio.Writer) error { return EncodePoints(bw, c) })
		if err != nil {
			return set, fmt.Errorf("writing %s: %w", a.Path, err)
		}
		a.Size = size
		set.Items = append(set.Items, a)
	}
	return set, nil
}

// writeFile creates path and fills it with encode. A file that could not be
// written completely is removed.
func writeFile(path string, encode func(*bufio.Writer) error) (size int64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	bw := bufio.NewWriterSize(f, 64*1024)
	if err := encode(bw); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// EncodeMesh writes a triangle chunk.
func EncodeMesh(w io.Writer, c *mesh.Chunk) error {
	e := newEncoder(w)
	e.str("{\n  \"primitive\": \"triangles\",\n  \"positions\": [")
	e.vectors(c.Positions, 3)
	e.str("],\n  \"normals\": [")
	e.vectors(c.Normals, 3)
	e.str("],\n  \"uv\": [")
	e.vectors(c.UVs, 2)
	e.str("],\n  \"uv2\": null,\n  \"indices\": [")
	for i, tri := range c.Triangles {
		for k, idx := range tri {
			if i > 0 || k > 0 {
				e.str(", ")
			}
			e.buf = strconv.AppendInt(e.buf[:0], int64(idx), 10)
			e.flush()
		}
	}
	e.str("]\n}\n")
	return e.err
}

// EncodePoints writes a point chunk. Colors are already formatted as four
// comma separated components.
func EncodePoints(w io.Writer, c *mesh.PointChunk) error {
	e := newEncoder(w)
	e.str("{\n  \"primitive\": \"points\",\n  \"pointSize\": 1,\n  \"positions\": [")
	e.vectors(c.Positions, 3)
	e.str("],\n  \"colors\": [")
	for i, col := range c.Colors {
		if i > 0 {
			e.str(", ")
		}
		e.str(col)
	}
	e.str("]\n}\n")
	return e.err
}

// encoder is a sticky-error writer for the artifact schema.
type encoder struct {
	w   io.Writer
	buf []byte
	err error
}

func newEncoder(w io.Writer) *encoder {
	return &encoder{w: w, buf: make([]byte, 0, 32)}
}

func (e *encoder) str(s string) {
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

func (e *encoder) flush() {
	if e.err == nil {
		_, e.err = e.w.Write(e.buf)
	}
}

func (e *encoder) vectors(vs []geom.Vector3, components int) {
	for i, v := range vs {
		if i > 0 {
			e.str(", ")
		}
		e.float(v.X)
		e.str(", ")
		e.float(v.Y)
		if components == 3 {
			e.str(", ")
			e.float(v.Z)
		}
	}
}

// float writes f in fixed-point notation with the fewest digits that
// round-trip. No exponent, no locale.
func (e *encoder) float(f float64) {
	e.buf = strconv.AppendFloat(e.buf[:0], f, 'f', -1, 64)
	e.flush()
}
