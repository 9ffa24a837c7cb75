package formats

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Faultbox/chimera-importer/pkg/encoding"
)

// Material is one newmtl block. Only the diffuse map is kept.
type Material struct {
	Name       string
	DiffuseMap string
}

// MTL is a parsed material library.
type MTL struct {
	Materials []Material
}

// Lookup returns the material called name.
func (m *MTL) Lookup(name string) (Material, bool) {
	for _, mat := range m.Materials {
		if mat.Name == name {
			return mat, true
		}
	}
	return Material{}, false
}

// LoadMTL parses the material library at path.
func LoadMTL(path string) (*MTL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening material library: %w", err)
	}
	defer f.Close()

	mtl, err := ParseMTL(f)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return mtl, nil
}

// ParseMTL parses material library text. Directives other than newmtl and map_Kd
// are ignored.
func ParseMTL(r io.Reader) (*MTL, error) {
	mtl := &MTL{}
	current := -1

	scanner := newScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "newmtl":
			if len(fields) < 2 {
				return nil, &ParseError{Line: lineNum, Text: line, Err: ErrMissingValues}
			}
			mtl.Materials = append(mtl.Materials, Material{Name: encoding.DecodeName(fields[1])})
			current = len(mtl.Materials) - 1

		case "map_Kd":
			if len(fields) < 2 {
				return nil, &ParseError{Line: lineNum, Text: line, Err: ErrMissingValues}
			}
			if current < 0 {
				continue
			}
			// The path may contain spaces; keep the rest of the line.
			mtl.Materials[current].DiffuseMap = encoding.NormalizePath(strings.TrimSpace(line[len("map_Kd"):]))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading material library: %w", err)
	}
	return mtl, nil
}
