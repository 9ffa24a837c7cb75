package formats

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// PointCloud is a parsed XYZRGB point list with one color string per point.
type PointCloud struct {
	Positions []geom.Vector3
	Colors    []string // "r, g, b, 1.0" with components in 0..1
	Bounds    geom.AABB
}

// Len returns the number of points.
func (pc *PointCloud) Len() int {
	return len(pc.Positions)
}

// LoadPointCloud parses the point cloud at path.
func LoadPointCloud(path string, offset geom.Vector3) (*PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening point cloud: %w", err)
	}
	defer f.Close()

	pc, err := ParsePointCloud(f, offset)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	return pc, nil
}

// ParsePointCloud parses "x y z r g b" lines. Colors are either 0-255 integers or
// values already normalized to 0..1; the format is detected per line.
func ParsePointCloud(r io.Reader, offset geom.Vector3) (*PointCloud, error) {
	pc := &PointCloud{}

	scanner := newScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, &ParseError{Line: lineNum, Text: line, Err: fmt.Errorf("%w: want 6, got %d", ErrMissingValues, len(fields))}
		}

		v, err := parseFloats(fields[:3], 3)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: line, Err: err}
		}
		p := geom.Vector3{X: v[0] + offset.X, Y: v[1] + offset.Y, Z: v[2] + offset.Z}

		color, err := parseColor(fields[3:6])
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: line, Err: err}
		}

		pc.Positions = append(pc.Positions, p)
		pc.Colors = append(pc.Colors, color)
		pc.Bounds.Add(p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading point cloud: %w", err)
	}
	return pc, nil
}

// isNormalizedColor reports whether a token looks like "0.xxx".
func isNormalizedColor(token string) bool {
	return len(token) > 2 && token[1] == '.'
}

func parseColor(tokens []string) (string, error) {
	if isNormalizedColor(tokens[0]) && isNormalizedColor(tokens[1]) && isNormalizedColor(tokens[2]) {
		if _, err := parseFloats(tokens, 3); err != nil {
			return "", err
		}
		return tokens[0] + ", " + tokens[1] + ", " + tokens[2] + ", 1.0", nil
	}

	var sb strings.Builder
	for _, tok := range tokens {
		c, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			return "", err
		}
		sb.WriteString(strconv.FormatFloat(float64(c)/255.0, 'f', 3, 64))
		sb.WriteString(", ")
	}
	sb.WriteString("1.0")
	return sb.String(), nil
}
