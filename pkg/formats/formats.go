// Package formats provides parsers for the text geometry formats accepted by the
// exporter: Wavefront OBJ meshes, their MTL material libraries and XYZRGB point
// clouds.
package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Format errors.
var (
	ErrFormat        = errors.New("geometry format is not valid or unsupported")
	ErrFaceArity     = errors.New("face must have exactly three position/uv/normal records")
	ErrMissingValues = errors.New("not enough values")
	ErrBadIndex      = errors.New("face index must be a positive integer")
	ErrNonFinite     = errors.New("value must be a finite number")
)

// maxLineSize bounds a single line; point clouds and OBJ exports rarely exceed a
// few hundred bytes per line.
const maxLineSize = 1024 * 1024

// ParseError reports a line that could not be parsed.
type ParseError struct {
	Path string // Source file, empty when parsing a reader
	Line int    // 1-based line number
	Text string // Offending line
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %q is not supported: %v", e.Path, e.Line, e.Text, e.Err)
	}
	return fmt.Sprintf("line %d: %q is not supported: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes every ParseError match ErrFormat.
func (e *ParseError) Is(target error) bool {
	return target == ErrFormat
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return scanner
}

func parseFloats(values []string, n int) ([]float64, error) {
	if len(values) < n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrMissingValues, n, len(values))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(values[i], 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %q", ErrNonFinite, values[i])
		}
		out[i] = f
	}
	return out, nil
}
