package formats

import (
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/chimera-importer/pkg/geom"
)

func TestParsePointCloud_ByteColors(t *testing.T) {
	src := `0 0 0 255 0 0
1 0 0 0 255 0
0 1 0 0 0 255
0 0 1 128 128 128
1 1 1 0 0 0
`
	pc, err := ParsePointCloud(strings.NewReader(src), geom.Vector3{})
	if err != nil {
		t.Fatalf("ParsePointCloud failed: %v", err)
	}
	if pc.Len() != 5 {
		t.Fatalf("expected 5 points, got %d", pc.Len())
	}

	want := []string{
		"1.000, 0.000, 0.000, 1.0",
		"0.000, 1.000, 0.000, 1.0",
		"0.000, 0.000, 1.000, 1.0",
		"0.502, 0.502, 0.502, 1.0",
		"0.000, 0.000, 0.000, 1.0",
	}
	for i, w := range want {
		if pc.Colors[i] != w {
			t.Errorf("color %d = %q, want %q", i, pc.Colors[i], w)
		}
	}

	if pc.Bounds.Max != (geom.Vector3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("bounds max = %v", pc.Bounds.Max)
	}
}

func TestParsePointCloud_NormalizedColors(t *testing.T) {
	src := "1 2 3 0.500 0.250 1.000\n"
	pc, err := ParsePointCloud(strings.NewReader(src), geom.Vector3{X: -1})
	if err != nil {
		t.Fatalf("ParsePointCloud failed: %v", err)
	}
	if pc.Colors[0] != "0.500, 0.250, 1.000, 1.0" {
		t.Errorf("color = %q", pc.Colors[0])
	}
	if pc.Positions[0] != (geom.Vector3{X: 0, Y: 2, Z: 3}) {
		t.Errorf("position = %v", pc.Positions[0])
	}
}

func TestParsePointCloud_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"too few values", "0 0 0 1 2\n"},
		{"color out of range", "0 0 0 256 0 0\n"},
		{"bad coordinate", "0 x 0 1 2 3\n"},
		{"bad normalized color", "0 0 0 0.5x 0.2 0.1\n"},
		{"nan coordinate", "nan 0 0 1 2 3\n"},
		{"infinite coordinate", "0 -Inf 0 1 2 3\n"},
		{"overflowing normalized color", "0 0 0 1.e999 0.2 0.1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePointCloud(strings.NewReader(tt.src), geom.Vector3{})
			if !errors.Is(err, ErrFormat) {
				t.Errorf("expected format error, got %v", err)
			}
		})
	}
}
