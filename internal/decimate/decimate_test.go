package decimate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("writing tool: %v", err)
	}
	return path
}

func TestRunner_Args(t *testing.T) {
	r := &Runner{Tool: "meshlabserver", ScriptDir: "/scripts", ScriptPattern: "testscript-%d.mlx", TempDir: "/tmp/x"}

	got := r.Args(3, "in.obj", "out.obj")
	want := []string{"-i", "in.obj", "-o", "out.obj", "-m", "vc", "vn", "fc", "fn", "wt", "-s", "/scripts/testscript-3.mlx"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestRunner_OutputPath(t *testing.T) {
	r := &Runner{TempDir: "/tmp/x"}

	tests := []struct {
		input string
		lod   int
		want  string
	}{
		{"/data/house.obj", 1, "/tmp/x/houseLOD1.obj"},
		{"/tmp/x/houseLOD1.obj", 2, "/tmp/x/houseLOD2.obj"},
		{"/data/LODge.obj", 1, "/tmp/x/LODgeLOD1.obj"},
	}
	for _, tt := range tests {
		if got := r.OutputPath(tt.input, tt.lod); got != tt.want {
			t.Errorf("OutputPath(%s, %d) = %s, want %s", tt.input, tt.lod, got, tt.want)
		}
	}
}

func TestRunner_Decimate(t *testing.T) {
	tool := writeTool(t, `cp "$2" "$4"`+"\n")
	input := filepath.Join(t.TempDir(), "house.obj")
	if err := os.WriteFile(input, []byte("v 0 0 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := &Runner{Tool: tool, ScriptDir: t.TempDir(), ScriptPattern: "s-%d.mlx", TempDir: t.TempDir()}
	out, err := r.Decimate(context.Background(), 1, input)
	if err != nil {
		t.Fatalf("Decimate failed: %v", err)
	}
	if filepath.Base(out) != "houseLOD1.obj" {
		t.Errorf("output = %s", out)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "v 0 0 0\n" {
		t.Errorf("output content = %q, %v", data, err)
	}
}

func TestRunner_DecimateFailure(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantText string
	}{
		{"exit code", "echo 'filter not found' >&2\nexit 2\n", 2, "filter not found"},
		{"no output", "echo done\nexit 0\n", 0, "output mesh missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Runner{Tool: writeTool(t, tt.body), ScriptPattern: "s-%d.mlx", TempDir: t.TempDir()}
			_, err := r.Decimate(context.Background(), 4, "house.obj")

			var te *ToolError
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want *ToolError", err)
			}
			if te.ExitCode != tt.wantCode || te.Lod != 4 {
				t.Errorf("ToolError = %+v", te)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q does not mention %q", err, tt.wantText)
			}
		})
	}
}

func TestRunner_MissingTool(t *testing.T) {
	r := &Runner{Tool: filepath.Join(t.TempDir(), "absent"), ScriptPattern: "s-%d.mlx", TempDir: t.TempDir()}
	_, err := r.Decimate(context.Background(), 1, "house.obj")

	var te *ToolError
	if !errors.As(err, &te) || te.ExitCode != -1 {
		t.Errorf("error = %v, want ToolError with exit code -1", err)
	}
}
