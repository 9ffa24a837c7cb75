package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/chimera-importer/internal/config"
	"github.com/Faultbox/chimera-importer/internal/store"
	"github.com/Faultbox/chimera-importer/internal/store/dirstore"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

const triangleOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1
`

// isolate keeps the user's config file out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportTarget(t *testing.T) {
	tests := []struct {
		name    string
		flags   exportFlags
		source  string
		want    store.Target
		wantErr bool
	}{
		{
			name:   "mesh from extension",
			flags:  exportFlags{layers: "city/north/blocks/b12", version: 3},
			source: "/data/house.OBJ",
			want:   store.Target{Layers: [4]string{"city", "north", "blocks", "b12"}, Name: "house", Version: 3, Type: store.Mesh},
		},
		{
			name:   "point cloud with explicit name",
			flags:  exportFlags{layers: "/scans/2026/site/raw/", name: "survey", isNew: true},
			source: "scan.xyz",
			want:   store.Target{Layers: [4]string{"scans", "2026", "site", "raw"}, Name: "survey", Type: store.PointCloud, IsNew: true},
		},
		{
			name:   "explicit type",
			flags:  exportFlags{layers: "a/b/c/d", kind: "mesh"},
			source: "model.txt",
			want:   store.Target{Layers: [4]string{"a", "b", "c", "d"}, Name: "model", Type: store.Mesh},
		},
		{name: "missing layers", flags: exportFlags{}, source: "house.obj", wantErr: true},
		{name: "too few layers", flags: exportFlags{layers: "a/b/c"}, source: "house.obj", wantErr: true},
		{name: "empty layer", flags: exportFlags{layers: "a//c/d"}, source: "house.obj", wantErr: true},
		{name: "unknown type", flags: exportFlags{layers: "a/b/c/d", kind: "voxels"}, source: "house.obj", wantErr: true},
		{name: "negative version", flags: exportFlags{layers: "a/b/c/d", version: -1}, source: "house.obj", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.target(tt.source)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got target %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("target = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		in      string
		want    geom.Vector3
		wantErr bool
	}{
		{in: "1,2,3", want: geom.Vector3{X: 1, Y: 2, Z: 3}},
		{in: "1000.5, -20 , 0", want: geom.Vector3{X: 1000.5, Y: -20}},
		{in: "1,2", wantErr: true},
		{in: "1,x,3", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseVector(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseVector(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseVector(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestBindExportFlags(t *testing.T) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	ef := bindExportFlags(fs)
	err := fs.Parse([]string{"-layers", "a/b/c/d", "-lods", "3", "-local", "-translate", "1,2,3", "mesh.obj"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ef.layers != "a/b/c/d" || ef.lods != 3 || !ef.local || ef.translate != "1,2,3" {
		t.Errorf("flags = %+v", ef)
	}
	if fs.Arg(0) != "mesh.obj" {
		t.Errorf("arg = %q", fs.Arg(0))
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run("explode", nil, &out); err == nil {
		t.Error("expected error for unknown command")
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Error("expected usage output")
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run("help", nil, &out); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "inspect") {
		t.Errorf("usage = %q", out.String())
	}
}

func TestExport_DirStore(t *testing.T) {
	dir := isolate(t)
	source := writeFile(t, dir, "tri.obj", triangleOBJ)
	root := filepath.Join(dir, "staging")

	var out bytes.Buffer
	args := []string{
		"-store", "dir", "-store-root", root,
		"-temp", filepath.Join(dir, "tmp"),
		"-layers", "a/b/c/d", "-version", "2", "-lods", "1", "-quiet",
		source,
	}
	if err := run("export", args, &out); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out.String(), "Exported") {
		t.Errorf("output = %q", out.String())
	}

	st := dirstore.New(root, "")
	target := store.Target{Layers: [4]string{"a", "b", "c", "d"}, Name: "tri", Version: 2, Type: store.Mesh}
	o, err := st.Load(target)
	if err != nil {
		t.Fatalf("loading object: %v", err)
	}
	if o.Updating {
		t.Error("object still marked as updating")
	}
	if len(o.Lods) != 1 || o.Lods[0].Code != 0 {
		t.Errorf("lods = %+v", o.Lods)
	}
	if _, err := os.Stat(filepath.Join(st.Dir(target), dirstore.JSONChunkPath(0, 0))); err != nil {
		t.Errorf("json chunk missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(st.Dir(target), dirstore.MeshPartPath(0))); err != nil {
		t.Errorf("mesh part missing: %v", err)
	}
}

func TestExport_PointCloudWithProgress(t *testing.T) {
	dir := isolate(t)
	source := writeFile(t, dir, "scan.xyz", "0 0 0 255 0 0\n1 1 1 0 255 0\n")

	var out bytes.Buffer
	args := []string{
		"-store", "memory", "-temp", filepath.Join(dir, "tmp"),
		"-layers", "scans/2026/site/raw", "-translate", "10,0,0",
		source,
	}
	if err := run("export", args, &out); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out.String(), "100") {
		t.Errorf("expected final progress in output, got %q", out.String())
	}
}

func TestExport_Errors(t *testing.T) {
	dir := isolate(t)
	source := writeFile(t, dir, "tri.obj", triangleOBJ)
	tmp := filepath.Join(dir, "tmp")

	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"-layers", "a/b/c/d"}},
		{"bad layers", []string{"-store", "memory", "-temp", tmp, "-layers", "a/b", source}},
		{"bad translate", []string{"-store", "memory", "-temp", tmp, "-layers", "a/b/c/d", "-translate", "1", source}},
		{"bad lods", []string{"-store", "memory", "-temp", tmp, "-layers", "a/b/c/d", "-lods", "9", source}},
		{"bad store", []string{"-store", "s3", "-temp", tmp, "-layers", "a/b/c/d", source}},
		{"missing source", []string{"-store", "memory", "-temp", tmp, "-layers", "a/b/c/d", "-quiet", filepath.Join(dir, "nope.obj")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run("export", tt.args, &out); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInspect(t *testing.T) {
	dir := isolate(t)
	source := writeFile(t, dir, "tri.obj", triangleOBJ)

	var out bytes.Buffer
	if err := run("inspect", []string{source}, &out); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Positions: 3", "Faces:     1", "Chunks:    1", "Materials:"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}

	if err := run("inspect", nil, &out); err == nil {
		t.Error("expected usage error without a file")
	}
}

func TestConfigCommand(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name string
		args []string
		path string
	}{
		{"explicit file", []string{"-o", filepath.Join(dir, "out", "lod.yaml"), "-store", "memory"}, filepath.Join(dir, "out", "lod.yaml")},
		{"user config dir", []string{"-store", "memory"}, filepath.Join(config.ConfigDir(), "config.yaml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run("config", tt.args, &out); err != nil {
				t.Fatalf("config failed: %v", err)
			}
			data, err := os.ReadFile(tt.path)
			if err != nil {
				t.Fatalf("config not written: %v", err)
			}
			if !strings.Contains(string(data), "kind: memory") {
				t.Errorf("flag override not saved:\n%s", data)
			}
			if !strings.Contains(out.String(), tt.path) {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}
