package export

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/chimera-importer/internal/artifact"
	"github.com/Faultbox/chimera-importer/internal/mesh"
	"github.com/Faultbox/chimera-importer/pkg/formats"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// Report describes what an export of a mesh would produce at LOD 0.
type Report struct {
	Source        string
	Positions     int
	Faces         int
	MultiMaterial bool
	Textures      map[string]string
	Sphere        geom.BoundingSphere
	Stats         mesh.Stats
}

// Inspect parses, reindexes and splits the mesh at path without writing or
// uploading anything.
func Inspect(path string, log *zap.Logger) (*Report, error) {
	obj, err := formats.LoadOBJ(path, formats.OBJOptions{Name: artifact.BaseName(path)})
	if err != nil {
		return nil, err
	}
	u, err := mesh.NewReindexer(log).Reindex(obj)
	if err != nil {
		return nil, err
	}

	return &Report{
		Source:        path,
		Positions:     len(obj.Positions),
		Faces:         obj.Groups.Faces(),
		MultiMaterial: obj.MultiMaterial(),
		Textures:      obj.Textures,
		Sphere:        geom.SphereOf(obj.Positions),
		Stats:         mesh.Summarize(u, mesh.Split(u)),
	}, nil
}

func dirOf(path string) string {
	return filepath.Dir(path)
}
