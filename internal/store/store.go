// Package store defines the staging store that receives exported objects.
//
// A Store hands out connections; every upload task opens its own. All
// operations are keyed by a Target, the layered identity of one object version.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// Operation names, used in errors and by adapters that record calls.
const (
	OpConnect           = "connect"
	OpPreinitialize     = "preinitialize"
	OpMarkMultiMaterial = "mark_multi_material"
	OpUpdateLodMetadata = "update_lod_metadata"
	OpUploadMeshPart    = "upload_mesh_part"
	OpUploadJSONChunk   = "upload_json_chunk"
	OpUploadTexture     = "upload_texture"
	OpClearLock         = "clear_lock"
)

// ObjectType is the kind of geometry stored for a target.
type ObjectType int

const (
	Mesh ObjectType = iota
	PointCloud
)

func (t ObjectType) String() string {
	switch t {
	case Mesh:
		return "mesh"
	case PointCloud:
		return "pointcloud"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseObjectType is the inverse of ObjectType.String.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "mesh":
		return Mesh, nil
	case "pointcloud":
		return PointCloud, nil
	}
	return 0, fmt.Errorf("unknown object type %q", s)
}

// Target identifies one version of an object in the layer hierarchy.
// It does not change during an export.
type Target struct {
	Layers  [4]string
	Name    string
	Version int
	Type    ObjectType
	IsNew   bool
}

// Key returns the slash-separated location of the target.
func (t Target) Key() string {
	return path.Join(t.Layers[0], t.Layers[1], t.Layers[2], t.Layers[3], t.Name, "v"+strconv.Itoa(t.Version))
}

func (t Target) String() string {
	return t.Key()
}

// Validate checks that the target names an object. Layers and name become
// path segments of Key, so each must be a single plain segment.
func (t Target) Validate() error {
	if err := checkSegment(t.Name); err != nil {
		return fmt.Errorf("%w: name: %v", ErrInvalidTarget, err)
	}
	for i, l := range t.Layers {
		if err := checkSegment(l); err != nil {
			return fmt.Errorf("%w: %s: layer %d: %v", ErrInvalidTarget, t.Name, i, err)
		}
	}
	if t.Version < 0 {
		return fmt.Errorf("%w: %s: negative version %d", ErrInvalidTarget, t.Name, t.Version)
	}
	return nil
}

func checkSegment(s string) error {
	switch {
	case s == "":
		return errors.New("empty")
	case s == "." || s == "..":
		return fmt.Errorf("%q is not allowed", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("%q contains a path separator", s)
	case strings.ContainsRune(s, 0):
		return fmt.Errorf("%q contains a NUL byte", s)
	}
	return nil
}

// LodMetadata describes one (material, LOD) entry of a mesh.
type LodMetadata struct {
	Code        int // materialIndex*100 + lod
	Center      geom.Vector3
	Radius      float64
	Parts       int
	HasTexture  bool
	Translation geom.Vector3
	SRS         string
}

// Texture is an encoded texture image.
type Texture struct {
	Name string
	MIME string
	Data []byte
}

// Store opens connections to the staging store.
type Store interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one connection to the staging store. A Conn is used by a single
// goroutine.
type Conn interface {
	// PreinitializeObject creates or resets the target and locks it for update.
	PreinitializeObject(ctx context.Context, t Target) error
	// MarkMultiMaterial flags the target as carrying several materials.
	MarkMultiMaterial(ctx context.Context, t Target) error
	UpdateLodMetadata(ctx context.Context, t Target, md LodMetadata) error
	UploadMeshPart(ctx context.Context, t Target, part int, data []byte) error
	UploadJSONChunk(ctx context.Context, t Target, code, chunk int, data []byte) error
	UploadTexture(ctx context.Context, t Target, code int, tex Texture) error
	// ClearLock releases the update lock taken by PreinitializeObject.
	ClearLock(ctx context.Context, t Target) error
	Close() error
}
