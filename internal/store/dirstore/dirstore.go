// Package dirstore stages exported objects in a local directory tree:
//
//	<root>/<l0>/<l1>/<l2>/<l3>/<name>/v<version>/
//	    object.yaml
//	    mesh/part-0000.bin
//	    json/<code>-<chunk>.json
//	    textures/<code>/<file>
package dirstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/chimera-importer/internal/store"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

const metadataFile = "object.yaml"

// Object is the content of object.yaml.
type Object struct {
	Name          string     `yaml:"name"`
	Layers        []string   `yaml:"layers"`
	Version       int        `yaml:"version"`
	Type          string     `yaml:"type"`
	Updating      bool       `yaml:"updating"`
	LockedBy      string     `yaml:"locked_by,omitempty"`
	MultiMaterial bool       `yaml:"multi_material"`
	Updated       time.Time  `yaml:"updated"`
	Lods          []LodEntry `yaml:"lods,omitempty"`
}

// LodEntry is the stored form of store.LodMetadata.
type LodEntry struct {
	Code        int        `yaml:"code"`
	Center      [3]float64 `yaml:"center,flow"`
	Radius      float64    `yaml:"radius"`
	Parts       int        `yaml:"parts"`
	HasTexture  bool       `yaml:"has_texture"`
	Translation [3]float64 `yaml:"translation,flow"`
	SRS         string     `yaml:"srs,omitempty"`
}

// Metadata converts the entry back to store.LodMetadata.
func (e LodEntry) Metadata() store.LodMetadata {
	return store.LodMetadata{
		Code:        e.Code,
		Center:      geom.Vector3{X: e.Center[0], Y: e.Center[1], Z: e.Center[2]},
		Radius:      e.Radius,
		Parts:       e.Parts,
		HasTexture:  e.HasTexture,
		Translation: geom.Vector3{X: e.Translation[0], Y: e.Translation[1], Z: e.Translation[2]},
		SRS:         e.SRS,
	}
}

// Store writes under Root. Connections share a lock around object.yaml.
type Store struct {
	Root string
	User string

	mu  sync.Mutex
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns a Store rooted at root, recording user as the lock owner.
func New(root, user string) *Store {
	return &Store{Root: root, User: user, now: time.Now}
}

// Connect checks that the root is usable and returns a connection.
func (s *Store) Connect(ctx context.Context) (store.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, &store.ConnectionError{Op: store.OpConnect, Err: err}
	}
	if s.Root == "" {
		return nil, &store.ConnectionError{Op: store.OpConnect, Err: errors.New("no store root configured")}
	}
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return nil, &store.ConnectionError{Op: store.OpConnect, Err: err}
	}
	return &conn{s: s}, nil
}

// Dir returns the directory of a target. It does not validate t.
func (s *Store) Dir(t store.Target) string {
	return filepath.Join(s.Root, filepath.FromSlash(t.Key()))
}

// dir returns the directory of a valid target that lies below Root.
func (s *Store) dir(t store.Target) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	d := s.Dir(t)
	rel, err := filepath.Rel(s.Root, d)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s resolves outside the store root", store.ErrInvalidTarget, t.Key())
	}
	return d, nil
}

// Load reads the metadata of a target.
func (s *Store) Load(t store.Target) (*Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(t)
}

func (s *Store) load(t store.Target) (*Object, error) {
	dir, err := s.dir(t)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrUnknownObject
	}
	if err != nil {
		return nil, err
	}
	var o Object
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", metadataFile, err)
	}
	return &o, nil
}

func (s *Store) save(t store.Target, o *Object) error {
	o.Updated = s.now().UTC()
	data, err := yaml.Marshal(o)
	if err != nil {
		return err
	}
	dir, err := s.dir(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, metadataFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, metadataFile))
}

// update runs fn on the stored metadata of t and writes it back.
func (s *Store) update(t store.Target, fn func(o *Object) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.load(t)
	if err != nil {
		return err
	}
	if err := fn(o); err != nil {
		return err
	}
	return s.save(t, o)
}

type conn struct {
	s      *Store
	closed bool
}

func (c *conn) check(ctx context.Context, op string) error {
	if c.closed {
		return &store.ConnectionError{Op: op, Err: errors.New("connection closed")}
	}
	if err := ctx.Err(); err != nil {
		return &store.ConnectionError{Op: op, Err: err}
	}
	return nil
}

func queryErr(op string, t store.Target, err error) error {
	if err == nil {
		return nil
	}
	return &store.QueryError{Op: op, Target: t, Err: err}
}

func (c *conn) PreinitializeObject(ctx context.Context, t store.Target) error {
	if err := c.check(ctx, store.OpPreinitialize); err != nil {
		return err
	}
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(t)
	switch {
	case err == nil && t.IsNew:
		return queryErr(store.OpPreinitialize, t, store.ErrObjectExists)
	case err == nil && existing.Updating && existing.LockedBy != s.User:
		return queryErr(store.OpPreinitialize, t, fmt.Errorf("%w: %s", store.ErrLockHeld, existing.LockedBy))
	case err != nil && !errors.Is(err, store.ErrUnknownObject):
		return queryErr(store.OpPreinitialize, t, err)
	}

	dir, err := s.dir(t)
	if err != nil {
		return queryErr(store.OpPreinitialize, t, err)
	}
	// Drop artifacts of a previous export of the same version.
	for _, sub := range []string{"mesh", "json", "textures"} {
		if err := os.RemoveAll(filepath.Join(dir, sub)); err != nil {
			return queryErr(store.OpPreinitialize, t, err)
		}
	}

	o := &Object{
		Name:     t.Name,
		Layers:   t.Layers[:],
		Version:  t.Version,
		Type:     t.Type.String(),
		Updating: true,
		LockedBy: s.User,
	}
	return queryErr(store.OpPreinitialize, t, s.save(t, o))
}

func (c *conn) MarkMultiMaterial(ctx context.Context, t store.Target) error {
	if err := c.check(ctx, store.OpMarkMultiMaterial); err != nil {
		return err
	}
	return queryErr(store.OpMarkMultiMaterial, t, c.s.update(t, func(o *Object) error {
		o.MultiMaterial = true
		return nil
	}))
}

func (c *conn) UpdateLodMetadata(ctx context.Context, t store.Target, md store.LodMetadata) error {
	if err := c.check(ctx, store.OpUpdateLodMetadata); err != nil {
		return err
	}
	entry := LodEntry{
		Code:        md.Code,
		Center:      [3]float64{md.Center.X, md.Center.Y, md.Center.Z},
		Radius:      md.Radius,
		Parts:       md.Parts,
		HasTexture:  md.HasTexture,
		Translation: [3]float64{md.Translation.X, md.Translation.Y, md.Translation.Z},
		SRS:         md.SRS,
	}
	return queryErr(store.OpUpdateLodMetadata, t, c.s.update(t, func(o *Object) error {
		for i := range o.Lods {
			if o.Lods[i].Code == entry.Code {
				o.Lods[i] = entry
				return nil
			}
		}
		o.Lods = append(o.Lods, entry)
		sort.Slice(o.Lods, func(i, j int) bool { return o.Lods[i].Code < o.Lods[j].Code })
		return nil
	}))
}

// writeBlob stores data below the target directory once the target is known.
func (c *conn) writeBlob(ctx context.Context, op string, t store.Target, rel string, data []byte) error {
	if err := c.check(ctx, op); err != nil {
		return err
	}
	if _, err := c.s.Load(t); err != nil {
		return queryErr(op, t, err)
	}
	dir, err := c.s.dir(t)
	if err != nil {
		return queryErr(op, t, err)
	}
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return queryErr(op, t, err)
	}
	return queryErr(op, t, os.WriteFile(path, data, 0644))
}

func (c *conn) UploadMeshPart(ctx context.Context, t store.Target, part int, data []byte) error {
	return c.writeBlob(ctx, store.OpUploadMeshPart, t, MeshPartPath(part), data)
}

func (c *conn) UploadJSONChunk(ctx context.Context, t store.Target, code, chunk int, data []byte) error {
	return c.writeBlob(ctx, store.OpUploadJSONChunk, t, JSONChunkPath(code, chunk), data)
}

func (c *conn) UploadTexture(ctx context.Context, t store.Target, code int, tex store.Texture) error {
	if tex.Name == "" || filepath.Base(tex.Name) != tex.Name {
		return queryErr(store.OpUploadTexture, t, fmt.Errorf("invalid texture name %q", tex.Name))
	}
	return c.writeBlob(ctx, store.OpUploadTexture, t, TexturePath(code, tex.Name), tex.Data)
}

func (c *conn) ClearLock(ctx context.Context, t store.Target) error {
	if err := c.check(ctx, store.OpClearLock); err != nil {
		return err
	}
	user := c.s.User
	return queryErr(store.OpClearLock, t, c.s.update(t, func(o *Object) error {
		if !o.Updating {
			return store.ErrNotLocked
		}
		if o.LockedBy != user {
			return fmt.Errorf("%w: %s", store.ErrLockHeld, o.LockedBy)
		}
		o.Updating = false
		o.LockedBy = ""
		return nil
	}))
}

func (c *conn) Close() error {
	c.closed = true
	return nil
}

// MeshPartPath is the location of a raw mesh part relative to the target directory.
func MeshPartPath(part int) string {
	return filepath.Join("mesh", fmt.Sprintf("part-%04d.bin", part))
}

// JSONChunkPath is the location of a JSON chunk relative to the target directory.
func JSONChunkPath(code, chunk int) string {
	return filepath.Join("json", fmt.Sprintf("%d-%d.json", code, chunk))
}

// TexturePath is the location of a texture relative to the target directory.
func TexturePath(code int, name string) string {
	return filepath.Join("textures", fmt.Sprint(code), name)
}
