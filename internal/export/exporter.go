// Package export runs the multi-LOD export of one object: it parses,
// reindexes, splits and serializes every level of detail and hands the
// results to parallel upload tasks.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/chimera-importer/internal/artifact"
	"github.com/Faultbox/chimera-importer/internal/mesh"
	"github.com/Faultbox/chimera-importer/internal/store"
	"github.com/Faultbox/chimera-importer/internal/upload"
	"github.com/Faultbox/chimera-importer/pkg/formats"
	"github.com/Faultbox/chimera-importer/pkg/geom"
)

// maxTasks bounds the upload goroutines of a session: one JSON and one
// texture task per LOD plus the raw mesh.
const maxTasks = 2*MaxLods + 1

// Decimator produces the simplified mesh for a LOD from input.
type Decimator interface {
	Decimate(ctx context.Context, lod int, input string) (string, error)
}

// Options tune an export.
type Options struct {
	TempDir           string
	Lods              int // detail levels to produce, MaxLods when 0
	PartSize          int // raw mesh part size
	TextureResolution int // longest texture side at LOD 0

	// Translation is the offset of the source coordinates. It is always
	// recorded, negated, in the LOD metadata. Unless LocalCoordinates is set
	// it is also subtracted from every parsed position.
	Translation      geom.Vector3
	LocalCoordinates bool
	SRS              string
}

func (o Options) parseOffset() geom.Vector3 {
	if o.LocalCoordinates {
		return geom.Vector3{}
	}
	return geom.Vector3{X: -o.Translation.X, Y: -o.Translation.Y, Z: -o.Translation.Z}
}

func (o Options) recordedTranslation() geom.Vector3 {
	return geom.Vector3{X: -o.Translation.X, Y: -o.Translation.Y, Z: -o.Translation.Z}
}

// Exporter runs sessions against a store.
type Exporter struct {
	Store     store.Store
	Decimator Decimator
	Options   Options
	Log       *zap.Logger
}

func (e *Exporter) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *Exporter) client(s *Session) *upload.Client {
	return &upload.Client{
		Store:         e.Store,
		Target:        s.Target,
		Progress:      s.Tracker(),
		PartSize:      e.Options.PartSize,
		TempDir:       e.Options.TempDir,
		MaxResolution: e.Options.TextureResolution,
		Log:           e.log(),
	}
}

// Run exports s.Source into s.Target. It returns s.Err(); the session holds
// the outcome and every failure.
func (e *Exporter) Run(ctx context.Context, s *Session) error {
	log := e.log().With(zap.String("target", s.Target.Key()), zap.String("source", s.Source))

	if err := s.Target.Validate(); err != nil {
		s.Fail(err)
		return s.Err()
	}

	conn, err := e.Store.Connect(ctx)
	if err != nil {
		s.Fail(fmt.Errorf("connecting to store: %w", err))
		return s.Err()
	}
	defer conn.Close()

	if err := conn.PreinitializeObject(ctx, s.Target); err != nil {
		s.Fail(fmt.Errorf("preinitializing object: %w", err))
		return s.Err()
	}
	s.Tracker().Add(preinitWeight)

	switch s.Target.Type {
	case store.PointCloud:
		e.runPointCloud(ctx, s, conn, log)
	default:
		e.runMesh(ctx, s, conn, log)
	}

	if !s.Success() {
		log.Error("export failed", zap.Error(s.Err()), zap.Float64("progress", s.Progress()))
		return s.Err()
	}

	if err := conn.ClearLock(ctx, s.Target); err != nil {
		s.Fail(fmt.Errorf("clearing update lock: %w", err))
		return s.Err()
	}
	s.Tracker().Add(finalizeWeight)
	s.Tracker().Finalize()

	log.Info("export complete")
	return nil
}

// meshTasks collects the upload tasks of a mesh export.
type meshTasks struct {
	g    errgroup.Group
	s    *Session
	sets []*artifact.Set
}

func (t *meshTasks) spawn(name string, lod int, fn func() error) {
	t.g.Go(func() error {
		if err := fn(); err != nil {
			err = fmt.Errorf("%s upload for LOD %d: %w", name, lod, err)
			t.s.Fail(err)
			return err
		}
		return nil
	})
}

func (e *Exporter) runMesh(ctx context.Context, s *Session, conn store.Conn, log *zap.Logger) {
	lods := e.Options.Lods
	if lods <= 0 || lods > MaxLods {
		lods = MaxLods
	}
	if e.Decimator == nil && lods > 1 {
		log.Warn("no decimator configured, exporting LOD 0 only")
		lods = 1
	}

	tasks := &meshTasks{s: s}
	tasks.g.SetLimit(maxTasks)
	client := e.client(s)

	current := s.Source
	for lod := 0; lod < lods && s.Success(); lod++ {
		s.setLod(lod)

		if lod > 0 {
			next, err := e.Decimator.Decimate(ctx, lod, current)
			if err != nil {
				s.Fail(fmt.Errorf("decimating LOD %d: %w", lod, err))
				break
			}
			e.removeTempMesh(current, s.Source, log)
			current = next
			s.Tracker().Add(decimationWeight)
		}

		set, materials, err := e.exportLod(ctx, s, conn, lod, current, log)
		if err != nil {
			if set != nil {
				tasks.sets = append(tasks.sets, set)
			}
			s.Fail(fmt.Errorf("LOD %d: %w", lod, err))
			break
		}
		tasks.sets = append(tasks.sets, set)

		w := LodWeight(lod)
		tasks.spawn("json", lod, func() error {
			return client.UploadJSON(ctx, set, jsonShare(w))
		})
		if hasTexture(materials) {
			tasks.spawn("texture", lod, func() error {
				return client.UploadTextures(ctx, lod, materials, textureShare(w))
			})
		} else {
			s.Tracker().Add(textureShare(w))
		}
		if lod == 0 {
			tasks.spawn("mesh", lod, func() error {
				return client.UploadMesh(ctx, s.Source, rawMeshWeight)
			})
		}
	}

	_ = tasks.g.Wait()

	e.removeTempMesh(current, s.Source, log)
	for _, set := range tasks.sets {
		if err := set.Remove(); err != nil {
			log.Warn("could not remove leftover artifacts", zap.Int("lod", set.Lod), zap.Error(err))
		}
	}
}

// exportLod turns the mesh at path into uploaded metadata and a set of
// artifacts for lod. It returns the material textures of the LOD.
func (e *Exporter) exportLod(ctx context.Context, s *Session, conn store.Conn, lod int, path string, log *zap.Logger) (*artifact.Set, []upload.MaterialTexture, error) {
	w := LodWeight(lod)

	obj, err := formats.LoadOBJ(path, formats.OBJOptions{
		Name:       artifact.BaseName(s.Source),
		Offset:     e.Options.parseOffset(),
		TextureDir: dirOf(s.Source),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("parsing mesh: %w", err)
	}
	s.Tracker().Add(stageShare(w))

	var bounds geom.AABB
	sphere := bounds.AddRange(obj.Positions).Sphere()

	unified, err := mesh.NewReindexer(log).Reindex(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("reindexing: %w", err)
	}
	if unified.TriangleCount() == 0 {
		return nil, nil, fmt.Errorf("%w: mesh has no faces", formats.ErrFormat)
	}
	groups := mesh.Split(unified)
	s.Tracker().Add(stageShare(w))

	set, err := artifact.NewWriter(e.Options.TempDir, s.Source).WriteMesh(lod, groups)
	if err != nil {
		return set, nil, fmt.Errorf("serializing chunks: %w", err)
	}
	s.Tracker().Add(stageShare(w))

	if lod == 0 && obj.MultiMaterial() {
		if err := conn.MarkMultiMaterial(ctx, s.Target); err != nil {
			return set, nil, fmt.Errorf("marking multi-material: %w", err)
		}
	}

	materials := make([]upload.MaterialTexture, len(groups))
	for i, mc := range groups {
		materials[i] = upload.MaterialTexture{Index: mc.Index, Material: mc.Name, Path: obj.Textures[mc.Name]}

		md := store.LodMetadata{
			Code:        artifact.LodCode(mc.Index, lod),
			Center:      sphere.Center,
			Radius:      sphere.Radius,
			Parts:       len(mc.Chunks),
			HasTexture:  materials[i].Path != "",
			Translation: e.Options.recordedTranslation(),
			SRS:         e.Options.SRS,
		}
		if err := conn.UpdateLodMetadata(ctx, s.Target, md); err != nil {
			return set, nil, fmt.Errorf("updating metadata for %s: %w", mc.Name, err)
		}
	}

	log.Info("LOD exported",
		zap.Int("lod", lod),
		zap.Int("materials", len(groups)),
		zap.Int("chunks", set.Len()),
		zap.Int("vertices", unified.VertexCount()),
		zap.Int("triangles", unified.TriangleCount()),
		zap.Int("mismatches", unified.Mismatches))

	return set, materials, nil
}

func (e *Exporter) runPointCloud(ctx context.Context, s *Session, conn store.Conn, log *zap.Logger) {
	s.setLod(0)

	pc, err := formats.LoadPointCloud(s.Source, e.Options.parseOffset())
	if err != nil {
		s.Fail(fmt.Errorf("parsing point cloud: %w", err))
		return
	}
	if pc.Len() == 0 {
		s.Fail(fmt.Errorf("%w: %s has no points", formats.ErrFormat, s.Source))
		return
	}
	chunks := mesh.SplitPoints(pc)
	s.Tracker().Add(pointParseWeight)

	set, err := artifact.NewWriter(e.Options.TempDir, s.Source).WritePoints(chunks)
	if err != nil {
		s.Fail(fmt.Errorf("serializing points: %w", err))
		if set != nil {
			_ = set.Remove()
		}
		return
	}
	s.Tracker().Add(pointSerializeWeight)

	sphere := pc.Bounds.Sphere()
	md := store.LodMetadata{
		Center:      sphere.Center,
		Radius:      sphere.Radius,
		Parts:       len(chunks),
		Translation: e.Options.recordedTranslation(),
		SRS:         e.Options.SRS,
	}
	if err := conn.UpdateLodMetadata(ctx, s.Target, md); err != nil {
		s.Fail(fmt.Errorf("updating metadata: %w", err))
		_ = set.Remove()
		return
	}

	if err := e.client(s).UploadJSON(ctx, set, pointUploadWeight); err != nil {
		s.Fail(fmt.Errorf("json upload: %w", err))
		_ = set.Remove()
		return
	}

	log.Info("point cloud exported", zap.Int("points", pc.Len()), zap.Int("chunks", len(chunks)))
}

// removeTempMesh deletes a decimated mesh and its material library. The
// source mesh is never touched.
func (e *Exporter) removeTempMesh(path, source string, log *zap.Logger) {
	if path == source {
		return
	}
	for _, p := range []string{path, path + ".mtl"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not remove temporary mesh", zap.String("path", p), zap.Error(err))
		}
	}
}

func hasTexture(materials []upload.MaterialTexture) bool {
	for _, m := range materials {
		if m.Path != "" {
			return true
		}
	}
	return false
}
