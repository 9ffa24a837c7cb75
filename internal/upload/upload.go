// Package upload sends exported artifacts to the staging store. Every upload
// method opens its own connection so tasks can run in parallel.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/chimera-importer/internal/artifact"
	"github.com/Faultbox/chimera-importer/internal/progress"
	"github.com/Faultbox/chimera-importer/internal/store"
	"github.com/Faultbox/chimera-importer/internal/texture"
)

// DefaultPartSize is the largest raw mesh part sent in one call.
const DefaultPartSize = 8 << 20

// ResourceMissingError reports a local file that should exist but does not.
type ResourceMissingError struct {
	Path string
	Err  error
}

func (e *ResourceMissingError) Error() string {
	return fmt.Sprintf("missing local file %s: %v", e.Path, e.Err)
}

func (e *ResourceMissingError) Unwrap() error {
	return e.Err
}

// Client uploads the artifacts of one target.
type Client struct {
	Store    store.Store
	Target   store.Target
	Progress *progress.Tracker

	PartSize      int    // raw mesh part size, DefaultPartSize when 0
	TempDir       string // where resized textures are written
	MaxResolution int    // longest texture side at LOD 0

	Log *zap.Logger
}

func (c *Client) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// spread splits weight over n steps on the client's tracker.
func (c *Client) spread(weight float64, n int) func() {
	if c.Progress == nil {
		return func() {}
	}
	return c.Progress.Spread(weight, n)
}

func (c *Client) connect(ctx context.Context) (store.Conn, error) {
	conn, err := c.Store.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting for %s: %w", c.Target, err)
	}
	return conn, nil
}

// UploadMesh sends the source file in parts numbered from 0. It stops at the
// first failed part. weight is added to the progress, one share per part.
func (c *Client) UploadMesh(ctx context.Context, path string, weight float64) error {
	partSize := c.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}

	f, err := os.Open(path)
	if err != nil {
		return &ResourceMissingError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	parts := int((info.Size() + int64(partSize) - 1) / int64(partSize))
	step := c.spread(weight, parts)

	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	buf := make([]byte, min(int64(partSize), max(info.Size(), 1)))
	for part := 0; ; part++ {
		n, err := io.ReadFull(f, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("reading %s part %d: %w", path, part, err)
		}
		if err := conn.UploadMeshPart(ctx, c.Target, part, buf[:n]); err != nil {
			return fmt.Errorf("uploading mesh part %d: %w", part, err)
		}
		step()
	}

	c.log().Debug("mesh uploaded",
		zap.String("target", c.Target.Key()),
		zap.Int("parts", parts),
		zap.Int64("bytes", info.Size()))
	return nil
}

// UploadJSON sends every artifact of set and deletes each local file once
// the store confirmed it. A missing file stops the task.
func (c *Client) UploadJSON(ctx context.Context, set *artifact.Set, weight float64) error {
	step := c.spread(weight, set.Len())

	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, a := range set.Items {
		data, err := os.ReadFile(a.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return &ResourceMissingError{Path: a.Path, Err: err}
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", a.Path, err)
		}

		if err := conn.UploadJSONChunk(ctx, c.Target, a.Code, a.Chunk, data); err != nil {
			return fmt.Errorf("uploading chunk %d-%d: %w", a.Code, a.Chunk, err)
		}
		if err := os.Remove(a.Path); err != nil {
			c.log().Warn("could not remove uploaded chunk", zap.String("path", a.Path), zap.Error(err))
		}
		step()
	}

	c.log().Debug("chunks uploaded",
		zap.String("target", c.Target.Key()),
		zap.Int("lod", set.Lod),
		zap.Int("chunks", set.Len()))
	return nil
}

// MaterialTexture is the diffuse texture of one material. Path is empty for
// untextured materials.
type MaterialTexture struct {
	Index    int
	Material string
	Path     string
}

// UploadTextures resizes and sends the texture of every material for lod.
// Materials without a texture are skipped but still count towards progress.
func (c *Client) UploadTextures(ctx context.Context, lod int, materials []MaterialTexture, weight float64) error {
	step := c.spread(weight, len(materials))

	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, m := range materials {
		if m.Path == "" {
			c.log().Debug("material has no texture", zap.String("material", m.Material), zap.Int("lod", lod))
			step()
			continue
		}
		if _, err := os.Stat(m.Path); err != nil {
			return &ResourceMissingError{Path: m.Path, Err: err}
		}

		tex, err := texture.Prepare(m.Path, c.TempDir, lod, c.MaxResolution)
		if err != nil {
			return fmt.Errorf("preparing texture for %s: %w", m.Material, err)
		}

		code := artifact.LodCode(m.Index, lod)
		err = conn.UploadTexture(ctx, c.Target, code, store.Texture{Name: tex.Name, MIME: tex.MIME, Data: tex.Data})
		if rmErr := tex.Remove(); rmErr != nil {
			c.log().Warn("could not remove resized texture", zap.String("path", tex.Path), zap.Error(rmErr))
		}
		if err != nil {
			return fmt.Errorf("uploading texture %s for LOD code %d: %w", tex.Name, code, err)
		}

		c.log().Debug("texture uploaded",
			zap.String("material", m.Material),
			zap.Int("lod", lod),
			zap.Int("width", tex.Width),
			zap.Int("height", tex.Height),
			zap.String("mime", tex.MIME))
		step()
	}
	return nil
}
