// Package texture prepares material textures for upload: it decodes the
// source image, scales it down for the requested LOD and re-encodes it.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxResolution is the longest side of a LOD 0 texture.
const MaxResolution = 4096

// TargetSize returns the longest side of the texture for lod: the source's
// longest side capped at maxRes, halved once per LOD, never below 1.
func TargetSize(srcLongest, maxRes, lod int) int {
	if maxRes <= 0 {
		maxRes = MaxResolution
	}
	return max(1, min(maxRes, srcLongest)>>lod)
}

// Fit scales w x h so that the longest side equals longest, keeping the
// aspect ratio.
func Fit(w, h, longest int) (int, int) {
	if w >= h {
		return longest, max(1, (h*longest+w/2)/w)
	}
	return max(1, (w*longest+h/2)/h), longest
}

// Decode reads an image file. TGA is detected by extension since it has no
// signature.
func Decode(path string) (image.Image, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		img, err := DecodeTGA(data)
		return img, "tga", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return img, format, nil
}

// Resize scales img so its longest side is longest. Images already that size
// are returned unchanged.
func Resize(img image.Image, longest int) image.Image {
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), longest)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return transform.Resize(img, w, h, transform.Linear)
}

// MIME sniffs the media type of encoded image data.
func MIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}

// Prepared is a texture ready for upload.
type Prepared struct {
	Path   string // resized file in the temp directory
	Name   string // name to store the texture under
	MIME   string
	Data   []byte
	Width  int
	Height int
}

// Remove deletes the resized file.
func (p *Prepared) Remove() error {
	return os.Remove(p.Path)
}

// Prepare resizes src for lod and writes the result to tempDir as
// <name>-lod<lod>-<size>.<ext>. JPEG stays JPEG; every other format becomes PNG.
func Prepare(src, tempDir string, lod, maxRes int) (*Prepared, error) {
	img, format, err := Decode(src)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	size := TargetSize(max(b.Dx(), b.Dy()), maxRes, lod)
	img = Resize(img, size)

	var buf bytes.Buffer
	ext := ".png"
	if format == "jpeg" {
		ext = ".jpg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", filepath.Base(src), err)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	p := &Prepared{
		Path:   filepath.Join(tempDir, fmt.Sprintf("%s-lod%d-%d%s", base, lod, size, ext)),
		Name:   base + ext,
		MIME:   MIME(buf.Bytes()),
		Data:   buf.Bytes(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}

	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(p.Path, p.Data, 0644); err != nil {
		return nil, fmt.Errorf("writing resized texture: %w", err)
	}
	return p, nil
}
