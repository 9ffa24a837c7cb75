package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types handled by DecodeTGA.
const (
	tgaTrueColor    = 2
	tgaTrueColorRLE = 10
)

const tgaHeaderSize = 18

// ErrTGA is returned for TGA data DecodeTGA cannot read.
var ErrTGA = errors.New("invalid or unsupported TGA")

type tgaHeader struct {
	idLength    int
	colorMap    byte
	imageType   byte
	width       int
	height      int
	bpp         int
	topToBottom bool
}

func readTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < tgaHeaderSize {
		return tgaHeader{}, fmt.Errorf("%w: %d byte header", ErrTGA, len(data))
	}
	h := tgaHeader{
		idLength:    int(data[0]),
		colorMap:    data[1],
		imageType:   data[2],
		width:       int(data[12]) | int(data[13])<<8,
		height:      int(data[14]) | int(data[15])<<8,
		bpp:         int(data[16]),
		topToBottom: data[17]&0x20 != 0,
	}
	switch {
	case h.colorMap != 0:
		return h, fmt.Errorf("%w: color-mapped", ErrTGA)
	case h.imageType != tgaTrueColor && h.imageType != tgaTrueColorRLE:
		return h, fmt.Errorf("%w: image type %d", ErrTGA, h.imageType)
	case h.bpp != 24 && h.bpp != 32:
		return h, fmt.Errorf("%w: %d bits per pixel", ErrTGA, h.bpp)
	case h.width == 0 || h.height == 0:
		return h, fmt.Errorf("%w: empty image", ErrTGA)
	}
	return h, nil
}

// DecodeTGA decodes an uncompressed or RLE true-color TGA.
func DecodeTGA(data []byte) (image.Image, error) {
	h, err := readTGAHeader(data)
	if err != nil {
		return nil, err
	}
	offset := tgaHeaderSize + h.idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: truncated id field", ErrTGA)
	}

	w := tgaWriter{
		img: image.NewRGBA(image.Rect(0, 0, h.width, h.height)),
		h:   h,
		bpp: h.bpp / 8,
	}
	src := data[offset:]

	if h.imageType == tgaTrueColor {
		if len(src) < h.width*h.height*w.bpp {
			return nil, fmt.Errorf("%w: truncated pixel data", ErrTGA)
		}
		for i := 0; i < h.width*h.height; i++ {
			w.put(src[i*w.bpp:])
		}
		return w.img, nil
	}

	for w.n < h.width*h.height && len(src) > 0 {
		packet := src[0]
		src = src[1:]
		count := int(packet&0x7f) + 1

		if packet&0x80 != 0 {
			if len(src) < w.bpp {
				break
			}
			for ; count > 0 && w.n < h.width*h.height; count-- {
				w.put(src)
			}
			src = src[w.bpp:]
			continue
		}
		for ; count > 0 && w.n < h.width*h.height && len(src) >= w.bpp; count-- {
			w.put(src)
			src = src[w.bpp:]
		}
	}
	return w.img, nil
}

// tgaWriter stores BGR(A) pixels in file order.
type tgaWriter struct {
	img *image.RGBA
	h   tgaHeader
	bpp int
	n   int
}

func (w *tgaWriter) put(px []byte) {
	x, y := w.n%w.h.width, w.n/w.h.width
	if !w.h.topToBottom {
		y = w.h.height - 1 - y
	}
	a := uint8(255)
	if w.bpp == 4 {
		a = px[3]
	}
	w.img.SetRGBA(x, y, color.RGBA{R: px[2], G: px[1], B: px[0], A: a})
	w.n++
}
