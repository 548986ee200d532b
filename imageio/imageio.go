// Package imageio converts between encoded image files and RGB grids.
//
// Decoding accepts every format registered with the standard image package
// plus BMP, TIFF and WebP. Decoded pixels are converted to non-premultiplied
// RGB: alpha is discarded, palettes are expanded and gray is promoted.
package imageio

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/soypat/engrave"
	_ "golang.org/x/image/webp" // Registers WebP decoding.
)

// Format is an output encoding.
type Format = imaging.Format

const (
	PNG  = imaging.PNG
	JPEG = imaging.JPEG
	GIF  = imaging.GIF
	BMP  = imaging.BMP
	TIFF = imaging.TIFF
)

// ErrUnsupportedFormat is returned for file names without a known image extension.
var ErrUnsupportedFormat = imaging.ErrUnsupportedFormat

// FormatFromFilename picks an output format from the extension of name.
func FormatFromFilename(name string) (Format, error) {
	return imaging.FormatFromFilename(name)
}

// Decode reads an image and converts it to an RGB grid. JPEG EXIF
// orientation is applied.
func Decode(r io.Reader) (*engrave.Grid, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return FromImage(img), nil
}

// Encode writes g to w in the given format.
func Encode(w io.Writer, g *engrave.Grid, format Format, opts ...imaging.EncodeOption) error {
	if err := imaging.Encode(w, ToImage(g), format, opts...); err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}

// Open decodes the image file at path.
func Open(path string) (*engrave.Grid, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return FromImage(img), nil
}

// Save encodes g to path. The format is chosen from the file extension.
func Save(path string, g *engrave.Grid, opts ...imaging.EncodeOption) error {
	if _, err := FormatFromFilename(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	if err := imaging.Save(ToImage(g), path, opts...); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// FromImage converts any image to an RGB grid, dropping alpha.
func FromImage(img image.Image) *engrave.Grid {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	g := engrave.NewGridZeroed(w, h)
	dst := g.Buffer()
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*w]
		row := dst[3*w*y : 3*w*(y+1)]
		for x := 0; x < w; x++ {
			copy(row[3*x:3*x+3], src[4*x:4*x+3])
		}
	}
	return g
}

// ToImage converts g to an opaque NRGBA image.
func ToImage(g *engrave.Grid) *image.NRGBA {
	w, h := g.Width(), g.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	src := g.Buffer()
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		img.Pix[j] = src[i]
		img.Pix[j+1] = src[i+1]
		img.Pix[j+2] = src[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
