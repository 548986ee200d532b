// Package engrave turns raster images into engraving-like renderings by
// replacing every pixel with the scaled difference between a weighted
// average of its 3x3 neighborhood and its own value.
//
// The root package holds the low-level image abstraction shared by the
// [github.com/soypat/engrave/filters] package and the I/O boundary in
// [github.com/soypat/engrave/imageio]: raw row-major byte buffers described by [Dims].
package engrave

import (
	"errors"
	"fmt"
	"image"
	"io"
)

// Image is a low-level, whole-buffer image access abstraction of raw memory.
// It does not do bounds abstraction. As made implicit by Dims signature, row spacing must be homogenous in images.
type Image interface {
	// Dims returns information on in-memory image structure.
	// Row spacing must be homogenous in entire image separated by stride bytes.
	Dims() Dims
	// ReadAt reads from the image buffer of pixels, which may be in-memory or elsewhere (disk, network).
	//
	// Users should always try casting [Image] to [ImageBuffered]
	// to see if they can work with the image in-memory which is more efficient.
	io.ReaderAt
}

// ImageBuffered is an [Image] whose pixels live in memory.
type ImageBuffered interface {
	Image
	// Buffer returns the raw underlying buffer for images stored in memory.
	// Buffer returns the entire buffer or nil to signal buffer is currently not in memory.
	Buffer() []byte
}

// Filter is a low-level filter implementation over raw image buffers.
type Filter interface {
	// ShapeIO returns expected output and input [Shape] of the filter.
	// output shape MUST match Process [Dims.Shape] output.
	ShapeIO() (output, input Shape)
	// Process processes an input image and writes the result to
	// destination buffer and returns the dimensions of the resulting image.
	//
	// Neighborhood filters read pixels around the one being written so dst
	// must not alias the source buffer. Use [ValidateProcessArgs] to validate arguments.
	Process(dst []byte, src Image, roi *image.Rectangle) (Dims, error)
	// Controls returns the actual controls of the filter.
	// Controls should remain valid even after calling [Control.ChangeValue]
	// and their [Control.ActualValue] return the updated value.
	Controls() []Control
}

// Shape describes the in-memory layout of a single pixel.
type Shape int

const (
	// Negative values can encode application defined shapes.

	shapeUndefined Shape = iota // undefined
	ShapeRGB888                 // rgb888
)

func (sh Shape) String() string {
	switch sh {
	case ShapeRGB888:
		return "rgb888"
	default:
		return "undefined"
	}
}

func (sh Shape) BitsPerPixel() (bits int) {
	switch sh {
	default:
		bits = -1
	case ShapeRGB888:
		bits = 24
	}
	return bits
}

// Errors returned by [Dims.Validate], [ImageRow] and [ValidateProcessArgs].
var (
	ErrEmptyImage  = errors.New("empty image")
	ErrBadShape    = errors.New("bad pixel shape")
	ErrShortStride = errors.New("stride smaller than pixel row size")
	ErrRowRange    = errors.New("row out of bounds")
	ErrBadROI      = errors.New("invalid region of interest")
	ErrNilDst      = errors.New("nil destination buffer")
	ErrDstAliasing = errors.New("destination buffer aliases source buffer")
	ErrDstTooSmall = errors.New("destination buffer too small for output")
)

// Dims describes the memory layout of an image.
type Dims struct {
	Width  int
	Height int
	Stride int // Bytes between the start of consecutive rows.
	Shape  Shape
}

// Validate checks that d describes a non-empty image whose rows fit in Stride.
func (d Dims) Validate() error {
	switch {
	case d.Width <= 0 || d.Height <= 0:
		return ErrEmptyImage
	case d.Shape.BitsPerPixel() < 1:
		return ErrBadShape
	case d.SizeRow() > d.Stride:
		return ErrShortStride
	}
	return nil
}

func (d Dims) NumPixels() int64 { return int64(d.Width) * int64(d.Height) }

// Size returns the number of bytes spanned by the image: every row but the
// last occupies Stride bytes, the last only its pixels.
func (d Dims) Size() int64 {
	if d.Width == 0 || d.Height == 0 {
		return 0
	}
	return int64(d.Height-1)*int64(d.Stride) + int64(d.SizeRow())
}

// SizeRow returns the number of bytes holding the pixels of one row.
func (d Dims) SizeRow() int {
	return (d.Width*d.Shape.BitsPerPixel() + 7) / 8
}

// ImageRow returns the pixels of a row of img. Buffered images return a
// subslice of their buffer; other images are read into dst, which must hold
// at least [Dims.SizeRow] bytes either way.
func ImageRow(dst []byte, img Image, row int) ([]byte, error) {
	d := img.Dims()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	n := d.SizeRow()
	if len(dst) < n {
		return nil, io.ErrShortBuffer
	}
	if row < 0 || row >= d.Height {
		return nil, fmt.Errorf("%w: %d of %d", ErrRowRange, row, d.Height)
	}
	off := int64(row) * int64(d.Stride)
	if buffered, ok := img.(ImageBuffered); ok {
		if buf := buffered.Buffer(); buf != nil {
			return buf[off : off+int64(n)], nil
		}
	}
	got, err := img.ReadAt(dst[:n], off)
	if got == n {
		return dst[:n], nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// ValidateProcessArgs checks the arguments of [Filter.Process] and returns
// the source dimensions. It rejects:
//   - a source failing [Dims.Validate];
//   - a ROI that is negative, empty or outside the source;
//   - a nil dst or one sharing its first byte with a buffered source;
//   - a dst smaller than dstDims.Stride times the output height, where the
//     output height is the ROI height if given. A zero stride skips this check.
func ValidateProcessArgs(dst []byte, dstDims Dims, src Image, roi *image.Rectangle) (srcDims Dims, err error) {
	srcDims = src.Dims()
	if err = srcDims.Validate(); err != nil {
		return srcDims, err
	}
	height := dstDims.Height
	if roi != nil {
		if err = validateROI(*roi, srcDims); err != nil {
			return srcDims, err
		}
		height = roi.Dy()
	}
	if dst == nil {
		return srcDims, ErrNilDst
	}
	if buffered, ok := src.(ImageBuffered); ok {
		if buf := buffered.Buffer(); len(buf) > 0 && len(dst) > 0 && &buf[0] == &dst[0] {
			return srcDims, ErrDstAliasing
		}
	}
	if need := int64(dstDims.Stride) * int64(height); int64(len(dst)) < need {
		return srcDims, fmt.Errorf("%w: need %d bytes, got %d", ErrDstTooSmall, need, len(dst))
	}
	return srcDims, nil
}

func validateROI(roi image.Rectangle, d Dims) error {
	switch {
	case roi.Min.X < 0 || roi.Min.Y < 0 || roi.Max.X < 0 || roi.Max.Y < 0:
		return fmt.Errorf("%w: negative %v", ErrBadROI, roi)
	case roi.Max.X > d.Width || roi.Max.Y > d.Height:
		return fmt.Errorf("%w: %v exceeds %dx%d image", ErrBadROI, roi, d.Width, d.Height)
	case roi.Empty():
		return fmt.Errorf("%w: empty %v", ErrBadROI, roi)
	}
	return nil
}
