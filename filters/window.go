package filters

import (
	"errors"
	"image"
	"runtime"
	"time"

	"github.com/soypat/engrave"
	"golang.org/x/sync/errgroup"
)

var errShapeMismatch = errors.New("pixel shape mismatch")

// Window holds the source rows around the output row being computed:
// index 0 is the row above, 1 the row itself and 2 the row below.
// Rows outside the processed region are nil. Every non-nil row holds
// exactly as many pixels as the destination row.
type Window [3][]byte

// WindowFunc computes one destination row from the source rows around it.
type WindowFunc func(dst []byte, win Window)

// WindowFilter applies a 3x3 neighborhood transformation using a callback function.
// It handles the iteration, buffering, ROI and row-band parallelism common to all
// neighborhood filters. The callback is invoked once per output row.
//
// A region of interest behaves as a crop: rows and columns outside it are
// treated like rows and columns outside the image.
type WindowFilter struct {
	In  engrave.Shape
	Out engrave.Shape
	Fn  WindowFunc
	// Workers bounds the number of row bands processed concurrently.
	// Zero or negative uses GOMAXPROCS.
	Workers int
	Ctrls   []engrave.Control // User-defined controls for this filter.
}

// ShapeIO implements [engrave.Filter].
func (f *WindowFilter) ShapeIO() (output, input engrave.Shape) {
	return f.Out, f.In
}

// Controls implements [engrave.Filter].
func (f *WindowFilter) Controls() []engrave.Control {
	return f.Ctrls
}

// region is the part of the source being processed, in pixels.
type region struct {
	x0, y0        int
	width, height int
}

// Process implements [engrave.Filter].
func (f *WindowFilter) Process(dst []byte, src engrave.Image, roi *image.Rectangle) (engrave.Dims, error) {
	if f.Fn == nil {
		return engrave.Dims{}, errNilWindowFunc
	}
	outShape, inShape := f.ShapeIO()
	srcDims := src.Dims()
	if srcDims.Shape != inShape {
		return engrave.Dims{}, errShapeMismatch
	}
	inBytesPerPixel := (inShape.BitsPerPixel() + 7) / 8
	outBytesPerPixel := (outShape.BitsPerPixel() + 7) / 8
	if inBytesPerPixel != outBytesPerPixel {
		return engrave.Dims{}, errShapeMismatch
	}

	reg := region{width: srcDims.Width, height: srcDims.Height}
	if roi != nil {
		reg = region{x0: roi.Min.X, y0: roi.Min.Y, width: roi.Dx(), height: roi.Dy()}
	}
	dstDims := engrave.Dims{
		Width:  reg.width,
		Height: reg.height,
		Stride: reg.width * outBytesPerPixel,
		Shape:  outShape,
	}
	if _, err := engrave.ValidateProcessArgs(dst, dstDims, src, roi); err != nil {
		return engrave.Dims{}, err
	}

	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, reg.height)
	band := (reg.height + workers - 1) / workers

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(workers)
	for y0 := 0; y0 < reg.height; y0 += band {
		y1 := min(y0+band, reg.height)
		g.Go(func() error {
			return f.processBand(dst, dstDims.Stride, src, reg, inBytesPerPixel, y0, y1)
		})
	}
	if err := g.Wait(); err != nil {
		return engrave.Dims{}, err
	}
	engrave.Logger().Debug("window pass",
		"width", reg.width, "height", reg.height,
		"workers", workers, "band", band, "elapsed", time.Since(start))
	return dstDims, nil
}

// processBand writes destination rows [y0, y1) of the region.
func (f *WindowFilter) processBand(dst []byte, dstStride int, src engrave.Image, reg region, bpp, y0, y1 int) error {
	rows := newRowReader(src, reg, bpp)
	var win Window
	for i := range win {
		// Wrapping arithmetic rejects the row above row 0 as out of range.
		if y := uint(y0) + uint(i) - 1; y < uint(reg.height) {
			row, err := rows.read(int(y))
			if err != nil {
				return err
			}
			win[i] = row
		}
	}
	for y := y0; y < y1; y++ {
		off := y * dstStride
		f.Fn(dst[off:off+dstStride], win)
		win[0], win[1], win[2] = win[1], win[2], nil
		if next := y + 2; next < reg.height && y+1 < y1 {
			row, err := rows.read(next)
			if err != nil {
				return err
			}
			win[2] = row
		}
	}
	return nil
}

// rowReader returns region rows from a buffered image without copying or
// reads them into a ring of three row buffers, enough to hold one window.
type rowReader struct {
	src    engrave.Image
	buf    []byte
	stride int
	reg    region
	bpp    int
	ring   [3][]byte
}

func newRowReader(src engrave.Image, reg region, bpp int) *rowReader {
	r := &rowReader{src: src, stride: src.Dims().Stride, reg: reg, bpp: bpp}
	if buffered, ok := src.(engrave.ImageBuffered); ok {
		r.buf = buffered.Buffer()
	}
	if r.buf == nil {
		rowSize := src.Dims().SizeRow()
		for i := range r.ring {
			r.ring[i] = make([]byte, rowSize)
		}
	}
	return r
}

// read returns the pixels of region row y.
func (r *rowReader) read(y int) ([]byte, error) {
	x0, n := r.reg.x0*r.bpp, r.reg.width*r.bpp
	if r.buf != nil {
		off := (r.reg.y0+y)*r.stride + x0
		return r.buf[off : off+n], nil
	}
	row, err := engrave.ImageRow(r.ring[y%3], r.src, r.reg.y0+y)
	if err != nil {
		return nil, err
	}
	return row[x0 : x0+n], nil
}

var errNilWindowFunc = errorString("nil WindowFunc")

type errorString string

func (e errorString) Error() string { return string(e) }
