package engrave

import (
	"bytes"
	"fmt"
	"io"
)

const bytesPerPixel = 3

// Grid is a dense row-major RGB888 pixel grid. It owns its backing buffer;
// constructors copy their input and filters always allocate a new Grid for output.
//
// Grid implements [ImageBuffered].
type Grid struct {
	width, height int
	pix           []byte
}

var _ ImageBuffered = (*Grid)(nil)

// NewGrid returns a grid holding a copy of rgb, which must contain exactly
// width*height RGB triples.
func NewGrid(width, height int, rgb []byte) (*Grid, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("negative grid dimensions %dx%d", width, height)
	}
	if want := width * height * bytesPerPixel; len(rgb) != want {
		return nil, fmt.Errorf("grid %dx%d needs %d bytes, got %d", width, height, want, len(rgb))
	}
	pix := make([]byte, len(rgb))
	copy(pix, rgb)
	return &Grid{width: width, height: height, pix: pix}, nil
}

// NewGridZeroed returns a black grid. It panics on negative dimensions.
func NewGridZeroed(width, height int) *Grid {
	if width < 0 || height < 0 {
		panic("engrave: negative grid dimensions")
	}
	return &Grid{width: width, height: height, pix: make([]byte, width*height*bytesPerPixel)}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// Dims implements [Image].
func (g *Grid) Dims() Dims {
	return Dims{
		Width:  g.width,
		Height: g.height,
		Stride: g.width * bytesPerPixel,
		Shape:  ShapeRGB888,
	}
}

// Buffer implements [ImageBuffered]. Writes to the returned slice modify the grid.
func (g *Grid) Buffer() []byte { return g.pix }

// ReadAt implements [io.ReaderAt] over the raw RGB buffer.
func (g *Grid) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(g.pix)) {
		return 0, io.EOF
	}
	n := copy(p, g.pix[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Pixel returns the channels of the pixel at the given row and column.
func (g *Grid) Pixel(row, col int) (r, gr, b uint8) {
	i := g.offset(row, col)
	return g.pix[i], g.pix[i+1], g.pix[i+2]
}

// SetPixel sets the channels of the pixel at the given row and column.
func (g *Grid) SetPixel(row, col int, r, gr, b uint8) {
	i := g.offset(row, col)
	g.pix[i], g.pix[i+1], g.pix[i+2] = r, gr, b
}

func (g *Grid) offset(row, col int) int {
	if uint(row) >= uint(g.height) || uint(col) >= uint(g.width) {
		panic(fmt.Sprintf("engrave: pixel (%d,%d) out of %dx%d grid", row, col, g.width, g.height))
	}
	return (row*g.width + col) * bytesPerPixel
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	pix := make([]byte, len(g.pix))
	copy(pix, g.pix)
	return &Grid{width: g.width, height: g.height, pix: pix}
}

// Equal reports whether both grids have the same dimensions and pixels.
func (g *Grid) Equal(other *Grid) bool {
	return g.width == other.width && g.height == other.height && bytes.Equal(g.pix, other.pix)
}
