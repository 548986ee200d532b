package imageio

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/soypat/engrave"
	"github.com/stretchr/testify/require"
)

func testGrid(t *testing.T) *engrave.Grid {
	t.Helper()
	g, err := engrave.NewGrid(3, 2, []byte{
		0, 0, 0, 10, 20, 30, 255, 128, 1,
		7, 7, 7, 200, 100, 50, 255, 255, 255,
	})
	require.NoError(t, err)
	return g
}

func TestEncodeDecodeLossless(t *testing.T) {
	t.Parallel()
	for _, format := range []Format{PNG, BMP, TIFF} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, testGrid(t), format))
		got, err := Decode(&buf)
		require.NoError(t, err, format)
		require.True(t, got.Equal(testGrid(t)), "%s round trip changed pixels", format)
	}
}

func TestEncodeJPEGKeepsSize(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testGrid(t), JPEG))
	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, got.Width())
	require.Equal(t, 2, got.Height())
}

func TestFromImageDropsAlpha(t *testing.T) {
	t.Parallel()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	g := FromImage(img)
	r, gr, b := g.Pixel(0, 0)
	require.Equal(t, [3]uint8{10, 20, 30}, [3]uint8{r, gr, b})
	r, gr, b = g.Pixel(0, 1)
	require.Equal(t, [3]uint8{200, 100, 50}, [3]uint8{r, gr, b})
}

func TestFromImagePromotesGrayAndPalette(t *testing.T) {
	t.Parallel()
	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.SetGray(0, 0, color.Gray{Y: 77})
	r, g, b := FromImage(gray).Pixel(0, 0)
	require.Equal(t, [3]uint8{77, 77, 77}, [3]uint8{r, g, b})

	pal := image.NewPaletted(image.Rect(0, 0, 2, 1), color.Palette{
		color.RGBA{R: 1, G: 2, B: 3, A: 255},
		color.RGBA{R: 250, G: 251, B: 252, A: 255},
	})
	pal.SetColorIndex(1, 0, 1)
	grid := FromImage(pal)
	r, g, b = grid.Pixel(0, 1)
	require.Equal(t, [3]uint8{250, 251, 252}, [3]uint8{r, g, b})
	r, g, b = grid.Pixel(0, 0)
	require.Equal(t, [3]uint8{1, 2, 3}, [3]uint8{r, g, b})
}

func TestFromImageOffsetBounds(t *testing.T) {
	t.Parallel()
	img := image.NewRGBA(image.Rect(5, 5, 7, 6))
	img.Set(6, 5, color.RGBA{R: 9, G: 8, B: 7, A: 255})
	g := FromImage(img)
	require.Equal(t, 2, g.Width())
	r, gr, b := g.Pixel(0, 1)
	require.Equal(t, [3]uint8{9, 8, 7}, [3]uint8{r, gr, b})
}

func TestSaveOpen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"out.png", "out.bmp", "out.tif"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, testGrid(t)))
		got, err := Open(path)
		require.NoError(t, err)
		require.True(t, got.Equal(testGrid(t)), name)
	}
	err := Save(filepath.Join(dir, "out.xyz"), testGrid(t))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Open(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	t.Parallel()
	_, err := Decode(bytes.NewReader([]byte("definitely not an image")))
	require.ErrorIs(t, err, image.ErrFormat)
}

func TestToImageOpaque(t *testing.T) {
	t.Parallel()
	img := ToImage(testGrid(t))
	require.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	require.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, img.NRGBAAt(1, 1))
}
