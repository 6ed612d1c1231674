package snapshot

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			if (x+y)%2 == 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{B: 200, A: 255})
			}
		}
	}
	return img
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"out.png":    FormatPNG,
		"OUT.BMP":    FormatBMP,
		"a/b/c.tif":  FormatTIFF,
		"frame.tiff": FormatTIFF,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := FormatFromPath("frame.jpg")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := checker()
	decoders := map[string]func(f *os.File) (image.Image, error){
		"frame.png":  func(f *os.File) (image.Image, error) { return png.Decode(f) },
		"frame.bmp":  func(f *os.File) (image.Image, error) { return bmp.Decode(f) },
		"frame.tiff": func(f *os.File) (image.Image, error) { return tiff.Decode(f) },
	}
	for name, decode := range decoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Write(path, src))

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			img, err := decode(f)
			require.NoError(t, err)

			assert.Equal(t, src.Bounds(), img.Bounds())
			for y := range 3 {
				for x := range 4 {
					r, g, b, a := img.At(x, y).RGBA()
					er, eg, eb, ea := src.At(x, y).RGBA()
					assert.Equal(t, [4]uint32{er, eg, eb, ea}, [4]uint32{r, g, b, a}, "pixel %d,%d", x, y)
				}
			}
		})
	}

	assert.ErrorIs(t, Write(filepath.Join(dir, "frame.gif"), src), ErrUnknownFormat)
}

func TestCapture(t *testing.T) {
	_, err := Capture(nil)
	assert.ErrorIs(t, err, ErrNotReadable)

	dev := backend.NewSoftwareBackend(backend.WithWorkers(1))
	require.NoError(t, dev.ConfigureOutput(8, 6))
	_, err = dev.AcquireOutput()
	require.NoError(t, err)
	dev.Present()

	img, err := Capture(dev.Presented())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	require.NoError(t, Write(filepath.Join(t.TempDir(), "out.png"), img))
}
