// Package snapshot writes rendered frames to image files.
package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an image file encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatBMP
	FormatTIFF
)

var (
	// ErrUnknownFormat is returned for a file extension with no encoder.
	ErrUnknownFormat = errors.New("snapshot: unknown image format")

	// ErrNotReadable is returned when a view cannot be read back on the CPU.
	ErrNotReadable = errors.New("snapshot: view is not readable")
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the encoding from the file extension.
//
// Parameters:
//   - path: a file name ending in .png, .bmp, .tif or .tiff
//
// Returns:
//   - Format: the encoding
//   - error: ErrUnknownFormat for any other extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// Write encodes img into path, choosing the encoding from the extension.
//
// Parameters:
//   - path: the destination file
//   - img: the image to write
//
// Returns:
//   - error: ErrUnknownFormat, or a create, encode or flush error
func Write(path string, img image.Image) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := Encode(bw, img, f); err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", f, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return file.Close()
}

// Capture converts a CPU-readable view, such as the software backend's presented output,
// into an image.
//
// Parameters:
//   - view: the view to read
//
// Returns:
//   - image.Image: the 8-bit image
//   - error: ErrNotReadable if the view has no CPU copy
func Capture(view backend.TextureView) (image.Image, error) {
	if view == nil {
		return nil, fmt.Errorf("%w: nil view", ErrNotReadable)
	}
	rb, ok := view.(backend.Readback)
	if !ok {
		return nil, ErrNotReadable
	}
	return rb.Image(), nil
}
