// Package images - decoding of input photographs across supported formats.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ImageFormat identifies a supported raster format.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
)

// DetectFormat sniffs the format from the leading bytes of an encoded image.
//
// Returns:
//   - ImageFormat: The detected format.
//   - error: An error if the header matches no supported format.
func DetectFormat(b []byte) (ImageFormat, error) {
	switch {
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FormatJPEG, nil
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return FormatPNG, nil
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FormatWebP, nil
	}
	return "", errors.New("unrecognized image format")
}

// Decode decodes an encoded JPEG, PNG or WebP buffer into a raster image.
//
// Arguments:
//   - b: The encoded image bytes.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the buffer is empty, unrecognized, or corrupt.
func Decode(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, errors.New("empty image buffer")
	}

	format, err := DetectFormat(b)
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(b))
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(b))
	case FormatWebP:
		img, err = webp.Decode(bytes.NewReader(b))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s image", format)
	}
	return img, nil
}

// Load reads and decodes an image file from disk.
//
// Arguments:
//   - path: Path to a JPEG, PNG or WebP file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be read or decoded.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %s", path)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image %s", path)
	}
	return Decode(b)
}
