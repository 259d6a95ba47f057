package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		expected ImageFormat
		wantErr  bool
	}{
		{
			name:     "jpeg magic",
			header:   []byte{0xFF, 0xD8, 0xFF, 0xE0},
			expected: FormatJPEG,
		},
		{
			name:     "png magic",
			header:   []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			expected: FormatPNG,
		},
		{
			name:     "webp riff container",
			header:   append([]byte("RIFF"), 0x10, 0x00, 0x00, 0x00, 'W', 'E', 'B', 'P'),
			expected: FormatWebP,
		},
		{
			name:    "riff without webp fourcc",
			header:  append([]byte("RIFF"), 0x10, 0x00, 0x00, 0x00, 'W', 'A', 'V', 'E'),
			wantErr: true,
		},
		{
			name:    "empty buffer",
			header:  nil,
			wantErr: true,
		},
		{
			name:    "text file",
			header:  []byte("not an image at all"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := DetectFormat(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format)
		})
	}
}

func TestDecodePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 128, A: 255})
		}
	}

	img, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}

func TestDecodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16)), nil))

	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte{0xFF, 0xD8, 0xFF, 0x00, 0x01})
	assert.Error(t, err, "truncated jpeg must fail decoding")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, image.NewRGBA(image.Rect(0, 0, 4, 4))), 0o644))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = Load(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
