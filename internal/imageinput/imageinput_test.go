package imageinput

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, name string, encode func(*bytes.Buffer, image.Image) error) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, encode(&buf, img))

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		encode func(*bytes.Buffer, image.Image) error
		mime   string
	}{
		{
			name: "png",
			file: "mug.png",
			encode: func(b *bytes.Buffer, img image.Image) error {
				return png.Encode(b, img)
			},
			mime: "image/png",
		},
		{
			name: "jpeg",
			file: "mug.jpg",
			encode: func(b *bytes.Buffer, img image.Image) error {
				return jpeg.Encode(b, img, nil)
			},
			mime: "image/jpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Load(writeImage(t, tt.file, tt.encode))
			require.NoError(t, err)

			assert.Equal(t, tt.mime, img.MIMEType)
			assert.Equal(t, 40, img.Width)
			assert.Equal(t, 60, img.Height)
			assert.False(t, img.Empty())
			assert.True(t, strings.HasPrefix(img.DataURI(), "data:"+tt.mime+";base64,"))
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)

	_, err = Load(dir)
	assert.Error(t, err)

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("not an image"), 0o644))
	_, err = Load(text)
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)
}
