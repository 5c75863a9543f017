// Package imageinput reads the product photo handed to the pipeline.
package imageinput

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"strings"

	_ "github.com/gen2brain/webp"

	"github.com/mtzanidakis/scenegen/internal/llm"
)

// MaxSize bounds the accepted file size.
const MaxSize = 20 << 20

// Load reads the image at path once and returns its bytes, MIME type and
// pixel dimensions.
func Load(path string) (llm.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return llm.Image{}, fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		return llm.Image{}, fmt.Errorf("image path %s is a directory", path)
	}
	if info.Size() > MaxSize {
		return llm.Image{}, fmt.Errorf("image %s is %d bytes, limit is %d", path, info.Size(), MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Image{}, fmt.Errorf("read image: %w", err)
	}
	return Decode(data)
}

// Decode inspects encoded image bytes.
func Decode(data []byte) (llm.Image, error) {
	if len(data) == 0 {
		return llm.Image{}, errors.New("image is empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return llm.Image{}, fmt.Errorf("decode image header: %w", err)
	}

	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/" + format
	}

	return llm.Image{
		MIMEType: mime,
		Data:     data,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
