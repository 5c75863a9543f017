// Package llm is the boundary to the generative model.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Generator invokes a multimodal model with a system instruction and user
// content and returns the raw response text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Options tune a single generation call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider for a JSON-only answer. Compliance is best
	// effort; callers still scan the text for the object.
	JSONMode bool
}

// Request is one generation call.
type Request struct {
	// Tag names the calling step for logs and test doubles.
	Tag     string
	System  string
	Parts   []Part
	Options Options
}

// Part is either text or an image.
type Part struct {
	Text  string
	Image *Image
}

// TextPart wraps s as a text part.
func TextPart(s string) Part {
	return Part{Text: s}
}

// ImagePart wraps img as an image part.
func ImagePart(img Image) Part {
	return Part{Image: &img}
}

// Image is an encoded product photo.
type Image struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURI returns the image as a data: URI.
func (i Image) DataURI() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, i.Base64())
}

// GenerationFailure wraps any error from the model call, including empty
// responses.
type GenerationFailure struct {
	Model string
	Err   error
}

func (e *GenerationFailure) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %v", e.Model, e.Err)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}
