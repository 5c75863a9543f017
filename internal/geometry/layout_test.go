package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectFallbackEmptyLayout(t *testing.T) {
	out := InjectFallback(Layout{}, nil, "MUGGY")

	require.Len(t, out.Nongraphic, 2)
	require.Len(t, out.Graphic, 1)
	require.Len(t, out.Subject, 1)

	for _, e := range append(out.Nongraphic, out.Graphic...) {
		assertUnitBox(t, e.BBox)
		assert.Equal(t, e.BBox, ClampBox(e.BBox))
	}

	top, bottom := out.Nongraphic[0].BBox, out.Nongraphic[1].BBox
	assert.Equal(t, "headline", out.Nongraphic[0].Type)
	assert.InDelta(t, 0.04, top.Y(), eps)
	assert.InDelta(t, 0.84, bottom.Y(), eps)
	assert.InDelta(t, 0.92, top.W(), eps)
	assert.InDelta(t, 0.12, bottom.H(), eps)

	logo := out.Graphic[0]
	assert.Equal(t, "logo", logo.Type)
	assert.Equal(t, "MUGGY", logo.Content)
	assert.InDelta(t, 0.71, logo.BBox.X(), eps)
	assert.InDelta(t, 0.04, logo.BBox.Y(), eps)
	assert.InDelta(t, 0.25, logo.BBox.W(), eps)
	assert.InDelta(t, 0.10, logo.BBox.H(), eps)

	assert.Equal(t, DefaultSubjectCenter, out.Subject[0].Center)
	assert.Equal(t, DefaultSubjectRatio, out.Subject[0].Ratio)
}

func TestInjectFallbackKeepsExisting(t *testing.T) {
	in := Layout{
		Subject:    []SubjectElement{{Type: "product", Center: Point{0.4, 0.6}, Ratio: Point{0.5, 0.5}}},
		Nongraphic: []Element{{Type: "table", BBox: Box{0.1, 0.7, 0.8, 0.2}}},
	}
	out := InjectFallback(in, nil, "")

	assert.Equal(t, in.Subject, out.Subject)
	assert.Equal(t, in.Nongraphic, out.Nongraphic)
	require.Len(t, out.Graphic, 1)
	assert.Equal(t, "logo", out.Graphic[0].Type)

	// The input must not be modified.
	assert.Empty(t, in.Graphic)
}

func TestInjectFallbackUsesGivenSubject(t *testing.T) {
	subject := &SubjectElement{Type: "mug", Center: Point{0.5, 0.6}, Ratio: Point{0.4, 0.4}}
	out := InjectFallback(Layout{}, subject, "")
	require.Len(t, out.Subject, 1)
	assert.Equal(t, "mug", out.Subject[0].Type)
	assert.Equal(t, Point{0.5, 0.6}, out.Subject[0].Center)
}

func TestNormalizeLayout(t *testing.T) {
	size := Size{Width: 800, Height: 1200}
	in := Layout{
		Subject: []SubjectElement{{Center: Point{400, 600}, Ratio: Point{400, 600}}},
		Nongraphic: []Element{
			{Type: "headline", BBox: Box{0.9, 0.1, 0.5, 0.1}},
		},
		Graphic: []Element{
			{Type: "logo", Content: "M", BBox: Box{80, 120, 160, 120}},
		},
	}
	out := Normalize(in, size)

	assert.Equal(t, Point{0.5, 0.5}, out.Subject[0].Center)
	assert.Equal(t, Point{0.5, 0.5}, out.Subject[0].Ratio)
	assert.Equal(t, Box{0.9, 0.1, 0.1, 0.1}, out.Nongraphic[0].BBox)
	assert.Equal(t, Box{0.1, 0.1, 0.2, 0.1}, out.Graphic[0].BBox)
	assert.Equal(t, "M", out.Graphic[0].Content)

	// Original untouched.
	assert.Equal(t, Box{80, 120, 160, 120}, in.Graphic[0].BBox)
}

func TestSubjectElementUnmarshal(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantCenter Point
		wantRatio  Point
	}{
		{"center ratio", `{"center": [0.5, 0.4], "ratio": [0.3, 0.2]}`, Point{0.5, 0.4}, Point{0.3, 0.2}},
		{"aspect ratio alias", `{"center": [0.5, 0.4], "aspect_ratio": [0.3, 0.2]}`, Point{0.5, 0.4}, Point{0.3, 0.2}},
		{"bbox only", `{"type": "product", "bbox": [0.2, 0.2, 0.6, 0.4]}`, Point{0.5, 0.4}, Point{0.6, 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s SubjectElement
			require.NoError(t, json.Unmarshal([]byte(tt.in), &s))
			assert.InDelta(t, tt.wantCenter[0], s.Center[0], eps)
			assert.InDelta(t, tt.wantCenter[1], s.Center[1], eps)
			assert.InDelta(t, tt.wantRatio[0], s.Ratio[0], eps)
			assert.InDelta(t, tt.wantRatio[1], s.Ratio[1], eps)
		})
	}
}
