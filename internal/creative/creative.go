// Package creative holds the documents produced while building an
// advertising creative: the per-agent fragments and the final scenes.
package creative

import (
	"strings"

	"github.com/mtzanidakis/scenegen/internal/geometry"
)

// Features is the product analysis.
type Features struct {
	ProductFeatures string `json:"product_features"`
	UseCase         string `json:"use_case"`
	ProductMask     string `json:"product_mask"`
}

func (f Features) Empty() bool {
	return blank(f.ProductFeatures, f.UseCase, f.ProductMask)
}

// Trends is the marketing trend insight for the product category.
type Trends struct {
	Category      string   `json:"category"`
	PopularBrands []string `json:"popular_brands"`
	Slogans       []string `json:"slogans"`
	Tone          string   `json:"tone"`
}

func (t Trends) Empty() bool {
	return blank(t.Category, t.Tone) && len(t.PopularBrands) == 0 && len(t.Slogans) == 0
}

// Copy is the marketing copy.
type Copy struct {
	Logo     string `json:"logo"`
	Tagline  string `json:"tagline"`
	Underlay string `json:"underlay"`
}

func (c Copy) Empty() bool {
	return blank(c.Logo, c.Tagline, c.Underlay)
}

// Background describes the ideal backdrop for the product.
type Background struct {
	Caption string `json:"background_caption"`
	Prompt  string `json:"background_prompt"`
}

func (b Background) Empty() bool {
	return blank(b.Caption, b.Prompt)
}

// GraphicElement is one piece of on-canvas copy or branding.
type GraphicElement struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// GraphicElements is the ordered element list.
type GraphicElements []GraphicElement

func (g GraphicElements) Empty() bool {
	return len(g) == 0
}

// ElementsFromCopy derives the tagline, underlay and logo elements directly
// from the copy, skipping blank fields.
func ElementsFromCopy(c Copy) GraphicElements {
	var out GraphicElements
	for _, e := range []GraphicElement{
		{Type: "tagline", Content: c.Tagline},
		{Type: "underlay", Content: c.Underlay},
		{Type: "logo", Content: c.Logo},
	} {
		if strings.TrimSpace(e.Content) != "" {
			out = append(out, e)
		}
	}
	return out
}

// Scene is one aspect-ratio specific creative document.
type Scene struct {
	AspectRatio        float64         `json:"aspect_ratio"`
	ForegroundCaption  string          `json:"foreground_caption"`
	BackgroundCaption  string          `json:"background_caption"`
	AIBackgroundPrompt string          `json:"ai_background_prompt"`
	Layout             geometry.Layout `json:"layout"`
	ProductMask        string          `json:"product_mask"`
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
