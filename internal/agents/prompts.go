package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mtzanidakis/scenegen/internal/creative"
	"github.com/mtzanidakis/scenegen/internal/geometry"
)

const jsonOnly = "Respond with a single valid JSON object and nothing else."

const analyzerSystem = `You are a professional product designer. Analyze the product shown in the image and describe it objectively, ignoring whatever background the photo happens to have.

Return a JSON object with these keys:
- "product_features": a detailed description of the product's visual characteristics, materials, texture and style.
- "use_case": the primary use or purpose of the product.
- "product_mask": instructions an image-editing model could follow to cut the product out of the photo.

` + jsonOnly

const trendSystem = `You are a marketing trend analyst. Analyze the market category of the given product.

Return a JSON object with these keys:
- "category": the main product category.
- "popular_brands": a list of popular brands in the category.
- "slogans": a list of 3 to 4 example slogans typical for the category.
- "tone": the dominant marketing tone, for example "elegant", "energetic" or "minimalist".

` + jsonOnly

const copySystem = `You are a creative copywriter for product advertising. Write short, punchy copy that fits the product and the market tone.

Return a JSON object with these keys:
- "logo": logo text for the product, at most one word.
- "tagline": a strong advertising tagline.
- "underlay": a short supporting phrase shown under the tagline.

` + jsonOnly

const backgroundSystem = `You are a set designer for product photography. Design the backdrop that makes the product stand out.

Return a JSON object with these keys:
- "background_caption": a one or two sentence description of the background.
- "background_prompt": a prompt for an image generation model that renders this background without the product.

` + jsonOnly

const graphicSystem = `You are an art director. Decide which text and branding elements appear on the advertising poster and what each one says.

Return a JSON object with the key "graphic_elements": a list of objects with
- "type": one of "tagline", "underlay", "logo" or "cta".
- "content": the exact text of the element.

Use the supplied copy verbatim where it fits. ` + jsonOnly

const plannerSystem = `You are a professional graphic designer who lays out advertising posters. ` + jsonOnly

func productLine(name string) string {
	return "Product name: " + name
}

func trendContent(name string) string {
	return productLine(name)
}

func copyContent(name string, f creative.Features, t creative.Trends) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nProduct features: %s\n", productLine(name), f.ProductFeatures)
	if f.UseCase != "" {
		fmt.Fprintf(&sb, "Use case: %s\n", f.UseCase)
	}
	if t.Empty() {
		sb.WriteString("Marketing trends: not available\n")
	} else {
		fmt.Fprintf(&sb, "Marketing trends: %s\n", compactJSON(t))
	}
	sb.WriteString("\nWrite the logo, tagline and underlay for this product.")
	return sb.String()
}

func backgroundContent(f creative.Features) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product features: %s\n", f.ProductFeatures)
	if f.UseCase != "" {
		fmt.Fprintf(&sb, "Use case: %s\n", f.UseCase)
	}
	sb.WriteString("\nDescribe the background that shows this product at its best.")
	return sb.String()
}

func graphicContent(c creative.Copy, f creative.Features) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Copy: %s\n", compactJSON(c))
	if f.ProductFeatures != "" {
		fmt.Fprintf(&sb, "Product features: %s\n", f.ProductFeatures)
	}
	sb.WriteString("\nList the graphic elements for the poster.")
	return sb.String()
}

func plannerContent(f creative.Features, elements creative.GraphicElements) string {
	ratios := make([]string, len(creative.AspectRatios))
	for i, r := range creative.AspectRatios {
		ratios[i] = fmt.Sprintf("%q", creative.RatioKey(r))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Design a poster layout for a %dx%d advertising canvas.\n\n", geometry.Canvas.Width, geometry.Canvas.Height)
	fmt.Fprintf(&sb, "Product features: %s\n", f.ProductFeatures)
	fmt.Fprintf(&sb, "Graphic elements: %s\n\n", compactJSON(elements))
	fmt.Fprintf(&sb, `Return a JSON object with a "layouts" object keyed by aspect ratio (%s). Each value has:
- "target_canvas_aspect_ratio": the aspect ratio as a number.
- "foreground_prompt": a prompt describing the product in the foreground.
- "background_prompt": a prompt describing the background.
- "subject_layout": a list of {"type", "center": [cx, cy], "ratio": [w, h]} placing the product.
- "nongraphic_layout": a list of {"type", "bbox"} for shapes or panels behind text.
- "graphic_layout": a list of {"type", "content", "bbox"} for every graphic element.

Every bbox is [x, y, w, h]: the top-left corner plus width and height, relative to the canvas, so all values are between 0 and 1. Make each aspect ratio look balanced on its own.`, strings.Join(ratios, ", "))
	return sb.String()
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
