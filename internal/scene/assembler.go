// Package scene assembles the final per-aspect-ratio scene documents.
package scene

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mtzanidakis/scenegen/internal/creative"
	"github.com/mtzanidakis/scenegen/internal/geometry"
	"github.com/mtzanidakis/scenegen/internal/pipeline"
)

// required lists the fragments a scene cannot be built without.
var required = []pipeline.Key{
	pipeline.KeyFeatures,
	pipeline.KeyBackground,
	pipeline.KeyCopy,
	pipeline.KeyLayouts,
	pipeline.KeyGraphicElements,
}

// Assembler is the terminal pipeline node.
type Assembler struct {
	canvas geometry.Size
}

// NewAssembler returns an assembler that rescales pixel-space layouts by the
// product image size, or by canvas when the image size is unknown.
func NewAssembler(canvas geometry.Size) *Assembler {
	return &Assembler{canvas: canvas}
}

func (a *Assembler) Run(_ context.Context, st *pipeline.State) pipeline.Result {
	scenes, err := a.Assemble(st)
	if err != nil {
		return pipeline.Failed(err)
	}
	return pipeline.Completed(pipeline.ScenesFragment(scenes))
}

// Assemble builds one scene per configured aspect ratio that has a layout
// plan, in creative.AspectRatios order. Ratios without a plan are skipped.
// Every box and subject placement is normalized and empty element lists are
// filled with fallback elements.
func (a *Assembler) Assemble(st *pipeline.State) ([]creative.Scene, error) {
	var missing []pipeline.Key
	for _, k := range required {
		if st.Empty(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &pipeline.IncompleteStateError{Keys: missing}
	}

	features := st.Features()
	background := st.Background()
	adCopy := st.Copy()
	layouts := st.Layouts()
	size := a.sourceSize(st)

	scenes := make([]creative.Scene, 0, len(creative.AspectRatios))
	for _, ratio := range creative.AspectRatios {
		plan, ok := layouts.Lookup(ratio)
		if !ok {
			slog.Debug("no layout plan for aspect ratio", "ratio", ratio)
			continue
		}

		layout := geometry.Normalize(plan.Layout(), size)
		layout = geometry.InjectFallback(layout, nil, adCopy.Logo)

		scenes = append(scenes, creative.Scene{
			AspectRatio:        ratio,
			ForegroundCaption:  firstNonBlank(plan.ForegroundPrompt, features.ProductFeatures),
			BackgroundCaption:  firstNonBlank(plan.BackgroundPrompt, background.Caption),
			AIBackgroundPrompt: background.Prompt,
			Layout:             layout,
			ProductMask:        features.ProductMask,
		})
	}
	return scenes, nil
}

func (a *Assembler) sourceSize(st *pipeline.State) geometry.Size {
	img := st.Image()
	if size := (geometry.Size{Width: img.Width, Height: img.Height}); size.Valid() {
		return size
	}
	return a.canvas
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
