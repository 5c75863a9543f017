package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mtzanidakis/scenegen/internal/creative"
	"github.com/mtzanidakis/scenegen/internal/pipeline"
	"github.com/mtzanidakis/scenegen/internal/response"
)

func roles() []role {
	return []role{
		{
			name:     pipeline.ProductAnalyzer,
			system:   analyzerSystem,
			required: []string{"product_features"},
			capped:   true,
			named:    true,
			image:    true,
			content: func(st *pipeline.State) string {
				return productLine(st.ProductName())
			},
			decode: decodeFeatures,
		},
		{
			name:     pipeline.TrendInsight,
			system:   trendSystem,
			required: []string{"category"},
			named:    true,
			content: func(st *pipeline.State) string {
				return trendContent(st.ProductName())
			},
			decode: decodeTrends,
		},
		{
			name:     pipeline.MarketingCopy,
			system:   copySystem,
			required: []string{"tagline"},
			content: func(st *pipeline.State) string {
				return copyContent(st.ProductName(), st.Features(), st.Trends())
			},
			decode: decodeCopy,
		},
		{
			name:     pipeline.BackgroundDesigner,
			system:   backgroundSystem,
			required: []string{"background_prompt"},
			content: func(st *pipeline.State) string {
				return backgroundContent(st.Features())
			},
			decode: decodeBackground,
		},
		{
			name:     pipeline.GraphicElement,
			system:   graphicSystem,
			required: []string{"graphic_elements"},
			content: func(st *pipeline.State) string {
				return graphicContent(st.Copy(), st.Features())
			},
			decode: decodeGraphicElements,
			fallback: func(st *pipeline.State) pipeline.Fragment {
				return pipeline.GraphicElementsFragment(creative.ElementsFromCopy(st.Copy()))
			},
		},
		{
			name:   pipeline.AspectRatioPlanner,
			system: plannerSystem,
			content: func(st *pipeline.State) string {
				return plannerContent(st.Features(), st.GraphicElements())
			},
			decode: decodeLayouts,
		},
	}
}

func decodeFeatures(doc response.Document) (pipeline.Fragment, error) {
	return pipeline.FeaturesFragment(creative.Features{
		ProductFeatures: doc.String("product_features"),
		UseCase:         doc.String("use_case"),
		ProductMask:     doc.String("product_mask"),
	}), nil
}

func decodeTrends(doc response.Document) (pipeline.Fragment, error) {
	return pipeline.TrendsFragment(creative.Trends{
		Category:      doc.String("category"),
		PopularBrands: doc.Strings("popular_brands"),
		Slogans:       doc.Strings("slogans"),
		Tone:          doc.String("tone"),
	}), nil
}

func decodeCopy(doc response.Document) (pipeline.Fragment, error) {
	return pipeline.CopyFragment(creative.Copy{
		Logo:     doc.String("logo"),
		Tagline:  doc.String("tagline"),
		Underlay: doc.String("underlay"),
	}), nil
}

func decodeBackground(doc response.Document) (pipeline.Fragment, error) {
	return pipeline.BackgroundFragment(creative.Background{
		Caption: doc.String("background_caption"),
		Prompt:  doc.String("background_prompt"),
	}), nil
}

func decodeGraphicElements(doc response.Document) (pipeline.Fragment, error) {
	raw, _ := doc.Field("graphic_elements")
	var list []creative.GraphicElement
	if err := json.Unmarshal(raw, &list); err != nil {
		return pipeline.Fragment{}, fmt.Errorf("graphic_elements: %w", err)
	}

	var out creative.GraphicElements
	for _, e := range list {
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		e.Content = strings.TrimSpace(e.Content)
		if e.Type == "" || e.Content == "" {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return pipeline.Fragment{}, errors.New("no usable graphic elements")
	}
	return pipeline.GraphicElementsFragment(out), nil
}

func decodeLayouts(doc response.Document) (pipeline.Fragment, error) {
	plans, err := creative.ParseLayoutPlans(doc.Raw())
	if err != nil {
		return pipeline.Fragment{}, err
	}
	if plans.Empty() {
		return pipeline.Fragment{}, errors.New("no layout for any known aspect ratio")
	}
	return pipeline.LayoutsFragment(plans), nil
}
