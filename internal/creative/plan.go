package creative

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mtzanidakis/scenegen/internal/geometry"
)

// AspectRatios is the fixed set of scene aspect ratios, in output order.
var AspectRatios = []float64{0.684, 1.0, 0.667, 0.75}

const ratioTolerance = 0.0005

// RatioKey is the canonical map key for a ratio ("0.684", "1", ...).
func RatioKey(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// MatchRatio maps a producer-supplied ratio label onto one of AspectRatios.
func MatchRatio(label string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(label), 64)
	if err != nil {
		return 0, false
	}
	return matchRatioValue(v)
}

func matchRatioValue(v float64) (float64, bool) {
	for _, r := range AspectRatios {
		if math.Abs(r-v) <= ratioTolerance {
			return r, true
		}
	}
	return 0, false
}

// LayoutPlan is the planner's design for one aspect ratio.
type LayoutPlan struct {
	AspectRatio      float64                   `json:"target_canvas_aspect_ratio,omitempty"`
	ForegroundPrompt string                    `json:"foreground_prompt,omitempty"`
	BackgroundPrompt string                    `json:"background_prompt,omitempty"`
	Subject          []geometry.SubjectElement `json:"subject_layout"`
	Nongraphic       []geometry.Element        `json:"nongraphic_layout"`
	Graphic          []geometry.Element        `json:"graphic_layout"`
}

// Layout returns the plan's element lists.
func (p LayoutPlan) Layout() geometry.Layout {
	return geometry.Layout{
		Subject:    p.Subject,
		Nongraphic: p.Nongraphic,
		Graphic:    p.Graphic,
	}
}

// normalizeKey folds "subject layout", "Subject-Layout" and "subject_layout"
// onto one spelling.
func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

func normalizedObject(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		out[normalizeKey(k)] = v
	}
	return out, nil
}

// UnmarshalJSON tolerates spaced or underscored field names, a single subject
// object instead of a list, and drops elements whose bbox cannot be read.
func (p *LayoutPlan) UnmarshalJSON(data []byte) error {
	obj, err := normalizedObject(data)
	if err != nil {
		return fmt.Errorf("layout plan: %w", err)
	}

	var out LayoutPlan
	if raw, ok := first(obj, "target_canvas_aspect_ratio", "aspect_ratio"); ok {
		var s string
		if json.Unmarshal(raw, &out.AspectRatio) != nil && json.Unmarshal(raw, &s) == nil {
			out.AspectRatio, _ = strconv.ParseFloat(s, 64)
		}
	}
	if raw, ok := first(obj, "foreground_prompt", "foreground_caption"); ok {
		_ = json.Unmarshal(raw, &out.ForegroundPrompt)
	}
	if raw, ok := first(obj, "background_prompt", "background_caption"); ok {
		_ = json.Unmarshal(raw, &out.BackgroundPrompt)
	}
	if raw, ok := first(obj, "subject_layout", "subject"); ok {
		out.Subject = decodeSubjects(raw)
	}
	if raw, ok := first(obj, "nongraphic_layout", "nongraphic"); ok {
		out.Nongraphic = decodeElements(raw)
	}
	if raw, ok := first(obj, "graphic_layout", "graphic"); ok {
		out.Graphic = decodeElements(raw)
	}

	*p = out
	return nil
}

func first(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func decodeSubjects(raw json.RawMessage) []geometry.SubjectElement {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		// A single {center, ratio} object.
		items = []json.RawMessage{raw}
	}
	out := make([]geometry.SubjectElement, 0, len(items))
	for _, item := range items {
		var s geometry.SubjectElement
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

func decodeElements(raw json.RawMessage) []geometry.Element {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		items = []json.RawMessage{raw}
	}
	out := make([]geometry.Element, 0, len(items))
	for _, item := range items {
		var e geometry.Element
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// LayoutPlans maps a canonical ratio key to its plan.
type LayoutPlans map[string]LayoutPlan

func (l LayoutPlans) Empty() bool {
	return len(l) == 0
}

// Lookup returns the plan for ratio.
func (l LayoutPlans) Lookup(ratio float64) (LayoutPlan, bool) {
	p, ok := l[RatioKey(ratio)]
	return p, ok
}

// ParseLayoutPlans reads planner output. Plans may be keyed by ratio at the
// top level or under "layouts", or given as a list carrying their own target
// ratio. Ratios outside AspectRatios are ignored.
func ParseLayoutPlans(data []byte) (LayoutPlans, error) {
	obj, err := normalizedObject(data)
	if err == nil {
		if inner, ok := obj["layouts"]; ok {
			return ParseLayoutPlans(inner)
		}
		plans := make(LayoutPlans)
		for label, raw := range obj {
			ratio, ok := MatchRatio(label)
			if !ok {
				continue
			}
			var p LayoutPlan
			if err := json.Unmarshal(raw, &p); err != nil {
				continue
			}
			p.AspectRatio = ratio
			plans[RatioKey(ratio)] = p
		}
		return plans, nil
	}

	var list []LayoutPlan
	if lerr := json.Unmarshal(data, &list); lerr != nil {
		return nil, fmt.Errorf("layout plans: %w", err)
	}
	plans := make(LayoutPlans)
	for _, p := range list {
		ratio, ok := matchRatioValue(p.AspectRatio)
		if !ok {
			continue
		}
		p.AspectRatio = ratio
		plans[RatioKey(ratio)] = p
	}
	return plans, nil
}
