package geometry

import (
	"encoding/json"
)

// Default subject placement when a layout carries no subject at all.
var (
	DefaultSubjectCenter = Point{0.5, 0.5}
	DefaultSubjectRatio  = Point{0.3, 0.3}
)

// Element is a nongraphic or graphic layout entry.
type Element struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	BBox    Box    `json:"bbox"`
}

// SubjectElement places the product on the canvas.
type SubjectElement struct {
	Type   string `json:"type,omitempty"`
	Center Point  `json:"center"`
	Ratio  Point  `json:"ratio"`
	BBox   *Box   `json:"bbox,omitempty"`
}

// UnmarshalJSON fills center and ratio from a bbox when only a bbox is given.
func (s *SubjectElement) UnmarshalJSON(data []byte) error {
	type plain SubjectElement
	var raw struct {
		plain
		Center      *Point `json:"center"`
		Ratio       *Point `json:"ratio"`
		AspectRatio *Point `json:"aspect_ratio"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SubjectElement(raw.plain)
	if raw.Center != nil {
		s.Center = *raw.Center
	}
	switch {
	case raw.Ratio != nil:
		s.Ratio = *raw.Ratio
	case raw.AspectRatio != nil:
		s.Ratio = *raw.AspectRatio
	}
	if raw.Center == nil && s.BBox != nil {
		b := *s.BBox
		s.Center = Point{b[0] + b[2]/2, b[1] + b[3]/2}
		if raw.Ratio == nil && raw.AspectRatio == nil {
			s.Ratio = Point{b[2], b[3]}
		}
	}
	return nil
}

// Layout is the three element lists of one scene.
type Layout struct {
	Subject    []SubjectElement `json:"subject"`
	Nongraphic []Element        `json:"nongraphic"`
	Graphic    []Element        `json:"graphic"`
}

// Normalize rescales pixel-space coordinates by size and clamps every box and
// center/ratio pair into the unit square. The input is not modified.
func Normalize(l Layout, size Size) Layout {
	out := Layout{
		Subject:    make([]SubjectElement, 0, len(l.Subject)),
		Nongraphic: normalizeElements(l.Nongraphic, size),
		Graphic:    normalizeElements(l.Graphic, size),
	}
	for _, s := range l.Subject {
		s.Center, s.Ratio = NormalizeSubject(s.Center, s.Ratio, size)
		if s.BBox != nil {
			b := NormalizeBox(*s.BBox, size)
			s.BBox = &b
		}
		out.Subject = append(out.Subject, s)
	}
	return out
}

func normalizeElements(in []Element, size Size) []Element {
	out := make([]Element, 0, len(in))
	for _, e := range in {
		e.BBox = NormalizeBox(e.BBox, size)
		out = append(out, e)
	}
	return out
}

// InjectFallback guarantees non-empty nongraphic and graphic lists.
//
// An empty nongraphic list gets two headline banners anchored to the top and
// bottom of the canvas; an empty graphic list gets one logo placeholder in the
// top-right corner carrying logoText. An empty subject list gets subject,
// when given, or a centered default subject.
func InjectFallback(l Layout, subject *SubjectElement, logoText string) Layout {
	out := Layout{
		Subject:    append([]SubjectElement(nil), l.Subject...),
		Nongraphic: append([]Element(nil), l.Nongraphic...),
		Graphic:    append([]Element(nil), l.Graphic...),
	}

	if len(out.Subject) == 0 {
		s := SubjectElement{Type: "product", Center: DefaultSubjectCenter, Ratio: DefaultSubjectRatio}
		if subject != nil {
			s = *subject
		}
		s.Center, s.Ratio = ClampPoint(s.Center), ClampPoint(s.Ratio)
		out.Subject = []SubjectElement{s}
	}

	if len(out.Nongraphic) == 0 {
		top, bottom := BannerBoxes()
		out.Nongraphic = []Element{
			{Type: "headline", BBox: top},
			{Type: "headline", BBox: bottom},
		}
	}

	if len(out.Graphic) == 0 {
		out.Graphic = []Element{
			{Type: "logo", Content: logoText, BBox: LogoBox()},
		}
	}

	return out
}
