// Package geometry keeps layout coordinates inside the unit square.
//
// All layout boxes are expressed in width/height form, relative to the
// canvas: [x, y, w, h] with every component in [0,1] and x+w <= 1, y+h <= 1.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

const (
	// precision is the number of fixed decimal steps per unit (4 digits).
	precision = 10000

	// FallbackMargin is the inset used by synthesized banners and logos.
	FallbackMargin = 0.04
	// BannerHeight is the height of a synthesized headline banner.
	BannerHeight = 0.12
	// LogoWidth and LogoHeight size the synthesized top-right logo.
	LogoWidth  = 0.25
	LogoHeight = 0.10
)

// Size is a pixel extent.
type Size struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Canvas is the advertising canvas the planner lays scenes out on.
var Canvas = Size{Width: 800, Height: 1200}

// Box is a bounding box in width/height form: X, Y, W, H.
type Box [4]float64

func (b Box) X() float64 { return b[0] }
func (b Box) Y() float64 { return b[1] }
func (b Box) W() float64 { return b[2] }
func (b Box) H() float64 { return b[3] }

// BoxFromCorners converts an (x1, y1, x2, y2) box to width/height form.
func BoxFromCorners(x1, y1, x2, y2 float64) Box {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Box{x1, y1, x2 - x1, y2 - y1}
}

// UnmarshalJSON accepts [x,y,w,h] (numbers or numeric strings), {x,y,w,h}
// and {x1,y1,x2,y2}. Extra array components are ignored.
func (b *Box) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) < 4 {
			return fmt.Errorf("bbox needs 4 components, got %d", len(arr))
		}
		for i := 0; i < 4; i++ {
			v, err := number(arr[i])
			if err != nil {
				return fmt.Errorf("bbox[%d]: %w", i, err)
			}
			b[i] = v
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bbox must be an array or object: %w", err)
	}
	get := func(keys ...string) (float64, bool, error) {
		for _, k := range keys {
			if raw, ok := obj[k]; ok {
				v, err := number(raw)
				return v, true, err
			}
		}
		return 0, false, nil
	}

	if x1, ok, err := get("x1", "left"); ok {
		if err != nil {
			return err
		}
		y1, _, err := get("y1", "top")
		if err != nil {
			return err
		}
		x2, _, err := get("x2", "right")
		if err != nil {
			return err
		}
		y2, _, err := get("y2", "bottom")
		if err != nil {
			return err
		}
		*b = BoxFromCorners(x1, y1, x2, y2)
		return nil
	}

	var out Box
	for i, keys := range [][]string{{"x"}, {"y"}, {"w", "width"}, {"h", "height"}} {
		v, ok, err := get(keys...)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("bbox object missing %q", keys[0])
		}
		out[i] = v
	}
	*b = out
	return nil
}

// Point is a coordinate pair, used for subject centers and size ratios.
type Point [2]float64

// UnmarshalJSON accepts [a,b] (numbers or numeric strings) or {x,y}.
func (p *Point) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) < 2 {
			return fmt.Errorf("point needs 2 components, got %d", len(arr))
		}
		for i := 0; i < 2; i++ {
			v, err := number(arr[i])
			if err != nil {
				return fmt.Errorf("point[%d]: %w", i, err)
			}
			p[i] = v
		}
		return nil
	}

	var obj struct {
		X json.RawMessage `json:"x"`
		Y json.RawMessage `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("point must be an array or object: %w", err)
	}
	x, err := number(obj.X)
	if err != nil {
		return fmt.Errorf("point x: %w", err)
	}
	y, err := number(obj.Y)
	if err != nil {
		return fmt.Errorf("point y: %w", err)
	}
	*p = Point{x, y}
	return nil
}

func number(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// ClampUnit clamps v to [0,1]. NaN maps to 0.
func ClampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Round4 rounds v to 4 decimal digits.
func Round4(v float64) float64 {
	return float64(steps(v)) / precision
}

func steps(v float64) int64 {
	return int64(math.Round(v * precision))
}

// ClampBox clamps every component to [0,1], shrinks width and height so the
// box stays inside the unit square and rounds to 4 decimal digits.
// ClampBox is idempotent.
func ClampBox(b Box) Box {
	// Work in fixed-point steps so the shrink and the rounding agree.
	x := steps(ClampUnit(b[0]))
	y := steps(ClampUnit(b[1]))
	w := steps(ClampUnit(b[2]))
	h := steps(ClampUnit(b[3]))
	if x+w > precision {
		w = precision - x
	}
	if y+h > precision {
		h = precision - y
	}
	return Box{
		float64(x) / precision,
		float64(y) / precision,
		float64(w) / precision,
		float64(h) / precision,
	}
}

// ClampPoint clamps and rounds both components.
func ClampPoint(p Point) Point {
	return Point{Round4(ClampUnit(p[0])), Round4(ClampUnit(p[1]))}
}

// InPixelSpace reports whether any coordinate exceeds the unit range.
//
// This is a heuristic: a producer is not told which coordinate space to use,
// so any value above 1.0 is taken as a pixel offset. A value of exactly 1.0
// stays normalized, and on very small images genuine pixel values <= 1 are
// indistinguishable from normalized ones.
func InPixelSpace(coords ...float64) bool {
	for _, c := range coords {
		if c > 1.0 {
			return true
		}
	}
	return false
}

// RescaleIfPixelSpace divides x-coordinates (even indices) by size.Width and
// y-coordinates (odd indices) by size.Height when any coordinate exceeds 1.0,
// then clamps every coordinate to [0,1]. An invalid size leaves pixel values
// to the clamp alone.
func RescaleIfPixelSpace(coords []float64, size Size) []float64 {
	out := make([]float64, len(coords))
	copy(out, coords)
	if InPixelSpace(coords...) && size.Valid() {
		for i := range out {
			if i%2 == 0 {
				out[i] /= float64(size.Width)
			} else {
				out[i] /= float64(size.Height)
			}
		}
	}
	for i := range out {
		out[i] = ClampUnit(out[i])
	}
	return out
}

// NormalizeBox rescales a pixel-space box and clamps it into the unit square.
func NormalizeBox(b Box, size Size) Box {
	c := RescaleIfPixelSpace(b[:], size)
	return ClampBox(Box{c[0], c[1], c[2], c[3]})
}

// NormalizeSubject rescales a center/ratio pair together, so that a pixel
// center forces a pixel ratio as well, and clamps both into [0,1].
func NormalizeSubject(center, ratio Point, size Size) (Point, Point) {
	c := RescaleIfPixelSpace([]float64{center[0], center[1], ratio[0], ratio[1]}, size)
	return ClampPoint(Point{c[0], c[1]}), ClampPoint(Point{c[2], c[3]})
}

// BannerBoxes returns the top and bottom headline banners used when a layout
// has no nongraphic elements.
func BannerBoxes() (top, bottom Box) {
	m := FallbackMargin
	top = ClampBox(Box{m, m, 1 - 2*m, BannerHeight})
	bottom = ClampBox(Box{m, 1 - m - BannerHeight, 1 - 2*m, BannerHeight})
	return top, bottom
}

// LogoBox returns the top-right logo placeholder used when a layout has no
// graphic elements.
func LogoBox() Box {
	m := FallbackMargin
	return ClampBox(Box{1 - m - LogoWidth, m, LogoWidth, LogoHeight})
}
