package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mtzanidakis/scenegen/internal/creative"
	"github.com/mtzanidakis/scenegen/internal/llm"
)

// Key names one slot of the pipeline state.
type Key string

const (
	KeyFeatures        Key = "features"
	KeyTrends          Key = "trends"
	KeyCopy            Key = "copy"
	KeyBackground      Key = "background"
	KeyGraphicElements Key = "graphic_elements"
	KeyLayouts         Key = "layouts"
	KeyFinalJSON       Key = "final_json"
)

// Keys lists every slot in production order.
var Keys = []Key{KeyFeatures, KeyTrends, KeyCopy, KeyBackground, KeyGraphicElements, KeyLayouts, KeyFinalJSON}

// ErrAlreadyWritten is returned when a slot is written twice.
var ErrAlreadyWritten = errors.New("state key already written")

// Input seeds a run.
type Input struct {
	ProductName string
	Image       llm.Image
}

// Fragment is a typed partial result destined for exactly one slot. Build
// fragments with the constructors below; the zero Fragment is invalid.
type Fragment struct {
	key   Key
	value any
}

func (f Fragment) Key() Key { return f.key }

// Valid reports whether f was built by a constructor.
func (f Fragment) Valid() bool { return f.key != "" }

func FeaturesFragment(v creative.Features) Fragment { return Fragment{KeyFeatures, v} }
func TrendsFragment(v creative.Trends) Fragment     { return Fragment{KeyTrends, v} }
func CopyFragment(v creative.Copy) Fragment         { return Fragment{KeyCopy, v} }
func BackgroundFragment(v creative.Background) Fragment {
	return Fragment{KeyBackground, v}
}
func GraphicElementsFragment(v creative.GraphicElements) Fragment {
	return Fragment{KeyGraphicElements, v}
}
func LayoutsFragment(v creative.LayoutPlans) Fragment { return Fragment{KeyLayouts, v} }
func ScenesFragment(v []creative.Scene) Fragment      { return Fragment{KeyFinalJSON, v} }

// EmptyFragment is the well-typed empty result for key.
func EmptyFragment(key Key) Fragment {
	switch key {
	case KeyFeatures:
		return FeaturesFragment(creative.Features{})
	case KeyTrends:
		return TrendsFragment(creative.Trends{})
	case KeyCopy:
		return CopyFragment(creative.Copy{})
	case KeyBackground:
		return BackgroundFragment(creative.Background{})
	case KeyGraphicElements:
		return GraphicElementsFragment(nil)
	case KeyLayouts:
		return LayoutsFragment(nil)
	case KeyFinalJSON:
		return ScenesFragment([]creative.Scene{})
	}
	return Fragment{}
}

// State is the write-once accumulator threaded through the graph. Each slot
// is written at most once; readers only see slots whose writers completed.
type State struct {
	mu sync.RWMutex

	productName string
	image       llm.Image

	features        creative.Features
	trends          creative.Trends
	copy            creative.Copy
	background      creative.Background
	graphicElements creative.GraphicElements
	layouts         creative.LayoutPlans
	scenes          []creative.Scene

	written map[Key]bool
}

func NewState(in Input) *State {
	return &State{
		productName: in.ProductName,
		image:       in.Image,
		written:     make(map[Key]bool, len(Keys)),
	}
}

func (s *State) ProductName() string { return s.productName }
func (s *State) Image() llm.Image    { return s.image }

// Put publishes f into its slot.
func (s *State) Put(f Fragment) error {
	if !f.Valid() {
		return errors.New("invalid fragment")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.written[f.key] {
		return fmt.Errorf("%w: %s", ErrAlreadyWritten, f.key)
	}

	switch v := f.value.(type) {
	case creative.Features:
		s.features = v
	case creative.Trends:
		s.trends = v
	case creative.Copy:
		s.copy = v
	case creative.Background:
		s.background = v
	case creative.GraphicElements:
		s.graphicElements = v
	case creative.LayoutPlans:
		s.layouts = v
	case []creative.Scene:
		s.scenes = v
	default:
		return fmt.Errorf("unsupported fragment value %T for %s", f.value, f.key)
	}
	s.written[f.key] = true
	return nil
}

// Written reports whether key has been published.
func (s *State) Written(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.written[key]
}

// Empty reports whether key is unwritten or holds an empty value.
func (s *State) Empty(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.written[key] {
		return true
	}
	switch key {
	case KeyFeatures:
		return s.features.Empty()
	case KeyTrends:
		return s.trends.Empty()
	case KeyCopy:
		return s.copy.Empty()
	case KeyBackground:
		return s.background.Empty()
	case KeyGraphicElements:
		return s.graphicElements.Empty()
	case KeyLayouts:
		return s.layouts.Empty()
	case KeyFinalJSON:
		return len(s.scenes) == 0
	}
	return true
}

// CheckInputs verifies that every key in requires and uses was published.
// Unpublished keys mean the scheduler ran agent too early and yield a
// *MissingInputError. Published but empty required keys are returned so the
// caller can degrade.
func (s *State) CheckInputs(agent string, requires, uses []Key) ([]Key, error) {
	var missing, empty []Key
	for _, k := range append(append([]Key(nil), requires...), uses...) {
		if !s.Written(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Agent: agent, Keys: missing}
	}
	for _, k := range requires {
		if s.Empty(k) {
			empty = append(empty, k)
		}
	}
	return empty, nil
}

func (s *State) Features() creative.Features {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features
}

func (s *State) Trends() creative.Trends {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trends
}

func (s *State) Copy() creative.Copy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copy
}

func (s *State) Background() creative.Background {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.background
}

func (s *State) GraphicElements() creative.GraphicElements {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphicElements
}

func (s *State) Layouts() creative.LayoutPlans {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layouts
}

// FinalJSON returns the assembled scenes. It is never nil once a run ended.
func (s *State) FinalJSON() []creative.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenes
}

// closeFinal publishes an empty scene list when the terminal step never did.
func (s *State) closeFinal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.written[KeyFinalJSON] {
		s.scenes = []creative.Scene{}
		s.written[KeyFinalJSON] = true
	}
}
