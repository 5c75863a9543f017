package pipeline

import (
	"slices"
)

// Node names of the default graph.
const (
	ProductAnalyzer    = "product_analyzer"
	TrendInsight       = "trend_insight"
	MarketingCopy      = "marketing_copy"
	BackgroundDesigner = "background_designer"
	GraphicElement     = "graphic_element"
	AspectRatioPlanner = "aspect_ratio_planner"
	SceneAssembler     = "scene_assembler"
)

// Descriptor declares one node: which nodes must finish before it starts,
// which keys it reads and the single key it produces.
type Descriptor struct {
	Name  string
	After []string
	// Requires are read and must be non-empty for a full answer.
	Requires []Key
	// Uses are read when present but may be empty.
	Uses     []Key
	Produces Key
}

// DefaultGraph returns the ad-creative graph. Sources are the analyzer and
// trend insight; the assembler is the only sink.
func DefaultGraph() []Descriptor {
	return []Descriptor{
		{
			Name:     ProductAnalyzer,
			Produces: KeyFeatures,
		},
		{
			Name:     TrendInsight,
			Produces: KeyTrends,
		},
		{
			Name:     MarketingCopy,
			After:    []string{ProductAnalyzer, TrendInsight},
			Requires: []Key{KeyFeatures},
			Uses:     []Key{KeyTrends},
			Produces: KeyCopy,
		},
		{
			Name:     BackgroundDesigner,
			After:    []string{ProductAnalyzer},
			Requires: []Key{KeyFeatures},
			Produces: KeyBackground,
		},
		{
			Name:     GraphicElement,
			After:    []string{ProductAnalyzer, MarketingCopy},
			Requires: []Key{KeyCopy},
			Uses:     []Key{KeyFeatures},
			Produces: KeyGraphicElements,
		},
		{
			Name:     AspectRatioPlanner,
			After:    []string{ProductAnalyzer, GraphicElement},
			Requires: []Key{KeyFeatures, KeyGraphicElements},
			Produces: KeyLayouts,
		},
		{
			Name:     SceneAssembler,
			After:    []string{AspectRatioPlanner, BackgroundDesigner},
			Requires: []Key{KeyFeatures, KeyCopy, KeyBackground, KeyGraphicElements, KeyLayouts},
			Produces: KeyFinalJSON,
		},
	}
}

// Plan is a validated graph ready for execution.
type Plan struct {
	order      []string // topological, stable with respect to declaration order
	descs      map[string]Descriptor
	dependents map[string][]string
	inDegree   map[string]int
	depth      map[string]int
	sink       string
}

// BuildPlan validates descs and returns an execution plan. It rejects
// duplicate or unknown names, cycles, more than one sink, keys with two
// writers and reads of keys no transitive predecessor produces.
func BuildPlan(descs []Descriptor) (*Plan, error) {
	if len(descs) == 0 {
		return nil, graphErrorf("no nodes")
	}

	p := &Plan{
		descs:      make(map[string]Descriptor, len(descs)),
		dependents: make(map[string][]string, len(descs)),
		inDegree:   make(map[string]int, len(descs)),
		depth:      make(map[string]int, len(descs)),
	}

	writers := make(map[Key]string)
	for _, d := range descs {
		if d.Name == "" {
			return nil, graphErrorf("node without a name")
		}
		if _, dup := p.descs[d.Name]; dup {
			return nil, graphErrorf("duplicate node %q", d.Name)
		}
		if d.Produces == "" {
			return nil, graphErrorf("node %q produces no key", d.Name)
		}
		if prev, ok := writers[d.Produces]; ok {
			return nil, graphErrorf("key %q written by both %q and %q", d.Produces, prev, d.Name)
		}
		writers[d.Produces] = d.Name
		p.descs[d.Name] = d
		p.inDegree[d.Name] = 0
	}

	for _, d := range descs {
		seen := make(map[string]bool, len(d.After))
		for _, pred := range d.After {
			if _, ok := p.descs[pred]; !ok {
				return nil, graphErrorf("node %q depends on unknown node %q", d.Name, pred)
			}
			if pred == d.Name {
				return nil, graphErrorf("node %q depends on itself", d.Name)
			}
			if seen[pred] {
				continue
			}
			seen[pred] = true
			p.dependents[pred] = append(p.dependents[pred], d.Name)
			p.inDegree[d.Name]++
		}
	}

	// Kahn's algorithm, recording the longest path depth of each node.
	remaining := make(map[string]int, len(p.inDegree))
	var queue []string
	for _, d := range descs {
		remaining[d.Name] = p.inDegree[d.Name]
		if remaining[d.Name] == 0 {
			queue = append(queue, d.Name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		p.order = append(p.order, name)
		for _, next := range p.dependents[name] {
			if p.depth[name]+1 > p.depth[next] {
				p.depth[next] = p.depth[name] + 1
			}
			remaining[next]--
			if remaining[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(p.order) != len(descs) {
		var stuck []string
		for _, d := range descs {
			if remaining[d.Name] > 0 {
				stuck = append(stuck, d.Name)
			}
		}
		return nil, graphErrorf("cycle among %v", stuck)
	}

	var sinks []string
	for _, d := range descs {
		if len(p.dependents[d.Name]) == 0 {
			sinks = append(sinks, d.Name)
		}
	}
	if len(sinks) != 1 {
		return nil, graphErrorf("expected exactly one terminal node, found %v", sinks)
	}
	p.sink = sinks[0]

	for _, d := range descs {
		ancestors := p.ancestors(d.Name)
		for _, k := range slices.Concat(d.Requires, d.Uses) {
			w, ok := writers[k]
			if !ok {
				return nil, graphErrorf("node %q reads %q which no node produces", d.Name, k)
			}
			if !ancestors[w] {
				return nil, graphErrorf("node %q reads %q but %q is not one of its predecessors", d.Name, k, w)
			}
		}
	}

	return p, nil
}

func (p *Plan) ancestors(name string) map[string]bool {
	out := make(map[string]bool)
	stack := slices.Clone(p.descs[name].After)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[n] {
			continue
		}
		out[n] = true
		stack = append(stack, p.descs[n].After...)
	}
	return out
}

// Order returns node names in a valid topological order.
func (p *Plan) Order() []string {
	return slices.Clone(p.order)
}

// Sink returns the terminal node.
func (p *Plan) Sink() string {
	return p.sink
}

// Sources returns the nodes without predecessors.
func (p *Plan) Sources() []string {
	var out []string
	for _, name := range p.order {
		if p.inDegree[name] == 0 {
			out = append(out, name)
		}
	}
	return out
}

// Tiers groups nodes by longest distance from a source. Nodes in the same
// tier have no dependency on each other.
func (p *Plan) Tiers() [][]string {
	var tiers [][]string
	for _, name := range p.order {
		d := p.depth[name]
		for len(tiers) <= d {
			tiers = append(tiers, nil)
		}
		tiers[d] = append(tiers[d], name)
	}
	return tiers
}

// Descriptor returns the descriptor of name.
func (p *Plan) Descriptor(name string) (Descriptor, bool) {
	d, ok := p.descs[name]
	return d, ok
}

// Len returns the number of nodes.
func (p *Plan) Len() int {
	return len(p.order)
}
