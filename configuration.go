package statechart

import (
	"fmt"
	"strings"
)

// Configuration returns the active configuration, e.g. "H1:H2:C" or
// "B(R1_final|E(F|G)|H:I)". Regions are written through their current
// substate, or by their own name while they have none. An instance that is
// not started has the empty configuration.
func (in *Instance) Configuration() string {
	in.mutex.Lock()
	defer in.mutex.Unlock()
	return in.configuration()
}

func (in *Instance) configuration() string {
	if !in.rt.isActive(Root) {
		return ""
	}
	current := in.rt.current(Root)
	if current == NoState {
		return ""
	}

	var sb strings.Builder
	in.writeState(&sb, current)
	return sb.String()
}

func (in *Instance) writeState(sb *strings.Builder, id StateID) {
	n := &in.graph.nodes[id]
	sb.WriteString(n.name)

	switch n.kind {
	case KindHierarchical:
		if current := in.rt.current(id); current != NoState {
			sb.WriteString(PathDelimiter)
			in.writeState(sb, current)
		}
	case KindConcurrent:
		sb.WriteString(RegionOpen)
		for i, region := range n.children {
			if i > 0 {
				sb.WriteString(RegionSeparator)
			}
			if current := in.rt.current(region); current != NoState {
				in.writeState(sb, current)
			} else {
				sb.WriteString(in.graph.nodes[region].name)
			}
		}
		sb.WriteString(RegionClose)
	}
}

// ParseConfiguration resolves a configuration string into the innermost
// states it names, in the order they appear
func (g *Graph) ParseConfiguration(configuration string) ([]StateID, error) {
	if configuration == "" {
		return nil, NewStateError(ErrCodeInvalidConfiguration, configuration, "configuration is empty")
	}

	p := &configurationParser{graph: g, input: configuration}
	states, err := p.state(Root)
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, p.errorf("unexpected %q", p.input[p.pos])
	}
	return states, nil
}

type configurationParser struct {
	graph *Graph
	input string
	pos   int
}

func (p *configurationParser) errorf(format string, args ...any) error {
	return NewStateError(ErrCodeInvalidConfiguration, p.input,
		fmt.Sprintf("at offset %d: %s", p.pos, fmt.Sprintf(format, args...)))
}

func (p *configurationParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *configurationParser) name() string {
	start := p.pos
	for p.pos < len(p.input) && !strings.ContainsRune(reservedCharacters, rune(p.input[p.pos])) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// state parses one state below context and everything nested in it
func (p *configurationParser) state(context StateID) ([]StateID, error) {
	name := p.name()
	if name == "" {
		return nil, p.errorf("state name expected")
	}

	id := p.graph.child(context, name)
	if id == NoState {
		return nil, NewStateNotFoundError(joinPath(p.graph.Path(context), name))
	}
	n := &p.graph.nodes[id]

	switch p.peek() {
	case PathDelimiter[0]:
		if n.kind != KindHierarchical {
			return nil, p.errorf("'%s' is a %s state and has no substate", name, n.kind)
		}
		p.pos++
		return p.state(id)

	case RegionOpen[0]:
		if n.kind != KindConcurrent {
			return nil, p.errorf("'%s' is a %s state and has no regions", name, n.kind)
		}
		p.pos++

		var states []StateID
		for i, region := range n.children {
			if i > 0 {
				if p.peek() != RegionSeparator[0] {
					return nil, p.errorf("expected %q", RegionSeparator)
				}
				p.pos++
			}
			regionStates, err := p.region(region)
			if err != nil {
				return nil, err
			}
			states = append(states, regionStates...)
		}

		if p.peek() != RegionClose[0] {
			return nil, p.errorf("expected %q", RegionClose)
		}
		p.pos++
		return states, nil
	}

	return []StateID{id}, nil
}

// region parses one region segment: a substate of the region, or the bare
// region name while the region has no current substate
func (p *configurationParser) region(region StateID) ([]StateID, error) {
	start := p.pos
	name := p.name()
	p.pos = start

	if p.graph.child(region, name) == NoState && name == p.graph.nodes[region].name {
		p.pos += len(name)
		return []StateID{region}, nil
	}
	return p.state(region)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + PathDelimiter + name
}
