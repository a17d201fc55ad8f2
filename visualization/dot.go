package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/statechart"
)

// DOTGenerator generates Graphviz DOT representations of statechart graphs.
// Hierarchical and concurrent states become clusters, regions are drawn as
// dashed clusters inside their concurrent state.
type DOTGenerator struct {
	graph   *statechart.Graph
	options DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	ShowPseudostates    bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	// Active states are filled with ActiveColor, e.g. Instance.ActiveStates()
	Active      []statechart.StateID
	ActiveColor string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		ShowPseudostates:    true,
		RankDirection:       "TB",
		NodeShape:           "box",
		ActiveColor:         "gold",
	}
}

// NewDOTGenerator creates a new DOT generator for the given graph
func NewDOTGenerator(graph *statechart.Graph, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		graph:   graph,
		options: opts,
	}
}

// Generate creates a DOT representation of the graph
func (g *DOTGenerator) Generate() (string, error) {
	if g.graph == nil {
		return "", fmt.Errorf("no graph to render")
	}

	var dot strings.Builder

	fmt.Fprintf(&dot, "digraph %q {\n", g.graph.Name())
	fmt.Fprintf(&dot, "  rankdir=%s;\n", g.options.RankDirection)
	dot.WriteString("  compound=true;\n")
	fmt.Fprintf(&dot, "  node [shape=%s style=\"rounded,filled\" fillcolor=white];\n", g.options.NodeShape)
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // States\n")
	for _, child := range g.graph.Children(statechart.Root) {
		g.generateState(&dot, child, "  ")
	}

	dot.WriteString("\n  // Transitions\n")
	for id := statechart.StateID(0); int(id) < g.graph.NumStates(); id++ {
		for _, tid := range g.graph.TransitionsOf(id) {
			g.generateTransition(&dot, tid)
		}
	}

	dot.WriteString("}\n")

	return dot.String(), nil
}

func (g *DOTGenerator) generateState(dot *strings.Builder, id statechart.StateID, indent string) {
	kind := g.graph.KindOf(id)
	if kind.IsPseudo() && !g.options.ShowPseudostates {
		return
	}

	if g.isCluster(id) {
		g.generateCluster(dot, id, kind, g.graph.Children(id), indent)
		return
	}

	fmt.Fprintf(dot, "%s%q [%s];\n", indent, g.nodeID(id), g.nodeAttributes(id, kind))
}

func (g *DOTGenerator) generateCluster(dot *strings.Builder, id statechart.StateID, kind statechart.Kind, children []statechart.StateID, indent string) {
	style := "rounded"
	if g.graph.KindOf(g.graph.ParentOf(id)) == statechart.KindConcurrent {
		style = "dashed"
	}
	if g.isActive(id) {
		style += ",filled"
	}

	fmt.Fprintf(dot, "%ssubgraph %q {\n", indent, "cluster_"+g.nodeID(id))
	fmt.Fprintf(dot, "%s  label=%q;\n", indent, g.graph.NameOf(id))
	fmt.Fprintf(dot, "%s  style=%q;\n", indent, style)
	if g.isActive(id) {
		fmt.Fprintf(dot, "%s  fillcolor=%s;\n", indent, g.options.ActiveColor)
	}
	if kind == statechart.KindConcurrent {
		fmt.Fprintf(dot, "%s  penwidth=2;\n", indent)
	}

	if g.anchor(id) == g.nodeID(id) {
		fmt.Fprintf(dot, "%s  %q [shape=point style=invis];\n", indent, g.nodeID(id))
	}
	for _, child := range children {
		g.generateState(dot, child, indent+"  ")
	}

	fmt.Fprintf(dot, "%s}\n", indent)
}

func (g *DOTGenerator) nodeAttributes(id statechart.StateID, kind statechart.Kind) string {
	name := g.graph.NameOf(id)
	fill := "white"
	if g.isActive(id) {
		fill = g.options.ActiveColor
	}

	switch kind {
	case statechart.KindFinal:
		return fmt.Sprintf("shape=doublecircle label=%q fillcolor=%s width=0.3", "", fill)
	case statechart.KindStart:
		return fmt.Sprintf("shape=point width=0.15 fillcolor=black xlabel=%q", name)
	case statechart.KindHistory:
		return fmt.Sprintf("shape=circle label=\"H\" width=0.3 fillcolor=%s xlabel=%q", fill, name)
	case statechart.KindDeepHistory:
		return fmt.Sprintf("shape=circle label=\"H*\" width=0.3 fillcolor=%s xlabel=%q", fill, name)
	case statechart.KindJunction:
		return fmt.Sprintf("shape=diamond label=\"\" width=0.3 fillcolor=%s xlabel=%q", fill, name)
	case statechart.KindFork, statechart.KindJoin:
		return fmt.Sprintf("shape=rect label=\"\" height=0.08 width=0.8 fillcolor=black xlabel=%q", name)
	default:
		return fmt.Sprintf("label=%q fillcolor=%s", name, fill)
	}
}

func (g *DOTGenerator) generateTransition(dot *strings.Builder, tid statechart.TransitionID) {
	t, ok := g.graph.Transition(tid)
	if !ok {
		return
	}
	if !g.options.ShowPseudostates && (g.graph.KindOf(t.Source).IsPseudo() || g.graph.KindOf(t.Target).IsPseudo()) {
		return
	}

	attrs := []string{fmt.Sprintf("label=%q", g.transitionLabel(t))}
	if g.isCluster(t.Source) {
		attrs = append(attrs, fmt.Sprintf("ltail=%q", "cluster_"+g.nodeID(t.Source)))
	}
	if g.isCluster(t.Target) {
		attrs = append(attrs, fmt.Sprintf("lhead=%q", "cluster_"+g.nodeID(t.Target)))
	}
	if t.Timeout > 0 {
		attrs = append(attrs, "style=dashed")
	}

	fmt.Fprintf(dot, "  %q -> %q [%s];\n", g.anchor(t.Source), g.anchor(t.Target), strings.Join(attrs, " "))
}

// transitionLabel renders "event [guard] / action"
func (g *DOTGenerator) transitionLabel(t statechart.TransitionInfo) string {
	var parts []string

	switch {
	case t.Timeout > 0:
		parts = append(parts, "after "+t.Timeout.String())
	case t.Event != "":
		parts = append(parts, t.Event)
	}
	if g.options.ShowGuardConditions && t.HasGuard {
		parts = append(parts, "[guard]")
	}
	if g.options.ShowActions && t.HasAction {
		parts = append(parts, "/ action")
	}

	return strings.Join(parts, " ")
}

func (g *DOTGenerator) isCluster(id statechart.StateID) bool {
	kind := g.graph.KindOf(id)
	return kind == statechart.KindConcurrent || kind == statechart.KindHierarchical
}

// anchor returns the node standing for id in edges: the state itself, or for
// a cluster its start state or first drawable substate
func (g *DOTGenerator) anchor(id statechart.StateID) string {
	if !g.isCluster(id) {
		return g.nodeID(id)
	}

	if start := g.graph.StartOf(id); start != statechart.NoState && g.options.ShowPseudostates {
		return g.nodeID(start)
	}
	for _, child := range g.graph.Children(id) {
		if g.graph.KindOf(child).IsPseudo() && !g.options.ShowPseudostates {
			continue
		}
		return g.anchor(child)
	}
	return g.nodeID(id)
}

func (g *DOTGenerator) nodeID(id statechart.StateID) string {
	return g.graph.Path(id)
}

func (g *DOTGenerator) isActive(id statechart.StateID) bool {
	for _, active := range g.options.Active {
		if active == id {
			return true
		}
	}
	return false
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(graph *statechart.Graph, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(graph, options...),
	}
}

// Generate creates an SVG representation of the graph
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}
