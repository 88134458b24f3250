package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/samber/lo"

	"github.com/anggasct/signalcycle"
)

// DOTGenerator generates Graphviz DOT format representations of the cycle scheduler
type DOTGenerator struct {
	transitions []signalcycle.Transition
	options     DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	InitialPhase        signalcycle.Phase
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		RankDirection:       "LR",
		NodeShape:           "box",
		InitialPhase:        signalcycle.PhaseStopped,
	}
}

// NewDOTGenerator creates a new DOT generator for a transition table
func NewDOTGenerator(transitions []signalcycle.Transition, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		transitions: transitions,
		options:     opts,
	}
}

// Generate creates a DOT representation of the scheduler
func (g *DOTGenerator) Generate() (string, error) {
	if len(g.transitions) == 0 {
		return "", fmt.Errorf("no transitions to draw")
	}

	var dot strings.Builder

	dot.WriteString("digraph SignalCycle {\n")
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString(fmt.Sprintf("  node [shape=%s];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")

	g.generatePhases(&dot)
	g.generateTransitions(&dot)

	dot.WriteString("}\n")

	return dot.String(), nil
}

// phases returns every phase named by the table, in order of first appearance
func (g *DOTGenerator) phases() []signalcycle.Phase {
	all := make([]signalcycle.Phase, 0, len(g.transitions)*2)
	for _, t := range g.transitions {
		all = append(all, t.Source, t.Target)
	}
	return lo.Uniq(all)
}

func (g *DOTGenerator) generatePhases(dot *strings.Builder) {
	dot.WriteString("  // Phases\n")

	for _, phase := range g.phases() {
		fillColor := phaseColor(phase)
		label := phase.String()
		if phase == g.options.InitialPhase {
			label += "\\n(initial)"
		}
		dot.WriteString(fmt.Sprintf("  \"%s\" [style=\"filled\" fillcolor=%s label=\"%s\"];\n",
			phase, fillColor, label))
	}
	dot.WriteString("\n")
}

func phaseColor(phase signalcycle.Phase) string {
	switch phase {
	case signalcycle.PhaseGreen:
		return "palegreen"
	case signalcycle.PhaseYellow:
		return "khaki"
	default:
		return "lightgrey"
	}
}

func (g *DOTGenerator) generateTransitions(dot *strings.Builder) {
	dot.WriteString("  // Transitions\n")

	for _, t := range g.transitions {
		dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"%s\"];\n", t.Source, t.Target, g.edgeLabel(t)))
	}
}

func (g *DOTGenerator) edgeLabel(t signalcycle.Transition) string {
	label := t.EventName
	if g.options.ShowGuardConditions && t.GuardName != "" {
		label += fmt.Sprintf(" [%s]", t.GuardName)
	}
	if g.options.ShowActions && t.ActionName != "" {
		label += fmt.Sprintf(" / %s", t.ActionName)
	}
	return label
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// GenerateSVG converts the DOT output to SVG with the Graphviz dot command
func (g *DOTGenerator) GenerateSVG() (string, error) {
	dotContent, err := g.Generate()
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
