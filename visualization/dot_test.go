package visualization_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anggasct/signalcycle"
	"github.com/anggasct/signalcycle/visualization"
)

func schedulerTable() []signalcycle.Transition {
	return signalcycle.NewScheduler(signalcycle.NewRosterStore()).Transitions()
}

func TestDOTGeneration(t *testing.T) {
	generator := visualization.NewDOTGenerator(schedulerTable())

	dotContent, err := generator.Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	expected := []string{
		"digraph SignalCycle",
		"rankdir=LR",
		`"Stopped" -> "Green" [label="start / beginTurn"]`,
		`"Green" -> "Yellow" [label="green_expired [isLive] / toYellow"]`,
		`"Yellow" -> "Green" [label="yellow_expired [isLive] / advance"]`,
		`"Yellow" -> "Stopped" [label="stop / halt"]`,
		`Stopped\n(initial)`,
	}
	for _, want := range expected {
		if !strings.Contains(dotContent, want) {
			t.Errorf("DOT content should contain %q", want)
		}
	}

	if got := strings.Count(dotContent, "->"); got != 6 {
		t.Errorf("Expected 6 edges, got %d", got)
	}
	if got := strings.Count(dotContent, "fillcolor="); got != 3 {
		t.Errorf("Expected 3 phase nodes, got %d", got)
	}

	t.Logf("Generated DOT content:\n%s", dotContent)
}

func TestDOTGeneration_PlainLabels(t *testing.T) {
	options := visualization.DefaultDOTOptions()
	options.ShowGuardConditions = false
	options.ShowActions = false
	options.RankDirection = "TB"

	dotContent, err := visualization.NewDOTGenerator(schedulerTable(), options).Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	if strings.Contains(dotContent, "isLive") || strings.Contains(dotContent, "/ halt") {
		t.Error("Guards and actions should be hidden")
	}
	if !strings.Contains(dotContent, `[label="green_expired"]`) {
		t.Error("Event names should remain")
	}
	if !strings.Contains(dotContent, "rankdir=TB") {
		t.Error("Rank direction should follow the options")
	}
}

func TestDOTGeneration_Empty(t *testing.T) {
	if _, err := visualization.NewDOTGenerator(nil).Generate(); err == nil {
		t.Error("Expected an error for an empty table")
	}
}

func TestDOTGenerateToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.dot")

	if err := visualization.NewDOTGenerator(schedulerTable()).GenerateToFile(path); err != nil {
		t.Fatalf("Failed to write DOT file: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read DOT file: %v", err)
	}
	if !strings.HasPrefix(string(content), "digraph SignalCycle {") {
		t.Errorf("Unexpected file content: %s", content)
	}
}
