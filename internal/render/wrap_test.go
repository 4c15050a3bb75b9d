package render

import (
	"strings"
	"testing"
)

// charMeasure pretends every character is one unit wide.
func charMeasure(s string) float64 { return float64(len(s)) }

func TestWrapTextNeverExceedsMaxWidth(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth float64
	}{
		{"short line", "take one daily", 40},
		{"wraps at boundary", "one two three four five six seven eight", 12},
		{"tight width", "alpha beta gamma delta", 6},
		{"single word", "paracetamol", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := WrapText(tt.text, tt.maxWidth, charMeasure)
			for _, line := range lines {
				if charMeasure(line) > tt.maxWidth && strings.Contains(line, " ") {
					t.Errorf("line %q wider than %v and not a single word", line, tt.maxWidth)
				}
			}
			if got := strings.Join(lines, " "); got != strings.Join(strings.Fields(tt.text), " ") {
				t.Errorf("wrap lost content: %q", got)
			}
		})
	}
}

func TestWrapTextOverlongWordEmittedAlone(t *testing.T) {
	lines := WrapText("a pneumonoultramicroscopic b", 10, charMeasure)
	want := []string{"a", "pneumonoultramicroscopic", "b"}
	if len(lines) != len(want) {
		t.Fatalf("got %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWrapTextEmpty(t *testing.T) {
	if lines := WrapText("   ", 10, charMeasure); lines != nil {
		t.Fatalf("expected nil for blank text, got %v", lines)
	}
}

func TestCursorPagination(t *testing.T) {
	c := Cursor{Y: 100, Page: 1}
	if c.NeedsPage(842, 150) {
		t.Fatal("cursor well above threshold should not need a page")
	}

	c.Y = 842 - 150 + 1
	if !c.NeedsPage(842, 150) {
		t.Fatal("cursor inside the bottom band should need a page")
	}

	next := c.NextPage(72)
	if next.Page != 2 || next.Y != 72 {
		t.Fatalf("unexpected continuation cursor: %+v", next)
	}

	adv := next.Advance(18)
	if adv.Y != 90 || next.Y != 72 {
		t.Fatal("Advance must return a new value, not mutate")
	}
}
