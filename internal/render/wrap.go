package render

import "strings"

// Cursor is the layout position threaded through every text emission. Methods
// return an updated value instead of mutating shared state, so pagination
// decisions are testable without a PDF document in hand.
type Cursor struct {
	Y    float64 // distance from the top of the page, in points
	Page int
}

// Advance moves the cursor down one line.
func (c Cursor) Advance(lineHeight float64) Cursor {
	c.Y += lineHeight
	return c
}

// NeedsPage reports whether the cursor has dropped into the reserved bottom
// band of the page.
func (c Cursor) NeedsPage(pageHeight, bottomReserve float64) bool {
	return c.Y > pageHeight-bottomReserve
}

// NextPage resets the cursor to the top of a fresh page.
func (c Cursor) NextPage(topMargin float64) Cursor {
	return Cursor{Y: topMargin, Page: c.Page + 1}
}

// WrapText greedily packs words into lines no wider than maxWidth under the
// supplied measure function. A single word wider than maxWidth is emitted on
// its own line rather than split.
func WrapText(text string, maxWidth float64, measure func(string) float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if measure(candidate) > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	return append(lines, current)
}
