// Package chunker splits text into fixed-size, overlapping character windows.
package chunker

import "strings"

const (
	// DefaultSize is the window length used when a non-positive size is configured.
	DefaultSize = 800
	// DefaultOverlap is the overlap used alongside DefaultSize.
	DefaultOverlap = 200

	overlapFallbackGap = 100
	minStep            = 10
)

// Window is one chunk of the source text. Start and End are rune offsets.
type Window struct {
	Start int
	End   int
	Text  string
}

// Chunker produces windows of Size runes that advance by Size-Overlap.
type Chunker struct {
	size    int
	overlap int
}

// New returns a chunker with the given parameters, coerced into a usable range.
// An overlap that is not smaller than size becomes max(0, size-100).
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = max(0, size-overlapFallbackGap)
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the effective window length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the effective overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the non-empty trimmed windows of text in order.
// The final window always ends at the end of the text and the cursor
// moves forward on every iteration, so Split terminates for any input.
func (c *Chunker) Split(text string) []Window {
	runes := []rune(text)
	n := len(runes)
	var out []Window

	for i := 0; i < n; {
		j := min(i+c.size, n)
		if w := strings.TrimSpace(string(runes[i:j])); w != "" {
			out = append(out, Window{Start: i, End: j, Text: w})
		}
		if j == n {
			break
		}
		next := j - c.overlap
		if next <= i {
			next = j - c.size + minStep
		}
		if next <= i {
			next = i + minStep
		}
		i = next
	}
	return out
}

// Chunks returns only the texts of Split.
func (c *Chunker) Chunks(text string) []string {
	windows := c.Split(text)
	out := make([]string, len(windows))
	for k, w := range windows {
		out[k] = w.Text
	}
	return out
}
