package recall

import (
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Document is a text object to index. Key identifies it in passages.
type Document struct {
	Key     string
	Content string
}

// Passage is a retrieved chunk of a document.
type Passage struct {
	File    string
	ChunkID int
	Score   float64
	Text    string
}

// Answer is a grounded answer with the passages it was drawn from.
type Answer struct {
	Text     string
	Passages []Passage
}

// Status describes the installed index.
type Status struct {
	Ready      bool
	Chunks     int
	Files      int
	Rows       int
	Cols       int
	SnapshotID string
	BuiltAt    time.Time
}

// NoAnswer is the marker a Generator returns when the passages do not
// contain the answer.
const NoAnswer = domain.NoAnswerSentinel
