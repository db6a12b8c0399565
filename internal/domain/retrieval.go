package domain

// Hit is a retrieval result: a similarity score and the row in the snapshot it points to.
type Hit struct {
	Score float64
	Index int
}

// Passage is a cited chunk returned with an answer.
type Passage struct {
	File    string  `json:"file"`
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

// Answer is the result of one question.
type Answer struct {
	Answer   string    `json:"answer"`
	Passages []Passage `json:"passages"`
}
