package domain

// Document is a text object loaded from storage. Key is the storage key.
type Document struct {
	Key     string
	Content string
}

// ChunkMeta identifies a chunk within its owning document.
type ChunkMeta struct {
	File    string
	ChunkID int
}

// Chunk is a bounded, trimmed window of a document.
type Chunk struct {
	ChunkMeta
	Text string
}
