package model

// ExtractedDocument is the in-memory result of unpacking one archive
// entry and running text extraction on it. It is consumed by the chunker
// and never persisted.
type ExtractedDocument struct {
	Filename  string
	RawBytes  []byte
	Text      string
	WordCount int
}

// Chunk is one bounded, overlapping window of a document's text.
// Immutable once produced; ChunkIndex preserves document order.
type Chunk struct {
	ChunkID        string `json:"chunk_id"`
	SourceFilename string `json:"source_file"`
	Text           string `json:"text"`
	CharCount      int    `json:"char_count"`
	ChunkIndex     int    `json:"chunk_index"`
}
