package model

// Chunk is a knowledge-base passage with its embedding vector. Vectors are
// produced by an external embedding provider; this engine treats them as
// opaque fixed-length float slices. Immutable once stored.
type Chunk struct {
	ID              string    `json:"id"`
	KnowledgeBaseID string    `json:"knowledge_base_id"`
	Content         string    `json:"content"`
	Embedding       []float32 `json:"embedding,omitempty"`
}

// RetrievalResult pairs a chunk with its cosine similarity against a query
// vector. Lives only for the duration of one retrieval call.
type RetrievalResult struct {
	Chunk      *Chunk  `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
