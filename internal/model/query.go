package model

// QueryResult represents the answer to a question.
type QueryResult struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// NamespaceStats holds the record count of one store partition.
type NamespaceStats struct {
	VectorCount int64 `json:"vector_count"`
}

// IndexStats reports the state of the vector index.
type IndexStats struct {
	TotalVectors  int64                     `json:"total_vectors"`
	Dimension     int                       `json:"dimension"`
	IndexFullness float64                   `json:"index_fullness"`
	Namespaces    map[string]NamespaceStats `json:"namespaces"`
}
