package domain

// Passage is a single scored piece of evidence returned by the knowledge store.
type Passage struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Decomposition is the result of splitting one user question into sub-queries.
type Decomposition struct {
	SubQueries []string `json:"sub_queries"`
	Rationale  string   `json:"rationale"`
}

// RetrievedContext is the outcome of one pipeline run. Context is empty when
// retrieval is disabled or nothing relevant was found.
type RetrievedContext struct {
	Query            string   `json:"query"`
	Context          string   `json:"context"`
	Sources          []string `json:"sources"`
	SubQueries       []string `json:"sub_queries"`
	TotalResults     int      `json:"total_results"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// Answer is a generated response plus the evidence it was grounded on.
type Answer struct {
	Text       string   `json:"text"`
	Sources    []string `json:"sources"`
	SubQueries []string `json:"sub_queries"`
}
