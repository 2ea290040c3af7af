package domain

import "time"

// RunRecord is the audit trail entry for one completed pipeline run.
type RunRecord struct {
	ID               string    `json:"id"`
	Query            string    `json:"query"`
	SubQueries       []string  `json:"sub_queries"`
	TotalResults     int       `json:"total_results"`
	SourceCount      int       `json:"source_count"`
	ContextEmpty     bool      `json:"context_empty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
