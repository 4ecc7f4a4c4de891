package models

import "fmt"

// SearchQuery is a search request. Either Query or Queries must be set; a
// single Query is searched as a batch of one.
type SearchQuery struct {
	Query   string   `json:"query,omitempty"`
	Queries []string `json:"queries,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if no query text is present; otherwise normalizes limit.
func (q *SearchQuery) Validate() error {
	if q.Query == "" && len(q.Queries) == 0 {
		return fmt.Errorf("query cannot be empty")
	}
	for i, s := range q.Queries {
		if s == "" {
			return fmt.Errorf("query %d cannot be empty", i)
		}
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// Texts returns the query texts in request order.
func (q *SearchQuery) Texts() []string {
	if len(q.Queries) > 0 {
		return q.Queries
	}
	return []string{q.Query}
}
