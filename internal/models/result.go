package models

// SearchResult is a single search hit joined with its document.
type SearchResult struct {
	ID       int64                  `json:"id"`
	UID      string                 `json:"uid"`
	Text     string                 `json:"text"`
	Tags     string                 `json:"tags,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score"`
	Rank     int                    `json:"rank"`
}

// SearchResponse is the response for a search request. Results holds one
// list per query, in request order.
type SearchResponse struct {
	Queries   []string          `json:"queries"`
	Results   [][]*SearchResult `json:"results"`
	QueryTime int64             `json:"query_time_ms"`
}
