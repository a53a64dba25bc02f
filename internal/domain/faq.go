package domain

// MaxMatches caps the number of matches returned for a single query.
const MaxMatches = 3

// SearchMatch is a single retrieval hit. Score is in [0,1] on the
// fallback path; on the vector path it is the backend's native
// similarity metric.
type SearchMatch struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// FAQResult is the terminal answer returned to the caller.
type FAQResult struct {
	Answer  string        `json:"answer"`
	Matches []SearchMatch `json:"matches"`
}
