package dto

import "github.com/your-org/photostack/internal/models"

// TextSearchRequest is the JSON body for text similarity search. TopK left
// out of the body means the server default; an explicit zero is invalid.
type TextSearchRequest struct {
	Query  string             `json:"query"`
	TopK   *int               `json:"top_k,omitempty"`
	Filter *models.FilterSpec `json:"filter"`
}

// SearchResponse carries ranked matches for any search kind.
type SearchResponse struct {
	Matches []models.MatchResult `json:"matches"`
	Total   int                  `json:"total"`
}

// QARequest is the JSON body for retrieval-grounded question answering. TopK
// controls how many matches ground the answer; unset means the server's
// retrieval depth.
type QARequest struct {
	Question string             `json:"question"`
	TopK     *int               `json:"top_k,omitempty"`
	Filter   *models.FilterSpec `json:"filter"`
}

// QAResponse is a synthesized answer plus the matches that grounded it.
type QAResponse struct {
	Answer  string               `json:"answer"`
	Matches []models.MatchResult `json:"matches"`
	Raw     string               `json:"raw,omitempty"`
}
