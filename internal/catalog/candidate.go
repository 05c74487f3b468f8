package catalog

import (
	"context"
	"fmt"

	"github.com/MimeLyc/sonomancer/internal/mood"
)

// Candidate is a video returned by the search provider, before ranking.
type Candidate struct {
	ExternalID      string `json:"external_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	Embeddable      bool   `json:"is_embeddable"`
}

// Searcher turns a mood into candidates in provider order.
// Zero results is not an error.
type Searcher interface {
	Search(ctx context.Context, m mood.Mood) ([]Candidate, error)
}

var queryTerms = map[mood.Mood]string{
	mood.Neutral: "calm reading",
}

// BuildQuery combines the mood word with fixed qualifiers biased toward long-form ambience.
func BuildQuery(m mood.Mood) string {
	word := string(m)
	if term, ok := queryTerms[m]; ok {
		word = term
	}
	if word == "" {
		word = queryTerms[mood.Neutral]
	}
	return fmt.Sprintf("%s ambient soundscape", word)
}
