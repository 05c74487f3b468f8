package ranker

import (
	"unicode"

	"golang.org/x/text/cases"

	"github.com/MimeLyc/sonomancer/internal/mood"
)

var genericKeywords = []string{"ambient", "ambience", "soundscape", "loop", "sounds", "calm"}

var moodKeywords = map[mood.Mood][]string{
	mood.Tense:       {"tense", "tension", "dark", "thriller", "suspense"},
	mood.Romantic:    {"romantic", "romance", "love", "soft"},
	mood.Mystical:    {"mystical", "magical", "magic", "fantasy", "ethereal"},
	mood.Melancholic: {"melancholic", "melancholy", "sad", "emotional", "rain"},
	mood.Joyful:      {"joyful", "happy", "upbeat", "bright", "cheerful"},
	mood.Suspenseful: {"suspenseful", "suspense", "cinematic", "epic", "adventure"},
	mood.Peaceful:    {"peaceful", "calm", "relaxing", "nature", "meditation"},
	mood.Ominous:     {"ominous", "dark", "eerie", "mysterious", "horror"},
	mood.Whimsical:   {"whimsical", "playful", "fairy", "magical", "cozy"},
	mood.Neutral:     {"reading", "study", "focus", "relaxing"},
}

// Keywords returns the deduplicated keyword set for a mood: the mood word,
// its qualifiers, then the generic ambience terms.
func Keywords(m mood.Mood) []string {
	words := make([]string, 0, 12)
	seen := make(map[string]bool)
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	if m.Valid() {
		add(string(m))
	}
	for _, w := range moodKeywords[m] {
		add(w)
	}
	for _, w := range genericKeywords {
		add(w)
	}
	return words
}

// Overlap counts whole-word, case-insensitive occurrences of keywords in the texts.
func Overlap(keywords []string, texts ...string) int {
	caser := cases.Fold()
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[caser.String(k)] = true
	}

	count := 0
	for _, text := range texts {
		for _, token := range tokenize(caser.String(text)) {
			if set[token] {
				count++
			}
		}
	}
	return count
}

func tokenize(s string) []string {
	var tokens []string
	start := -1
	for i, r := range s {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			tokens = append(tokens, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}
