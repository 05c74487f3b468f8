// Package mood classifies chapter excerpts into a closed vocabulary of moods.
package mood

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Mood string

const (
	Tense       Mood = "tense"
	Romantic    Mood = "romantic"
	Mystical    Mood = "mystical"
	Melancholic Mood = "melancholic"
	Joyful      Mood = "joyful"
	Suspenseful Mood = "suspenseful"
	Peaceful    Mood = "peaceful"
	Ominous     Mood = "ominous"
	Whimsical   Mood = "whimsical"
	Neutral     Mood = "neutral"
)

// Vocabulary is the closed set of moods, in prompt order.
var Vocabulary = []Mood{
	Tense,
	Romantic,
	Mystical,
	Melancholic,
	Joyful,
	Suspenseful,
	Peaceful,
	Ominous,
	Whimsical,
	Neutral,
}

// synonyms maps loose labels a model tends to return onto the vocabulary.
// Order matters only for equal match positions.
var synonyms = []struct {
	word string
	mood Mood
}{
	{"melancholy", Melancholic},
	{"romance", Romantic},
	{"joy", Joyful},
	{"peace", Peaceful},
	{"mystic", Mystical},
	{"whims", Whimsical},
	{"sad", Melancholic},
	{"grief", Melancholic},
	{"sorrow", Melancholic},
	{"mournful", Melancholic},
	{"wistful", Melancholic},
	{"nostalgic", Melancholic},
	{"happy", Joyful},
	{"cheerful", Joyful},
	{"upbeat", Joyful},
	{"hopeful", Joyful},
	{"triumphant", Joyful},
	{"love", Romantic},
	{"tender", Romantic},
	{"passion", Romantic},
	{"intimate", Romantic},
	{"magic", Mystical},
	{"mysterious", Mystical},
	{"ethereal", Mystical},
	{"fantasy", Mystical},
	{"enchant", Mystical},
	{"dreamy", Mystical},
	{"calm", Peaceful},
	{"quiet", Peaceful},
	{"serene", Peaceful},
	{"tranquil", Peaceful},
	{"relax", Peaceful},
	{"contemplative", Peaceful},
	{"reflective", Peaceful},
	{"dark", Ominous},
	{"foreboding", Ominous},
	{"sinister", Ominous},
	{"eerie", Ominous},
	{"horror", Ominous},
	{"dread", Ominous},
	{"gloomy", Ominous},
	{"scary", Tense},
	{"fear", Tense},
	{"anxious", Tense},
	{"dramatic", Tense},
	{"intense", Tense},
	{"urgent", Tense},
	{"action", Suspenseful},
	{"epic", Suspenseful},
	{"thriller", Suspenseful},
	{"suspense", Suspenseful},
	{"mystery", Suspenseful},
	{"adventur", Suspenseful},
	{"playful", Whimsical},
	{"funny", Whimsical},
	{"humor", Whimsical},
	{"humour", Whimsical},
	{"quirky", Whimsical},
	{"lighthearted", Whimsical},
	{"light-hearted", Whimsical},
	{"cozy", Whimsical},
}

// Valid reports whether m is a member of the vocabulary.
func (m Mood) Valid() bool {
	for _, v := range Vocabulary {
		if m == v {
			return true
		}
	}
	return false
}

func (m Mood) String() string {
	return string(m)
}

// Normalize maps any label onto the vocabulary. Exact matches win, then the
// vocabulary word or synonym that appears earliest in the label; anything else is Neutral.
func Normalize(raw string) Mood {
	label := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if label == "" {
		return Neutral
	}
	if m := Mood(label); m.Valid() {
		return m
	}

	best := Neutral
	bestPos := -1
	consider := func(word string, m Mood) {
		pos := indexWordPrefix(label, word)
		if pos < 0 {
			return
		}
		if bestPos < 0 || pos < bestPos {
			best, bestPos = m, pos
		}
	}
	for _, v := range Vocabulary {
		if v != Neutral {
			consider(string(v), v)
		}
	}
	for _, syn := range synonyms {
		consider(syn.word, syn.mood)
	}
	return best
}

// indexWordPrefix finds word at the start of a word in s, so "sad" matches
// "sadness" but not "crusade".
func indexWordPrefix(s, word string) int {
	from := 0
	for {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return -1
		}
		pos := from + i
		prev, _ := utf8.DecodeLastRuneInString(s[:pos])
		if pos == 0 || !unicode.IsLetter(prev) {
			return pos
		}
		from = pos + 1
	}
}
