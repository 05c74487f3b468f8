package mood

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxExplanationRunes = 320

// ErrUnparseable is returned when no mood label can be found in a model response.
var ErrUnparseable = errors.New("no mood label in model output")

var (
	looseMoodRe        = regexp.MustCompile(`(?i)"(?:mood|label)"\s*:\s*"([^"]+)"`)
	looseExplanationRe = regexp.MustCompile(`(?i)"(?:explanation|reason)"\s*:\s*"([^"]*)`)
)

// Classification is the structured result of classifying a chapter.
// RawLabel keeps what the model said before normalization.
type Classification struct {
	Mood        Mood   `json:"mood"`
	Explanation string `json:"explanation"`
	RawLabel    string `json:"-"`
}

type rawClassification struct {
	Mood        string `json:"mood"`
	Label       string `json:"label"`
	Explanation string `json:"explanation"`
	Reason      string `json:"reason"`
}

// ParseClassification turns free-form model output into a Classification.
// It accepts a JSON object (optionally fenced or surrounded by prose),
// "Mood: x" / "Explanation: y" lines, or a bare label. The mood is always
// normalized into the vocabulary and the explanation is never empty.
func ParseClassification(raw string) (Classification, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return Classification{}, fmt.Errorf("empty model output: %w", ErrUnparseable)
	}

	label, explanation := parseJSON(text)
	if label == "" {
		label, explanation = parseLooseJSON(text)
	}
	if label == "" {
		label, explanation = parseLines(text)
	}
	if label == "" && isBareLabel(text) {
		label = text
	}
	if strings.TrimSpace(label) == "" {
		return Classification{}, fmt.Errorf("%w: %q", ErrUnparseable, truncateRunes(text, 80))
	}

	m := Normalize(label)
	explanation = clipExplanation(explanation)
	if explanation == "" {
		explanation = DefaultExplanation(m)
	}
	return Classification{
		Mood:        m,
		Explanation: explanation,
		RawLabel:    strings.TrimSpace(label),
	}, nil
}

// DefaultExplanation is used when the model gave a label but no reason.
func DefaultExplanation(m Mood) string {
	if m == Neutral {
		return "The chapter's tone is even and understated, so a neutral ambient backdrop suits it."
	}
	return fmt.Sprintf("The chapter's atmosphere reads as %s, so a %s ambient soundscape suits it.", m, m)
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the info string, e.g. ```json
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func parseJSON(s string) (string, string) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", ""
	}
	var parsed rawClassification
	if err := json.Unmarshal([]byte(s[start:end+1]), &parsed); err != nil {
		return "", ""
	}
	label := firstNonEmpty(parsed.Mood, parsed.Label)
	return label, firstNonEmpty(parsed.Explanation, parsed.Reason)
}

// parseLooseJSON recovers fields from JSON the model cut off or garbled.
func parseLooseJSON(s string) (string, string) {
	m := looseMoodRe.FindStringSubmatch(s)
	if m == nil {
		return "", ""
	}
	var explanation string
	if e := looseExplanationRe.FindStringSubmatch(s); e != nil {
		explanation = e[1]
	}
	return m[1], explanation
}

func parseLines(s string) (string, string) {
	var label, explanation string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "*-#> ")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), `*"'`))
		switch strings.ToLower(strings.Trim(key, "* ")) {
		case "mood", "label":
			if label == "" {
				label = value
			}
		case "explanation", "reason", "why":
			if explanation == "" {
				explanation = value
			}
		}
	}
	return label, explanation
}

// isBareLabel accepts short replies such as "Tense." or "mysterious".
func isBareLabel(s string) bool {
	return !strings.Contains(s, "\n") && len(strings.Fields(s)) <= 3 && utf8.RuneCountInString(s) <= 40
}

// clipExplanation collapses whitespace and keeps at most two sentences.
func clipExplanation(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	sentences := 0
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + 1
		if next < len(s) && s[next] != ' ' {
			continue
		}
		sentences++
		if sentences == 2 {
			s = s[:next]
			break
		}
	}
	return truncateRunes(s, maxExplanationRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
