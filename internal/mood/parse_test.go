package mood

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification_JSON(t *testing.T) {
	t.Parallel()

	got, err := ParseClassification(`{"mood":"tense","explanation":"Thunder cracks over the moors as the hero flees."}`)
	require.NoError(t, err)
	assert.Equal(t, Tense, got.Mood)
	assert.Equal(t, "Thunder cracks over the moors as the hero flees.", got.Explanation)
	assert.Equal(t, "tense", got.RawLabel)
}

func TestParseClassification_FencedJSONWithProse(t *testing.T) {
	t.Parallel()

	raw := "```json\nHere you go: {\"mood\": \"Mysterious\", \"reason\": \"Fog and whispered legends.\"}\n```"
	got, err := ParseClassification(raw)
	require.NoError(t, err)
	assert.Equal(t, Mystical, got.Mood)
	assert.Equal(t, "Fog and whispered legends.", got.Explanation)
	assert.Equal(t, "Mysterious", got.RawLabel)
}

func TestParseClassification_TruncatedJSON(t *testing.T) {
	t.Parallel()

	got, err := ParseClassification(`{"mood": "ominous", "explanation": "The house waits in silence`)
	require.NoError(t, err)
	assert.Equal(t, Ominous, got.Mood)
	assert.Equal(t, "The house waits in silence", got.Explanation)
}

func TestParseClassification_LineFormat(t *testing.T) {
	t.Parallel()

	got, err := ParseClassification("**Mood:** Peaceful\n**Explanation:** A quiet morning by the lake.")
	require.NoError(t, err)
	assert.Equal(t, Peaceful, got.Mood)
	assert.Equal(t, "A quiet morning by the lake.", got.Explanation)
}

func TestParseClassification_BareLabelGetsDefaultExplanation(t *testing.T) {
	t.Parallel()

	got, err := ParseClassification("Joyful.")
	require.NoError(t, err)
	assert.Equal(t, Joyful, got.Mood)
	assert.Equal(t, DefaultExplanation(Joyful), got.Explanation)
	assert.NotEmpty(t, got.Explanation)
}

func TestParseClassification_OutOfVocabularyFallsBackToNeutral(t *testing.T) {
	t.Parallel()

	got, err := ParseClassification(`{"mood":"bureaucratic","explanation":"Forms and stamps."}`)
	require.NoError(t, err)
	assert.Equal(t, Neutral, got.Mood)
	assert.Equal(t, "bureaucratic", got.RawLabel)
}

func TestParseClassification_ClipsToTwoSentences(t *testing.T) {
	t.Parallel()

	got, err := ParseClassification(`{"mood":"tense","explanation":"One.  Two!\nThree? Four."}`)
	require.NoError(t, err)
	assert.Equal(t, "One. Two!", got.Explanation)

	long := strings.Repeat("word ", 200)
	got, err = ParseClassification(`{"mood":"tense","explanation":"` + long + `"}`)
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(got.Explanation), maxExplanationRunes)
}

func TestParseClassification_Failures(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"   ",
		"```\n```",
		"I am unable to determine the atmosphere of these passages with any confidence at all.",
	} {
		_, err := ParseClassification(raw)
		require.Error(t, err, "input %q", raw)
		assert.ErrorIs(t, err, ErrUnparseable)
	}
}
