package mood

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/sonomancer/internal/apperr"
	"github.com/MimeLyc/sonomancer/internal/excerpt"
	"github.com/MimeLyc/sonomancer/internal/llm"
)

type mockChatClient struct {
	mock.Mock
}

func (m *mockChatClient) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	args := m.Called(ctx, p.User, p)
	return args.String(0), args.Error(1)
}

var stormy = []excerpt.Excerpt{{
	Text:   "It was a stormy night, thunder cracking over the moors as the riders pressed on toward the old house.",
	Offset: 0,
}}

func TestClassifier_Success(t *testing.T) {
	client := new(mockChatClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "thunder cracking")
	}), mock.MatchedBy(func(p llm.Prompt) bool {
		return p.JSON && strings.Contains(p.System, "whimsical") && p.MaxTokens == 200
	})).Return(`{"mood":"tense","explanation":"A storm and a desperate ride set an anxious pace."}`, nil).Once()

	c := NewClassifier(client, WithRetryDelay(0))
	got, err := c.Classify(context.Background(), stormy)
	require.NoError(t, err)
	assert.Equal(t, Tense, got.Mood)
	assert.Equal(t, "A storm and a desperate ride set an anxious pace.", got.Explanation)
	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestClassifier_RetriesOnceThenSucceeds(t *testing.T) {
	client := new(mockChatClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("upstream 503")).Once()
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(`{"mood":"Sorrowful","explanation":"Loss hangs over every scene."}`, nil).Once()

	c := NewClassifier(client, WithRetryDelay(0))
	got, err := c.Classify(context.Background(), stormy)
	require.NoError(t, err)
	assert.Equal(t, Melancholic, got.Mood)
	client.AssertNumberOfCalls(t, "Complete", 2)
}

func TestClassifier_UnparseableTwiceFails(t *testing.T) {
	client := new(mockChatClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("I would rather not say anything about the mood of this text today.", nil)

	c := NewClassifier(client, WithRetryDelay(0))
	_, err := c.Classify(context.Background(), stormy)
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.ErrClassification))
	assert.ErrorIs(t, err, ErrUnparseable)
	client.AssertNumberOfCalls(t, "Complete", 2)
}

func TestClassifier_NeverMoreThanTwoCalls(t *testing.T) {
	client := new(mockChatClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))

	c := NewClassifier(client, WithRetryDelay(0))
	_, err := c.Classify(context.Background(), stormy)
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Context["attempts"])
	client.AssertNumberOfCalls(t, "Complete", 2)
}

func TestClassifier_TimeoutIsAFailure(t *testing.T) {
	client := new(mockChatClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	c := NewClassifier(client, WithTimeout(20*time.Millisecond), WithRetryDelay(0))
	start := time.Now()
	_, err := c.Classify(context.Background(), stormy)
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.ErrClassification))
	assert.Less(t, time.Since(start), 2*time.Second)
	client.AssertNumberOfCalls(t, "Complete", 2)
}

func TestClassifier_CancelledContextStopsRetry(t *testing.T) {
	client := new(mockChatClient)
	ctx, cancel := context.WithCancel(context.Background())
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", errors.New("boom")).Once()

	c := NewClassifier(client, WithRetryDelay(time.Second))
	_, err := c.Classify(ctx, stormy)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestClassifier_DegenerateInput(t *testing.T) {
	client := new(mockChatClient)
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(`{"mood":"calm"}`, nil).Once()

	c := NewClassifier(client, WithRetryDelay(0))
	got, err := c.Classify(context.Background(), excerpt.NewSampler().Sample("Hello"))
	require.NoError(t, err)
	assert.True(t, got.Mood.Valid())
	assert.NotEmpty(t, got.Explanation)
}

func TestClassifier_BlankTextSkipsModel(t *testing.T) {
	client := new(mockChatClient)

	c := NewClassifier(client)
	got, err := c.Classify(context.Background(), excerpt.NewSampler().Sample("   "))
	require.NoError(t, err)
	assert.Equal(t, Neutral, got.Mood)
	assert.NotEmpty(t, got.Explanation)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuildPrompt_LanguageHint(t *testing.T) {
	text := "It was a stormy night and the thunder was cracking over the lonely moors while everyone in the house slept soundly."
	prompt := BuildPrompt(text)
	assert.True(t, strings.HasSuffix(prompt, text))
	if info := whatlanggo.Detect(text); info.IsReliable() {
		assert.Contains(t, prompt, "written in English")
	}

	assert.True(t, strings.HasPrefix(BuildPrompt("ok"), "Text excerpts"))
}

func TestSystemPrompt_ListsVocabulary(t *testing.T) {
	prompt := SystemPrompt()
	for _, m := range Vocabulary {
		assert.Contains(t, prompt, string(m))
	}
	assert.Contains(t, prompt, `"explanation"`)
}
