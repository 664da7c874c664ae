package tagging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/character-scraper/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}

func TestClaudeTagger_Tag(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 256 &&
			len(req.System) == 1 && req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 &&
			req.Messages[0].Content == "Character Name: Mira\nCharacter Description: Keeps the lighthouse."
	})).Return(textResponse("```json\n{\"content_tags\": [\"Fantasy\", \"sea\", \"fantasy\"], \"personality_tags\": [\" Stoic \"]}\n```"), nil)

	tagger := NewClaudeTagger(client, "claude-haiku-4-5-20251001", 256)
	tags, err := tagger.Tag(context.Background(), "Mira", "Keeps the lighthouse.")
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy", "sea"}, tags.Content)
	assert.Equal(t, []string{"stoic"}, tags.Personality)
	assert.Equal(t, 3, tags.Count())
	client.AssertExpectations(t)
}

func TestClaudeTagger_Ineligible(t *testing.T) {
	client := &mockClient{}
	tagger := NewClaudeTagger(client, "m", 0)

	_, err := tagger.Tag(context.Background(), "Mira", "  ")
	assert.ErrorIs(t, err, ErrIneligible)
	_, err = tagger.Tag(context.Background(), "", "desc")
	assert.ErrorIs(t, err, ErrIneligible)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestClaudeTagger_Errors(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I cannot help with that."), nil).Once()

	tagger := NewClaudeTagger(client, "m", 100)

	_, err := tagger.Tag(context.Background(), "A", "B")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")

	_, err = tagger.Tag(context.Background(), "A", "B")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse tags")
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"no object", "nothing", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
