// Package tagging assigns content and personality tags to stored characters
// with an LLM.
package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/character-scraper/pkg/anthropic"
)

// ErrIneligible is returned for characters missing a name or description.
var ErrIneligible = eris.New("tagging: character must have both name and description")

// Tags is the tagger output for one character.
type Tags struct {
	Content     []string `json:"content_tags" yaml:"content_tags"`
	Personality []string `json:"personality_tags" yaml:"personality_tags"`
}

// Count returns the total number of tags.
func (t *Tags) Count() int { return len(t.Content) + len(t.Personality) }

// Tagger produces tags from a character's name and description.
type Tagger interface {
	Tag(ctx context.Context, name, description string) (*Tags, error)
}

const systemPrompt = `You analyze SFW and NSFW character descriptions and write the tags users would search for to find the character.

Given a character name and description, write about 15 tags:
- about 10 content tags: genre, setting and themes (e.g. "fantasy", "sci-fi", "romance", "modern", "historical")
- about 5 personality tags: traits, attitudes and roles (e.g. "dominant", "shy", "cheerful", "mysterious", "mentor")

Rules:
- lowercase only
- prefer single-word tags; use two words only when one word cannot express it
- be specific; skip redundant or generic tags

Respond with only a JSON object of the form {"content_tags": [...], "personality_tags": [...]}.`

// ClaudeTagger tags characters with an Anthropic model.
type ClaudeTagger struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeTagger creates a ClaudeTagger.
func NewClaudeTagger(client anthropic.Client, model string, maxTokens int64) *ClaudeTagger {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ClaudeTagger{client: client, model: model, maxTokens: maxTokens}
}

// Tag asks the model for tags and parses its JSON answer.
func (c *ClaudeTagger) Tag(ctx context.Context, name, description string) (*Tags, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(description) == "" {
		return nil, ErrIneligible
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt, "5m"),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Character Name: %s\nCharacter Description: %s", name, description),
		}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "tagging: tag %q", name)
	}
	resp.Usage.LogCost(c.model, "tagging")

	var tags Tags
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &tags); err != nil {
		return nil, eris.Wrapf(err, "tagging: parse tags for %q", name)
	}
	tags.Content = cleanTags(tags.Content)
	tags.Personality = cleanTags(tags.Personality)
	return &tags, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
