package fetcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	doc, err := ParseJSON("https://x", []byte(`{"data":{"nodes":[{"name":"a"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Get("data.nodes.0.name").String())
	assert.False(t, doc.Get("data.missing").Exists())
}

func TestParseJSON_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     "",
		"truncated": `{"data":`,
		"html":      "<html>blocked</html>",
		"array":     `[1,2,3]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON("https://x/api", []byte(body))
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "https://x/api", pe.URL)
		})
	}
}
