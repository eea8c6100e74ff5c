package inference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONPlainObject(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, ExtractJSON(`{"a": 1}`))
}

func TestExtractJSONFenced(t *testing.T) {
	input := "```json\n{\"title\": \"x\"}\n```"
	assert.Equal(t, `{"title": "x"}`, ExtractJSON(input))
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	input := `Sure! Here is the result: {"a": {"b": 2}} Hope that helps.`
	assert.Equal(t, `{"a": {"b": 2}}`, ExtractJSON(input))
}

func TestExtractJSONBracesInStrings(t *testing.T) {
	input := `{"text": "unbalanced } brace and {\"escaped\": true}"}`
	out := ExtractJSON(input)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "text")
}

func TestExtractJSONNoObject(t *testing.T) {
	assert.Equal(t, "no json here", ExtractJSON("no json here"))
}

func TestExtractJSONIncomplete(t *testing.T) {
	input := `{"a": 1`
	assert.Equal(t, input, ExtractJSON(input))
}
