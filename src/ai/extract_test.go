package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONDirect(t *testing.T) {
	raw, err := ExtractJSON(`  {"risk_profile":"moderado","score":70}  `)
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk_profile":"moderado","score":70}`, raw)
}

func TestExtractJSONFencedBlock(t *testing.T) {
	input := "Aquí está el análisis:\n```json\n{\"score\": 42}\n```\nEspero que ayude."
	raw, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":42}`, raw)
}

func TestExtractJSONFencedBlockWithoutLanguageTag(t *testing.T) {
	input := "```\n{\"a\":1}\n```"
	raw, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, raw)
}

func TestExtractJSONBalancedObjectInProse(t *testing.T) {
	input := `Claro, el resultado es {"nested": {"deep": true}, "note": "a } inside a string"} y nada más.`
	raw, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nested":{"deep":true},"note":"a } inside a string"}`, raw)
}

func TestExtractJSONEscapedQuoteInString(t *testing.T) {
	input := `prefix {"text": "say \"hi\" {today}"} suffix`
	raw, err := ExtractJSON(input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"say \"hi\" {today}"}`, raw)
}

func TestExtractJSONNothingFound(t *testing.T) {
	for _, input := range []string{
		"",
		"no structured data here",
		"{broken",
		"```json\nnot json\n```",
	} {
		_, err := ExtractJSON(input)
		assert.ErrorIs(t, err, ErrNoJSONFound, "input: %q", input)
	}
}

func TestUnmarshalLoose(t *testing.T) {
	var out struct {
		Score int `json:"score"`
	}
	err := UnmarshalLoose("some prose ```json\n{\"score\": 9}\n``` more prose", &out)
	require.NoError(t, err)
	assert.Equal(t, 9, out.Score)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "hola", StripFences("```\nhola\n```"))
	assert.Equal(t, "plain answer", StripFences("  plain answer  "))
	assert.Equal(t, "{not json", StripFences("```json\n{not json\n```"))
}
