package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

func TestExtractJSON(t *testing.T) {
	schema := DecisionSchema()

	t.Run("first matching object", func(t *testing.T) {
		text := `Sure. {"choice": "42", "justification": "my {source} said so"} and {"choice": "7", "justification": "x"}`
		fields, err := ExtractJSON(text, schema)
		require.NoError(t, err)
		assert.Equal(t, "42", fields["choice"])
		assert.Equal(t, "my {source} said so", fields["justification"])
	})

	t.Run("skips invalid candidates", func(t *testing.T) {
		text := `{"guess": 1} then {"choice": "B", "justification": "late"}`
		fields, err := ExtractJSON(text, schema)
		require.NoError(t, err)
		assert.Equal(t, "B", fields["choice"])
	})

	t.Run("nested candidate", func(t *testing.T) {
		text := `{"answer": {"choice": "A", "justification": "inner"}}`
		fields, err := ExtractJSON(text, schema)
		require.NoError(t, err)
		assert.Equal(t, "A", fields["choice"])
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ExtractJSON(`{"choice": 3, "justification": "n"}`, schema)
		assert.ErrorIs(t, err, ErrNoJSON)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "choice", ve.Field)
	})

	t.Run("no json", func(t *testing.T) {
		_, err := ExtractJSON("I would rather not say {", schema)
		assert.ErrorIs(t, err, ErrNoJSON)
	})
}

func TestParseReply(t *testing.T) {
	r, err := ParseReply(`{"choice": " B ", "justification": "neighbours agree"}`)
	require.NoError(t, err)
	assert.Equal(t, Reply{Choice: "B", Justification: "neighbours agree"}, r)

	_, err = ParseReply(`{"choice": "", "justification": "unsure"}`)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = ParseReply(`{"choice": "A", "justification": "x", "confidence": 0.9}`)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestValidate(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n":    map[string]any{"type": "integer"},
			"tags": map[string]any{"type": "array"},
		},
		"required": []string{"n"},
	}
	assert.NoError(t, Validate(map[string]any{"n": float64(3), "extra": true}, schema))
	assert.Error(t, Validate(map[string]any{"n": 3.5}, schema))
	assert.Error(t, Validate(map[string]any{"tags": []any{}}, schema))
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, `{"choice": str, "justification": str}`, FormatString(DecisionSchema()))
}

func TestRenderer_DefaultTemplate(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	in := core.DecisionInput{
		Agent: 1,
		Round: 2,
		Observations: core.ObservationSet{Agent: 1, Round: 2, Entries: []core.Observation{
			{Neighbor: 0, Observed: true, Choice: "B", Justification: "I was told"},
			{Neighbor: 2},
		}},
		History: []core.Decision{{Round: 0, Choice: "A", Justification: "prior", Status: core.StatusPrior}},
		Params:  map[string]any{"question": "Which technology is better?"},
	}
	text, err := r.Render(NewContext(in, []string{"A", "B"}))
	require.NoError(t, err)

	assert.Contains(t, text, "Question: Which technology is better?")
	assert.Contains(t, text, "Possible answers: A, B")
	assert.Contains(t, text, `You currently believe "A" because "prior".`)
	assert.Contains(t, text, `Neighbour 0 believes "B" because 'I was told'.`)
	assert.NotContains(t, text, "Neighbour 2")
	assert.True(t, strings.HasSuffix(text, `{"choice": str, "justification": str}`))

	again, err := r.Render(NewContext(in, []string{"A", "B"}))
	require.NoError(t, err)
	assert.Equal(t, text, again)
}

func TestRenderer_CustomTemplate(t *testing.T) {
	r, err := NewRenderer(`{{upper (default "none" .Params.topic)}} r{{.Round}}`)
	require.NoError(t, err)
	text, err := r.Render(NewContext(core.DecisionInput{Round: 3}, nil))
	require.NoError(t, err)
	assert.Equal(t, "NONE r3", text)

	_, err = NewRenderer("{{.Broken")
	assert.Error(t, err)
}
