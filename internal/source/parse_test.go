package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain object",
			input: `{"name": "Pine Lodge"}`,
			want:  `{"name": "Pine Lodge"}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"name\": \"Pine Lodge\"}\n```",
			want:  `{"name": "Pine Lodge"}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"name\": \"Pine Lodge\"}\n```",
			want:  `{"name": "Pine Lodge"}`,
		},
		{
			name:  "surrounding prose",
			input: "Here is the data:\n{\"name\": \"Pine Lodge\"}\nHope this helps!",
			want:  `{"name": "Pine Lodge"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.input))
		})
	}
}

func TestParseNarrativeJSON(t *testing.T) {
	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	answer := `{
		"name": "Pine Lodge",
		"address": "12 Lakeshore Dr, Bend, OR",
		"phone": "+1 541 555 0100",
		"website": null,
		"email": "",
		"room_count": 17,
		"check_in_time": "15:00",
		"amenities": ["WiFi", "Pool"],
		"confidence": {"address": 0.9, "phone": 0.45}
	}`

	candidates, err := parseNarrativeJSON(answer, SourcePerplexity, 0.6, observed)
	require.NoError(t, err)

	byField := map[string]float64{}
	for _, c := range candidates {
		assert.Equal(t, SourcePerplexity, c.SourceID)
		assert.Equal(t, observed, c.ObservedAt)
		byField[c.Field] = c.RawConfidence
	}

	// Null and empty-string fields are skipped.
	assert.NotContains(t, byField, "website")
	assert.NotContains(t, byField, "email")

	// Self-rated fields use the model's confidence, others the base.
	assert.InDelta(t, 0.9, byField["address"], 1e-9)
	assert.InDelta(t, 0.45, byField["phone"], 1e-9)
	assert.InDelta(t, 0.6, byField["name"], 1e-9)
	assert.InDelta(t, 0.6, byField["room_count"], 1e-9)
}

func TestParseNarrativeJSONInvalid(t *testing.T) {
	_, err := parseNarrativeJSON("not json at all", SourceClaude, 0.5, time.Now())
	assert.Error(t, err)
}

func TestParseNarrativeJSONIgnoresOutOfRangeConfidence(t *testing.T) {
	answer := `{"name": "Pine Lodge", "confidence": {"name": 7}}`
	candidates, err := parseNarrativeJSON(answer, SourceClaude, 0.5, time.Now())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.5, candidates[0].RawConfidence, 1e-9)
}
