package source

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sells-group/lodging-research/internal/model"
)

// cleanJSON strips markdown code fences and surrounding prose from LLM
// output, leaving the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
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

// narrativeFields is the JSON shape both LLM research adapters are
// prompted to produce. Unknown fields come back as null and are skipped.
var narrativeFields = []string{
	"name",
	"address",
	"phone",
	"website",
	"email",
	"description",
	"amenities",
	"room_count",
	"check_in_time",
	"check_out_time",
}

// parseNarrativeJSON converts an LLM JSON answer into field candidates.
// Per-field confidence comes from the response's "confidence" object when
// present, falling back to baseConfidence.
func parseNarrativeJSON(text, sourceID string, baseConfidence float64, observedAt time.Time) ([]model.FieldCandidate, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, err
	}

	confs, _ := raw["confidence"].(map[string]any)

	var out []model.FieldCandidate
	for _, field := range narrativeFields {
		val, ok := raw[field]
		if !ok || val == nil {
			continue
		}
		if s, isStr := val.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}

		conf := baseConfidence
		if c, ok := confs[field]; ok {
			if f, ok := toFloat64(c); ok && f > 0 && f <= 1 {
				conf = f
			}
		}

		out = append(out, model.FieldCandidate{
			Field:         field,
			Value:         val,
			SourceID:      sourceID,
			RawConfidence: conf,
			ObservedAt:    observedAt,
		})
	}
	return out, nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// researchPrompt builds the shared research prompt both LLM adapters use.
func researchPrompt(ident model.Identity) string {
	var b strings.Builder
	b.WriteString("Research the lodging business \"")
	b.WriteString(ident.Name)
	b.WriteString("\" in ")
	b.WriteString(ident.Location())
	b.WriteString(".\n\nRespond with a single JSON object:\n")
	b.WriteString(`{
  "name": "...",
  "address": "...",
  "phone": "...",
  "website": "...",
  "email": "...",
  "description": "...",
  "amenities": ["WiFi", "Pool"],
  "room_count": 17,
  "check_in_time": "15:00",
  "check_out_time": "11:00",
  "confidence": {"address": 0.9, "phone": 0.7}
}`)
	b.WriteString("\n\nUse null for fields you cannot verify. The confidence object rates each non-null field from 0 to 1.")
	return b.String()
}
