package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/resilience"
	"github.com/sells-group/lodging-research/pkg/perplexity"
)

// narrativeBaseConfidence applies to fields the model did not self-rate.
// Web-grounded research is broad but noisier than a directory lookup.
const narrativeBaseConfidence = 0.6

// NarrativeAdapter wraps the Perplexity web-grounded research service.
// Broad coverage, lower per-field reliability; answers arrive as JSON that
// must be field-extracted.
type NarrativeAdapter struct {
	client perplexity.Client
	model  string
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewNarrativeAdapter creates the Perplexity-backed adapter.
func NewNarrativeAdapter(client perplexity.Client, modelName string) *NarrativeAdapter {
	return &NarrativeAdapter{
		client: client,
		model:  modelName,
		retry:  resilience.DefaultRetryConfig(),
		now:    time.Now,
	}
}

// WithNow injects a clock for testing.
func (a *NarrativeAdapter) WithNow(now func() time.Time) *NarrativeAdapter {
	a.now = now
	return a
}

func (a *NarrativeAdapter) ID() string { return SourcePerplexity }

func (a *NarrativeAdapter) Kinds() []model.EntityKind {
	return []model.EntityKind{model.EntityLodging}
}

func (a *NarrativeAdapter) Fetch(ctx context.Context, ident model.Identity) ([]model.FieldCandidate, error) {
	temp := 0.1
	maxTokens := 2000
	req := perplexity.ChatCompletionRequest{
		Model: a.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: "You are a lodging research assistant. Answer with accurate, verifiable data in JSON only."},
			{Role: "user", Content: researchPrompt(ident)},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}

	resp, err := resilience.Do(ctx, a.retry, SourcePerplexity, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return a.client.ChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "narrative: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("narrative: empty completion")
	}

	candidates, err := parseNarrativeJSON(resp.Choices[0].Message.Content, SourcePerplexity, narrativeBaseConfidence, a.now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "narrative: parse answer")
	}

	zap.L().Debug("narrative: research complete",
		zap.String("entity", ident.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int("citations", len(resp.Citations)),
	)

	return candidates, nil
}
