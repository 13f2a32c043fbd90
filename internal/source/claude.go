package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/resilience"
	"github.com/sells-group/lodging-research/pkg/anthropic"
)

// Claude answers from model knowledge without live search, so its base
// confidence sits below the web-grounded narrative source.
const claudeBaseConfidence = 0.5

// ClaudeAdapter wraps Anthropic's API as a second narrative research
// source. Its value is cross-source agreement: fields where it and the
// web-grounded source concur earn an agreement bonus at scoring time.
type ClaudeAdapter struct {
	client anthropic.Client
	model  string
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewClaudeAdapter creates the Anthropic-backed adapter.
func NewClaudeAdapter(client anthropic.Client, modelName string) *ClaudeAdapter {
	return &ClaudeAdapter{
		client: client,
		model:  modelName,
		retry:  resilience.DefaultRetryConfig(),
		now:    time.Now,
	}
}

// WithNow injects a clock for testing.
func (a *ClaudeAdapter) WithNow(now func() time.Time) *ClaudeAdapter {
	a.now = now
	return a
}

func (a *ClaudeAdapter) ID() string { return SourceClaude }

func (a *ClaudeAdapter) Kinds() []model.EntityKind {
	return []model.EntityKind{model.EntityLodging}
}

func (a *ClaudeAdapter) Fetch(ctx context.Context, ident model.Identity) ([]model.FieldCandidate, error) {
	temp := 0.1
	req := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   2000,
		System:      "You are a lodging research assistant. Answer with accurate, verifiable data in JSON only. Never invent room counts or contact details.",
		Messages:    []anthropic.Message{{Role: "user", Content: researchPrompt(ident)}},
		Temperature: &temp,
	}

	resp, err := resilience.Do(ctx, a.retry, SourceClaude, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "claude: create message")
	}

	candidates, err := parseNarrativeJSON(resp.Text(), SourceClaude, claudeBaseConfidence, a.now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "claude: parse answer")
	}

	return candidates, nil
}
