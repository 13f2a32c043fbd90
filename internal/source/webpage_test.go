package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/pkg/jina"
)

type fakeReader struct {
	content string
	err     error
	calls   int
}

func (f *fakeReader) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: f.content}}, nil
}

const samplePage = `# Pine Lodge

Welcome to Pine Lodge, a family-run lakeside retreat in Bend with seventeen rooms, free WiFi, a heated pool, and on-site parking for every guest.

Contact us at stay@pinelodge.example or call (541) 555-0100.

Check-in: 3:00 PM
Check-out: 11:00 AM
`

func TestWebpageAdapterExtractsFields(t *testing.T) {
	reader := &fakeReader{content: samplePage}
	adapter := NewWebpageAdapter(reader).WithNow(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	})

	candidates, err := adapter.Fetch(context.Background(), model.Identity{
		Name:       "Pine Lodge",
		Locality:   "Bend",
		Region:     "OR",
		WebsiteURL: "https://pinelodge.example",
	})
	require.NoError(t, err)

	byField := map[string]any{}
	for _, c := range candidates {
		assert.Equal(t, SourceWebpage, c.SourceID)
		byField[c.Field] = c.Value
	}

	assert.Equal(t, "https://pinelodge.example", byField["website"])
	assert.Equal(t, "stay@pinelodge.example", byField["email"])
	assert.Equal(t, "(541) 555-0100", byField["phone"])
	assert.Equal(t, "3:00 PM", byField["check_in_time"])
	assert.Equal(t, "11:00 AM", byField["check_out_time"])
	assert.Contains(t, byField["amenities"], "WiFi")
	assert.Contains(t, byField["amenities"], "Pool")
	assert.Contains(t, byField["description"], "family-run lakeside retreat")
}

func TestWebpageAdapterNotApplicableWithoutURL(t *testing.T) {
	reader := &fakeReader{content: samplePage}
	adapter := NewWebpageAdapter(reader)

	_, err := adapter.Fetch(context.Background(), model.Identity{Name: "Pine Lodge"})
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.Zero(t, reader.calls)
}

func TestWebpageAdapterEmptyPage(t *testing.T) {
	reader := &fakeReader{content: "   \n"}
	adapter := NewWebpageAdapter(reader)

	candidates, err := adapter.Fetch(context.Background(), model.Identity{
		Name:       "Pine Lodge",
		WebsiteURL: "https://pinelodge.example",
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExtractPhoneSkipsLongDigitRuns(t *testing.T) {
	content := "Order ref 12345678901234567890. Call 541-555-0100 today."
	assert.Equal(t, "541-555-0100", extractPhone(content))
}
