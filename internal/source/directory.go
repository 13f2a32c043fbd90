package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/resilience"
	"github.com/sells-group/lodging-research/pkg/places"
)

// Directory confidence is high for listing identity fields and lower for
// fields owners maintain themselves.
const (
	directoryIdentityConfidence = 0.95
	directoryContactConfidence  = 0.85
)

// DirectoryAdapter wraps a structured business directory. Sparse but
// high-reliability: name, address, phone, website, coordinates, rating.
type DirectoryAdapter struct {
	client  places.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	now     func() time.Time
}

// NewDirectoryAdapter creates the directory adapter. qps bounds request
// rate against the provider; zero means 5 req/s.
func NewDirectoryAdapter(client places.Client, qps float64) *DirectoryAdapter {
	if qps <= 0 {
		qps = 5
	}
	return &DirectoryAdapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(qps), 1),
		retry:   resilience.DefaultRetryConfig(),
		now:     time.Now,
	}
}

// WithNow injects a clock for testing.
func (a *DirectoryAdapter) WithNow(now func() time.Time) *DirectoryAdapter {
	a.now = now
	return a
}

func (a *DirectoryAdapter) ID() string { return SourceDirectory }

func (a *DirectoryAdapter) Kinds() []model.EntityKind {
	return []model.EntityKind{model.EntityLodging}
}

func (a *DirectoryAdapter) Fetch(ctx context.Context, ident model.Identity) ([]model.FieldCandidate, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "directory: rate limit")
	}

	place, err := resilience.Do(ctx, a.retry, SourceDirectory, func(ctx context.Context) (*places.Place, error) {
		return a.client.SearchBusiness(ctx, ident.Name, ident.Location())
	})
	if err != nil {
		return nil, eris.Wrap(err, "directory: search")
	}
	if place == nil {
		// No listing is a valid empty answer, not a provider failure.
		return nil, nil
	}

	observed := a.now().UTC()
	candidate := func(field string, value any, conf float64) model.FieldCandidate {
		return model.FieldCandidate{
			Field:         field,
			Value:         value,
			SourceID:      SourceDirectory,
			RawConfidence: conf,
			ObservedAt:    observed,
		}
	}

	out := []model.FieldCandidate{
		candidate("name", place.Name, directoryIdentityConfidence),
		candidate("address", place.FormattedAddress, directoryIdentityConfidence),
	}
	if place.Latitude != 0 || place.Longitude != 0 {
		out = append(out, candidate("coords", []float64{place.Latitude, place.Longitude}, directoryIdentityConfidence))
	}
	if place.PhoneNumber != "" {
		out = append(out, candidate("phone", place.PhoneNumber, directoryContactConfidence))
	}
	if place.Website != "" {
		out = append(out, candidate("website", place.Website, directoryContactConfidence))
	}
	if place.Rating > 0 {
		out = append(out, candidate("rating", place.Rating, directoryContactConfidence))
	}

	return out, nil
}
