package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/resilience"
	"github.com/sells-group/lodging-research/pkg/jina"
)

// Self-declared fields read straight off the entity's own page carry high
// confidence, discounted for possible staleness.
const webpageConfidence = 0.8

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`[+(]?\d[\d\s().\-]{7,}\d`)
	// Matches "check-in: 3 PM", "check in from 15:00" and similar.
	checkInRe  = regexp.MustCompile(`(?i)check[\s-]?in\b[^0-9]{0,20}(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)
	checkOutRe = regexp.MustCompile(`(?i)check[\s-]?out\b[^0-9]{0,20}(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)
)

// amenityTerms are scanned as whole words against the page text.
var amenityTerms = []string{
	"WiFi", "Pool", "Parking", "Breakfast", "Gym", "Spa", "Restaurant",
	"Bar", "Air Conditioning", "Pet Friendly", "Laundry", "Airport Shuttle",
}

// WebpageAdapter fetches the entity's own public page via a reader service
// and extracts self-declared fields deterministically. Authoritative for
// what the business says about itself; absent or stale pages degrade it.
type WebpageAdapter struct {
	client jina.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewWebpageAdapter creates the page retrieval adapter.
func NewWebpageAdapter(client jina.Client) *WebpageAdapter {
	return &WebpageAdapter{
		client: client,
		retry:  resilience.DefaultRetryConfig(),
		now:    time.Now,
	}
}

// WithNow injects a clock for testing.
func (a *WebpageAdapter) WithNow(now func() time.Time) *WebpageAdapter {
	a.now = now
	return a
}

func (a *WebpageAdapter) ID() string { return SourceWebpage }

func (a *WebpageAdapter) Kinds() []model.EntityKind {
	return []model.EntityKind{model.EntityLodging}
}

func (a *WebpageAdapter) Fetch(ctx context.Context, ident model.Identity) ([]model.FieldCandidate, error) {
	if ident.WebsiteURL == "" {
		return nil, ErrNotApplicable
	}

	resp, err := resilience.Do(ctx, a.retry, SourceWebpage, func(ctx context.Context) (*jina.ReadResponse, error) {
		return a.client.Read(ctx, ident.WebsiteURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "webpage: read page")
	}

	content := resp.Data.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	observed := a.now().UTC()
	candidate := func(field string, value any) model.FieldCandidate {
		return model.FieldCandidate{
			Field:         field,
			Value:         value,
			SourceID:      SourceWebpage,
			RawConfidence: webpageConfidence,
			ObservedAt:    observed,
		}
	}

	out := []model.FieldCandidate{
		candidate("website", ident.WebsiteURL),
	}

	if email := emailRe.FindString(content); email != "" {
		out = append(out, candidate("email", email))
	}
	if phone := extractPhone(content); phone != "" {
		out = append(out, candidate("phone", phone))
	}
	if m := checkInRe.FindStringSubmatch(content); m != nil {
		out = append(out, candidate("check_in_time", strings.TrimSpace(m[1])))
	}
	if m := checkOutRe.FindStringSubmatch(content); m != nil {
		out = append(out, candidate("check_out_time", strings.TrimSpace(m[1])))
	}
	if amenities := scanAmenities(content); len(amenities) > 0 {
		out = append(out, candidate("amenities", amenities))
	}
	if desc := leadingParagraph(content); desc != "" {
		out = append(out, candidate("description", desc))
	}

	return out, nil
}

// extractPhone returns the first plausible phone match, filtering out
// number runs that are too long to be phone numbers (prices, IDs).
func extractPhone(content string) string {
	for _, m := range phoneRe.FindAllString(content, 5) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 7 && digits <= 15 {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func scanAmenities(content string) []string {
	lower := strings.ToLower(content)
	var found []string
	for _, term := range amenityTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			found = append(found, term)
		}
	}
	return found
}

// leadingParagraph returns the first prose paragraph of reasonable length,
// skipping markdown headings and navigation stubs.
func leadingParagraph(content string) string {
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") || strings.HasPrefix(para, "[") {
			continue
		}
		if len(para) >= 80 {
			if len(para) > 1200 {
				para = para[:1200]
			}
			return para
		}
	}
	return ""
}
