package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EntityKind identifies the class of real-world entity being researched.
type EntityKind string

const (
	// EntityLodging covers hotels, inns, B&Bs and similar lodging businesses.
	EntityLodging EntityKind = "lodging"
)

// Identity is the minimal sparse identity a research pass starts from.
type Identity struct {
	Name       string `json:"name"`
	Locality   string `json:"locality"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
	WebsiteURL string `json:"website_url,omitempty"`
}

// Location renders the identity's locality and region as a single search string.
func (i Identity) Location() string {
	if i.Region == "" {
		return i.Locality
	}
	return i.Locality + ", " + i.Region
}

// ResearchRequest is the immutable input to one research invocation.
type ResearchRequest struct {
	EntityKind EntityKind     `json:"entity_kind"`
	Identity   Identity       `json:"identity"`
	Manifest   *FieldManifest `json:"-"`
}

// NewResearchRequest validates the identity and manifest and returns a request.
func NewResearchRequest(kind EntityKind, ident Identity, manifest *FieldManifest) (*ResearchRequest, error) {
	if strings.TrimSpace(ident.Name) == "" {
		return nil, eris.New("model: identity name is required")
	}
	if strings.TrimSpace(ident.Locality) == "" {
		return nil, eris.New("model: identity locality is required")
	}
	if manifest == nil || len(manifest.Specs) == 0 {
		return nil, eris.New("model: field manifest is required")
	}
	return &ResearchRequest{
		EntityKind: kind,
		Identity:   ident,
		Manifest:   manifest,
	}, nil
}
