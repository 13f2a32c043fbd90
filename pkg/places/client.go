// Package places provides a client for a Google Places-style business
// directory API: text search plus per-place detail lookup.
package places

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// Client defines the directory lookup operations used by research adapters.
type Client interface {
	// SearchBusiness finds the best directory match for a business name in
	// a locality. Returns nil when nothing matched (not an error).
	SearchBusiness(ctx context.Context, name, location string) (*Place, error)
}

// Place is the directory's view of one business listing.
type Place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	PhoneNumber      string   `json:"formatted_phone_number,omitempty"`
	Website          string   `json:"website,omitempty"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Rating           float64  `json:"rating,omitempty"`
	UserRatingsTotal int      `json:"user_ratings_total,omitempty"`
	Types            []string `json:"types,omitempty"`
	BusinessStatus   string   `json:"business_status,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a directory client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string `json:"place_id"`
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Rating           float64  `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		Types            []string `json:"types"`
		BusinessStatus   string   `json:"business_status"`
	} `json:"results"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		FormattedPhoneNumber string `json:"formatted_phone_number"`
		Website              string `json:"website"`
	} `json:"result"`
}

func (c *httpClient) SearchBusiness(ctx context.Context, name, location string) (*Place, error) {
	params := url.Values{
		"query": {name + " " + location},
		"key":   {c.apiKey},
	}

	var search searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/textsearch/json?"+params.Encode(), &search); err != nil {
		return nil, eris.Wrap(err, "places: text search")
	}
	if search.Status == "ZERO_RESULTS" || len(search.Results) == 0 {
		return nil, nil
	}
	if search.Status != "OK" {
		return nil, eris.Errorf("places: search status %s", search.Status)
	}

	top := search.Results[0]
	place := &Place{
		PlaceID:          top.PlaceID,
		Name:             top.Name,
		FormattedAddress: top.FormattedAddress,
		Latitude:         top.Geometry.Location.Lat,
		Longitude:        top.Geometry.Location.Lng,
		Rating:           top.Rating,
		UserRatingsTotal: top.UserRatingsTotal,
		Types:            top.Types,
		BusinessStatus:   top.BusinessStatus,
	}

	// Phone and website require a detail lookup. A detail failure leaves
	// the sparse search result intact rather than failing the whole call.
	detailParams := url.Values{
		"place_id": {top.PlaceID},
		"fields":   {"formatted_phone_number,website"},
		"key":      {c.apiKey},
	}
	var details detailsResponse
	if err := c.getJSON(ctx, c.baseURL+"/details/json?"+detailParams.Encode(), &details); err == nil && details.Status == "OK" {
		place.PhoneNumber = details.Result.FormattedPhoneNumber
		place.Website = details.Result.Website
	}

	return place, nil
}

func (c *httpClient) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "places: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "places: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "places: unmarshal response")
	}
	return nil
}
