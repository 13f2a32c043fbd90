// Package defaults fills unresolved defaultable fields after aggregation.
// Only fields the manifest explicitly tags defaultable are ever touched;
// price, legal, and quantity kinds are rejected at manifest load.
package defaults

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lodging-research/internal/aggregate"
	"github.com/sells-group/lodging-research/internal/model"
)

// DefaultConfidenceCap bounds defaulted field confidence strictly below
// RealSourceFloor so a default can never outrank a genuine observation.
const (
	DefaultConfidenceCap = 25
	RealSourceFloor      = 30
)

// Apply fills every unresolved defaultable field in the record, inferred
// strategy first, then standard values. Fields some source answered are
// never overwritten.
func Apply(record *model.ResearchRecord, manifest *model.FieldManifest) error {
	for _, spec := range manifest.Specs {
		if !spec.Defaultable() {
			continue
		}
		if err := ApplyField(record, manifest, spec.Key); err != nil {
			return err
		}
	}
	return nil
}

// ApplyField defaults a single field. Calling it for a field the manifest
// does not tag defaultable is a programming error and reports a manifest
// violation rather than silently inventing data.
func ApplyField(record *model.ResearchRecord, manifest *model.FieldManifest, key string) error {
	spec := manifest.ByKey(key)
	if spec == nil {
		return eris.Wrapf(model.ErrManifestViolation, "defaults: unknown field %q", key)
	}
	if !spec.Defaultable() {
		return eris.Wrapf(model.ErrManifestViolation, "defaults: field %q is not defaultable", key)
	}

	res := record.Fields[key]
	if res == nil {
		res = &model.FieldResult{Field: key}
		record.Fields[key] = res
	}
	if res.ChosenValue != nil {
		return nil
	}

	value, ok := resolve(record, *spec)
	if !ok {
		return nil
	}

	res.ChosenValue = value
	res.ChosenSource = model.SourceDefault
	res.FinalConfidence = DefaultConfidenceCap
	return nil
}

// resolve produces the default value, or false when inference has nothing
// to work from and no standard convention exists.
func resolve(record *model.ResearchRecord, spec model.FieldSpec) (any, bool) {
	if spec.DefaultStrategy == model.DefaultInferred {
		if v, ok := infer(record, spec); ok {
			return v, true
		}
		// Inferred fields may carry a standard value as a fallback.
	}
	if spec.StandardValue == nil {
		return nil, false
	}
	if spec.Kind == model.KindClockTime {
		if s, isStr := spec.StandardValue.(string); isStr {
			if norm, ok := aggregate.NormalizeClockTime(s); ok {
				return norm, true
			}
		}
	}
	return spec.StandardValue, true
}

// infer derives a value from another field of the record, falling back to
// the request identity for country and region.
func infer(record *model.ResearchRecord, spec model.FieldSpec) (any, bool) {
	from := inferenceInput(record, spec.InferFrom)
	if from == "" {
		return nil, false
	}

	switch spec.Kind {
	case model.KindCurrency:
		return currencyFor(from)
	default:
	}

	switch spec.Key {
	case "timezone":
		return timezoneFor(from)
	case "language":
		return languageFor(from)
	}
	return nil, false
}

func inferenceInput(record *model.ResearchRecord, field string) string {
	if res := record.Fields[field]; res != nil {
		if s, ok := res.ChosenValue.(string); ok && s != "" {
			return s
		}
	}
	switch field {
	case "country":
		return record.Identity.Country
	case "region":
		return record.Identity.Region
	}
	return ""
}

var currencyByCountry = map[string]string{
	"us": "USD", "usa": "USD", "united states": "USD",
	"ca": "CAD", "canada": "CAD",
	"mx": "MXN", "mexico": "MXN",
	"gb": "GBP", "uk": "GBP", "united kingdom": "GBP",
	"au": "AUD", "australia": "AUD",
	"jp": "JPY", "japan": "JPY",
	"de": "EUR", "germany": "EUR",
	"fr": "EUR", "france": "EUR",
	"es": "EUR", "spain": "EUR",
	"it": "EUR", "italy": "EUR",
}

func currencyFor(country string) (any, bool) {
	c, ok := currencyByCountry[strings.ToLower(strings.TrimSpace(country))]
	return c, ok
}

// US regions only; lodging outside the US resolves timezone from sources
// or not at all.
var timezoneByRegion = map[string]string{
	"wa": "America/Los_Angeles", "or": "America/Los_Angeles",
	"ca": "America/Los_Angeles", "nv": "America/Los_Angeles",
	"az": "America/Phoenix",
	"mt": "America/Denver", "co": "America/Denver", "ut": "America/Denver",
	"id": "America/Denver", "nm": "America/Denver", "wy": "America/Denver",
	"tx": "America/Chicago", "il": "America/Chicago", "mn": "America/Chicago",
	"wi": "America/Chicago", "mo": "America/Chicago", "la": "America/Chicago",
	"ny": "America/New_York", "fl": "America/New_York", "ma": "America/New_York",
	"pa": "America/New_York", "ga": "America/New_York", "nc": "America/New_York",
	"hi": "Pacific/Honolulu",
	"ak": "America/Anchorage",
}

func timezoneFor(region string) (any, bool) {
	tz, ok := timezoneByRegion[strings.ToLower(strings.TrimSpace(region))]
	return tz, ok
}

var languageByCountry = map[string]string{
	"us": "en", "usa": "en", "united states": "en",
	"ca": "en", "canada": "en",
	"gb": "en", "uk": "en", "united kingdom": "en",
	"au": "en", "australia": "en",
	"mx": "es", "mexico": "es",
	"fr": "fr", "france": "fr",
	"de": "de", "germany": "de",
	"jp": "ja", "japan": "ja",
}

func languageFor(country string) (any, bool) {
	l, ok := languageByCountry[strings.ToLower(strings.TrimSpace(country))]
	return l, ok
}
