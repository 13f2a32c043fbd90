// Package manifest loads field manifests: the per-entity-kind contract of
// which fields a research pass must produce and how each is handled.
package manifest

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lodging-research/internal/model"
)

// Load reads a manifest YAML file and validates it.
func Load(path string) (*model.FieldManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}

	var doc struct {
		Fields []model.FieldSpec `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "manifest: parse %s", path)
	}

	m, err := model.NewFieldManifest(doc.Fields)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: validate %s", path)
	}
	return m, nil
}

// Lodging returns the built-in manifest for lodging entities.
func Lodging() *model.FieldManifest {
	m, err := model.NewFieldManifest([]model.FieldSpec{
		{Key: "name", Kind: model.KindText, Requirement: model.RequirementRequired, Category: "identity", FreshnessWindowDays: 730},
		{Key: "address", Kind: model.KindAddress, Requirement: model.RequirementRequired, Category: "identity", FreshnessWindowDays: 730},
		{Key: "phone", Kind: model.KindPhone, Requirement: model.RequirementRequired, Category: "contact", FreshnessWindowDays: 365},
		{Key: "website", Kind: model.KindURL, Requirement: model.RequirementRequired, Category: "contact", FreshnessWindowDays: 365},
		{Key: "room_count", Kind: model.KindQuantity, Requirement: model.RequirementRequired, Category: "capacity", FreshnessWindowDays: 730},

		{Key: "coords", Kind: model.KindCoords, Requirement: model.RequirementOptional, Category: "identity"},
		{Key: "email", Kind: model.KindEmail, Requirement: model.RequirementOptional, Category: "contact", FreshnessWindowDays: 365},
		{Key: "description", Kind: model.KindText, Requirement: model.RequirementOptional, Category: "marketing", FreshnessWindowDays: 365},
		{Key: "amenities", Kind: model.KindList, Requirement: model.RequirementOptional, Category: "marketing", FreshnessWindowDays: 365},
		{Key: "rating", Kind: model.KindNumber, Requirement: model.RequirementOptional, Category: "marketing", FreshnessWindowDays: 180},
		{Key: "nightly_rate", Kind: model.KindPrice, Requirement: model.RequirementOptional, Category: "pricing", FreshnessWindowDays: 90},

		{
			Key: "check_in_time", Kind: model.KindClockTime,
			Requirement: model.RequirementDefaultable, Category: "policies",
			DefaultStrategy: model.DefaultStandard, StandardValue: "15:00",
		},
		{
			Key: "check_out_time", Kind: model.KindClockTime,
			Requirement: model.RequirementDefaultable, Category: "policies",
			DefaultStrategy: model.DefaultStandard, StandardValue: "11:00",
		},
		{
			Key: "currency", Kind: model.KindCurrency,
			Requirement: model.RequirementDefaultable, Category: "locale",
			DefaultStrategy: model.DefaultInferred, InferFrom: "country",
		},
		{
			Key: "timezone", Kind: model.KindText,
			Requirement: model.RequirementDefaultable, Category: "locale",
			DefaultStrategy: model.DefaultInferred, InferFrom: "region",
		},
		{Key: "country", Kind: model.KindText, Requirement: model.RequirementOptional, Category: "locale"},
	})
	if err != nil {
		// The built-in manifest is validated by tests; reaching this is a
		// build defect, not a runtime condition.
		panic(err)
	}
	return m
}

// ForKind returns the built-in manifest for an entity kind.
func ForKind(kind model.EntityKind) (*model.FieldManifest, error) {
	switch kind {
	case model.EntityLodging:
		return Lodging(), nil
	default:
		return nil, eris.Errorf("manifest: no built-in manifest for entity kind %q", kind)
	}
}
