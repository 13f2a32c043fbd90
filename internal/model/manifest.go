package model

import "github.com/rotisserie/eris"

// FieldKind drives type coercion, equivalence checks and defaulting rules.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindAddress   FieldKind = "address"
	KindPhone     FieldKind = "phone"
	KindURL       FieldKind = "url"
	KindEmail     FieldKind = "email"
	KindNumber    FieldKind = "number"
	KindCoords    FieldKind = "coords"
	KindClockTime FieldKind = "clocktime"
	KindCurrency  FieldKind = "currency" // ISO currency code, locale-inferable
	KindList      FieldKind = "list"

	// Kinds that carry operational or financial consequences. These may
	// never be tagged defaultable in a manifest.
	KindPrice    FieldKind = "price"
	KindLegal    FieldKind = "legal"
	KindQuantity FieldKind = "quantity"
)

// Requirement classifies a manifest field.
type Requirement string

const (
	RequirementRequired    Requirement = "required"
	RequirementOptional    Requirement = "optional"
	RequirementDefaultable Requirement = "defaultable"
)

// DefaultStrategy selects how a defaultable field is filled when no source
// produced a value.
type DefaultStrategy string

const (
	// DefaultInferred derives the value from another already-resolved field
	// (e.g. currency from country).
	DefaultInferred DefaultStrategy = "inferred"
	// DefaultStandard applies a fixed industry convention.
	DefaultStandard DefaultStrategy = "standard"
	DefaultNone     DefaultStrategy = ""
)

// ErrManifestViolation indicates a misconfigured field manifest. It is a
// configuration fault and is surfaced at load time, never during a pass.
var ErrManifestViolation = eris.New("model: manifest violation")

// FieldSpec describes one output field of a research pass.
type FieldSpec struct {
	Key                 string          `json:"key" yaml:"key"`
	Kind                FieldKind       `json:"kind" yaml:"kind"`
	Requirement         Requirement     `json:"requirement" yaml:"requirement"`
	Category            string          `json:"category,omitempty" yaml:"category,omitempty"`
	FreshnessWindowDays int             `json:"freshness_window_days,omitempty" yaml:"freshness_window_days,omitempty"`
	DefaultStrategy     DefaultStrategy `json:"default_strategy,omitempty" yaml:"default_strategy,omitempty"`
	// StandardValue is the fixed convention applied by DefaultStandard.
	StandardValue any `json:"standard_value,omitempty" yaml:"standard_value,omitempty"`
	// InferFrom names the resolved field DefaultInferred derives from.
	InferFrom string `json:"infer_from,omitempty" yaml:"infer_from,omitempty"`
}

// Defaultable reports whether the field may be filled by the default applier.
func (s FieldSpec) Defaultable() bool {
	return s.Requirement == RequirementDefaultable
}

// FieldManifest is the indexed set of output fields for an entity kind.
type FieldManifest struct {
	Specs []FieldSpec

	byKey      map[string]*FieldSpec
	byCategory map[string][]*FieldSpec
	required   []*FieldSpec
}

// neverDefaultable lists kinds excluded from defaulting regardless of tags.
var neverDefaultable = map[FieldKind]bool{
	KindPrice:    true,
	KindLegal:    true,
	KindQuantity: true,
}

// NewFieldManifest indexes the specs and enforces defaulting exclusions.
// A spec that tags a price, legal, or quantity field as defaultable is a
// manifest violation and fails here rather than at research time.
func NewFieldManifest(specs []FieldSpec) (*FieldManifest, error) {
	if len(specs) == 0 {
		return nil, eris.Wrap(ErrManifestViolation, "empty manifest")
	}

	m := &FieldManifest{
		Specs:      specs,
		byKey:      make(map[string]*FieldSpec, len(specs)),
		byCategory: make(map[string][]*FieldSpec),
	}
	for i := range m.Specs {
		s := &m.Specs[i]
		if s.Key == "" {
			return nil, eris.Wrap(ErrManifestViolation, "field spec with empty key")
		}
		if _, dup := m.byKey[s.Key]; dup {
			return nil, eris.Wrapf(ErrManifestViolation, "duplicate field %q", s.Key)
		}
		if s.Defaultable() && neverDefaultable[s.Kind] {
			return nil, eris.Wrapf(ErrManifestViolation, "field %q of kind %s may not be defaultable", s.Key, s.Kind)
		}
		if s.Defaultable() && s.DefaultStrategy == DefaultNone {
			return nil, eris.Wrapf(ErrManifestViolation, "defaultable field %q has no default strategy", s.Key)
		}
		if s.DefaultStrategy == DefaultInferred && s.InferFrom == "" {
			return nil, eris.Wrapf(ErrManifestViolation, "inferred field %q has no infer_from", s.Key)
		}
		m.byKey[s.Key] = s
		if s.Category != "" {
			m.byCategory[s.Category] = append(m.byCategory[s.Category], s)
		}
		if s.Requirement == RequirementRequired {
			m.required = append(m.required, s)
		}
	}
	return m, nil
}

// ByKey returns the spec for a field key, or nil.
func (m *FieldManifest) ByKey(key string) *FieldSpec {
	return m.byKey[key]
}

// ByCategory returns the specs grouped under a category name.
func (m *FieldManifest) ByCategory(category string) []*FieldSpec {
	return m.byCategory[category]
}

// Required returns the required field specs in manifest order.
func (m *FieldManifest) Required() []*FieldSpec {
	return m.required
}

// Keys returns all field keys in manifest order.
func (m *FieldManifest) Keys() []string {
	keys := make([]string, len(m.Specs))
	for i := range m.Specs {
		keys[i] = m.Specs[i].Key
	}
	return keys
}

// Narrow returns a manifest restricted to the given field keys, preserving
// manifest order. Unknown keys are reported as a manifest violation.
func (m *FieldManifest) Narrow(keys []string) (*FieldManifest, error) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if m.byKey[k] == nil {
			return nil, eris.Wrapf(ErrManifestViolation, "unknown field %q", k)
		}
		want[k] = true
	}
	var specs []FieldSpec
	for _, s := range m.Specs {
		if want[s.Key] {
			specs = append(specs, s)
		}
	}
	return NewFieldManifest(specs)
}
