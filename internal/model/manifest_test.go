package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpecs() []FieldSpec {
	return []FieldSpec{
		{Key: "name", Kind: KindText, Requirement: RequirementRequired, Category: "identity"},
		{Key: "phone", Kind: KindPhone, Requirement: RequirementRequired, Category: "contact"},
		{Key: "email", Kind: KindEmail, Requirement: RequirementOptional, Category: "contact"},
		{
			Key: "check_in_time", Kind: KindClockTime, Requirement: RequirementDefaultable,
			Category: "policies", DefaultStrategy: DefaultStandard, StandardValue: "15:00",
		},
	}
}

func TestNewFieldManifestIndexes(t *testing.T) {
	m, err := NewFieldManifest(testSpecs())
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "phone", "email", "check_in_time"}, m.Keys())
	require.Len(t, m.Required(), 2)
	assert.Equal(t, "name", m.Required()[0].Key)

	contact := m.ByCategory("contact")
	require.Len(t, contact, 2)
	assert.Equal(t, "phone", contact[0].Key)

	assert.Nil(t, m.ByKey("wine_list"))
}

func TestNewFieldManifestViolations(t *testing.T) {
	tests := []struct {
		name  string
		specs []FieldSpec
	}{
		{"empty manifest", nil},
		{"empty key", []FieldSpec{{Kind: KindText, Requirement: RequirementRequired}}},
		{"duplicate key", []FieldSpec{
			{Key: "name", Kind: KindText, Requirement: RequirementRequired},
			{Key: "name", Kind: KindText, Requirement: RequirementOptional},
		}},
		{"defaultable price", []FieldSpec{{
			Key: "nightly_rate", Kind: KindPrice, Requirement: RequirementDefaultable,
			DefaultStrategy: DefaultStandard, StandardValue: 99,
		}}},
		{"defaultable quantity", []FieldSpec{{
			Key: "room_count", Kind: KindQuantity, Requirement: RequirementDefaultable,
			DefaultStrategy: DefaultStandard, StandardValue: 10,
		}}},
		{"defaultable without strategy", []FieldSpec{{
			Key: "check_in_time", Kind: KindClockTime, Requirement: RequirementDefaultable,
		}}},
		{"inferred without source field", []FieldSpec{{
			Key: "currency", Kind: KindCurrency, Requirement: RequirementDefaultable,
			DefaultStrategy: DefaultInferred,
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFieldManifest(tt.specs)
			assert.ErrorIs(t, err, ErrManifestViolation)
		})
	}
}

func TestNarrow(t *testing.T) {
	m, err := NewFieldManifest(testSpecs())
	require.NoError(t, err)

	// Narrowing preserves manifest order regardless of argument order.
	narrowed, err := m.Narrow([]string{"email", "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, narrowed.Keys())
	assert.Len(t, narrowed.Required(), 1)

	_, err = m.Narrow([]string{"wine_list"})
	assert.ErrorIs(t, err, ErrManifestViolation)
}
