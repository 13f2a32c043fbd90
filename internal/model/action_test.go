package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  ValidationAction
		wantErr bool
	}{
		{"approve field", ValidationAction{Kind: ActionApprove, Field: "name"}, false},
		{"approve without field", ValidationAction{Kind: ActionApprove}, true},
		{"edit with value", ValidationAction{Kind: ActionEdit, Field: "phone", NewValue: "x"}, false},
		{"edit without value", ValidationAction{Kind: ActionEdit, Field: "phone"}, true},
		{"regenerate field", ValidationAction{Kind: ActionRegenerate, Field: "phone"}, false},
		{"regenerate category", ValidationAction{Kind: ActionRegenerate, Category: "contact"}, false},
		{"regenerate neither", ValidationAction{Kind: ActionRegenerate}, true},
		{"regenerate both", ValidationAction{Kind: ActionRegenerate, Field: "phone", Category: "contact"}, true},
		{"skip", ValidationAction{Kind: ActionSkip, Field: "name"}, false},
		{"unknown kind", ValidationAction{Kind: ActionKind("promote"), Field: "name"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
