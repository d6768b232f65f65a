// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/fableboard/internal/models"
)

type cardFixture struct {
	ID      string          `validate:"required"`
	BoardID string          `validate:"required"`
	Type    models.CardType `validate:"required,cardtype"`
	Title   string          `validate:"omitempty,max=10"`
}

func TestValidateStructCustomValidators(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{
			name:  "valid card",
			input: &cardFixture{ID: "c1", BoardID: "b1", Type: models.CardTypeNote},
		},
		{
			name:      "missing id",
			input:     &cardFixture{BoardID: "b1", Type: models.CardTypeNote},
			wantField: "ID",
			wantTag:   "required",
		},
		{
			name:      "unknown card type",
			input:     &cardFixture{ID: "c1", BoardID: "b1", Type: "widget"},
			wantField: "Type",
			wantTag:   "cardtype",
		},
		{
			name:      "title too long",
			input:     &cardFixture{ID: "c1", BoardID: "b1", Type: models.CardTypePlot, Title: "this title is far too long"},
			wantField: "Title",
			wantTag:   "max",
		},
		{
			name: "invalid role",
			input: &struct {
				Role models.Role `validate:"required,boardrole"`
			}{Role: "admin"},
			wantField: "Role",
			wantTag:   "boardrole",
		},
		{
			name: "valid connection type",
			input: &struct {
				Type models.ConnectionType `validate:"required,conntype"`
			}{Type: models.ConnectionTypeTimeline},
		},
		{
			name: "invalid connection type",
			input: &struct {
				Type models.ConnectionType `validate:"required,conntype"`
			}{Type: "arrow"},
			wantField: "Type",
			wantTag:   "conntype",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("unexpected validation error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatalf("expected error on field %s, got nil", tt.wantField)
			}
			found := false
			for _, fe := range verr.Errors() {
				if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field=%s tag=%s in %v", tt.wantField, tt.wantTag, verr)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Run("single error has field details", func(t *testing.T) {
		verr := ValidateStruct(&cardFixture{BoardID: "b1", Type: models.CardTypeNote})
		if verr == nil {
			t.Fatal("expected validation error")
		}
		apiErr := verr.ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
		}
		if apiErr.Details["field"] != "ID" {
			t.Errorf("details field = %v, want ID", apiErr.Details["field"])
		}
	})

	t.Run("multiple errors joined", func(t *testing.T) {
		verr := ValidateStruct(&cardFixture{Type: "widget"})
		if verr == nil {
			t.Fatal("expected validation error")
		}
		apiErr := verr.ToAPIError()
		if !strings.Contains(apiErr.Message, ";") {
			t.Errorf("expected joined message, got %q", apiErr.Message)
		}
		if _, ok := apiErr.Details["fields"]; !ok {
			t.Error("expected fields list in details")
		}
	})
}
