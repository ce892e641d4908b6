// internal/workers/checklist/validate-checklist/repair_test.go
package validatechecklist

import (
	"encoding/json"
	"fmt"
	"testing"

	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/validation"
	"visabuddy-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSet() []models.BaseDocumentEntry {
	return []models.BaseDocumentEntry{
		{DocumentType: "passport", Category: models.CategoryRequired, Required: true, Group: models.GroupIdentity},
		{DocumentType: "bank_statement", Category: models.CategoryRequired, Required: true, Group: models.GroupFinancial},
		{DocumentType: "employment_letter", Category: models.CategoryHighlyRecommended, Required: false, Group: models.GroupEmployment},
	}
}

func fullItem(docType string, category models.DocumentCategory, required bool, group string, priority int) map[string]interface{} {
	return map[string]interface{}{
		"id":           "item_" + docType,
		"documentType": docType,
		"category":     string(category),
		"required":     required,
		"name": map[string]string{
			"en": "Name " + docType,
			"uz": "Nom " + docType,
			"ru": "Имя " + docType,
		},
		"description":            "Bring the original " + docType + ".",
		"appliesToThisApplicant": true,
		"group":                  group,
		"priority":               priority,
	}
}

func cleanDraft() string {
	draft := map[string]interface{}{
		"checklist": []map[string]interface{}{
			fullItem("passport", models.CategoryRequired, true, models.GroupIdentity, 1),
			fullItem("bank_statement", models.CategoryRequired, true, models.GroupFinancial, 2),
			fullItem("employment_letter", models.CategoryHighlyRecommended, false, models.GroupEmployment, 3),
		},
		"notes": "Start with the passport.",
	}
	b, _ := json.Marshal(draft)
	return string(b)
}

func documentTypesInOrder(items []models.ChecklistItem) []string {
	types := make([]string, 0, len(items))
	for _, item := range items {
		types = append(types, item.DocumentType)
	}
	return types
}

func TestRepairCleanDraftIsParsed(t *testing.T) {
	result, err := Repair(cleanDraft(), baseSet())
	require.NoError(t, err)

	assert.Equal(t, OutcomeParsed, result.Outcome)
	assert.Equal(t, validation.MethodDirect, result.ExtractionMethod)
	assert.Zero(t, result.Dropped)
	assert.Zero(t, result.Synthesized)
	assert.False(t, result.Coerced)
	assert.Equal(t, []string{"passport", "bank_statement", "employment_letter"}, documentTypesInOrder(result.Items))
	assert.Equal(t, "Start with the passport.", result.Notes)
}

func TestRepairFencedDraftIsRepaired(t *testing.T) {
	raw := "Here is your checklist:\n```json\n" + cleanDraft() + "\n```\nGood luck!"

	result, err := Repair(raw, baseSet())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRepaired, result.Outcome)
	assert.Equal(t, validation.MethodFencedJSON, result.ExtractionMethod)
	assert.Equal(t, []string{"passport", "bank_statement", "employment_letter"}, documentTypesInOrder(result.Items))
}

// A drifted draft loses one base document and invents another. The repaired
// checklist must contain exactly the base set again.
func TestRepairReconcilesSetDrift(t *testing.T) {
	draft := map[string]interface{}{
		"checklist": []map[string]interface{}{
			fullItem("passport", models.CategoryRequired, true, models.GroupIdentity, 1),
			fullItem("bank_statement", models.CategoryRequired, true, models.GroupFinancial, 2),
			fullItem("travel_insurance", models.CategoryRequired, true, models.GroupTravel, 3),
		},
	}
	b, _ := json.Marshal(draft)

	result, err := Repair(string(b), baseSet())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRepaired, result.Outcome)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, 1, result.Synthesized)

	types := models.DocumentTypes(result.Items)
	assert.False(t, types["travel_insurance"])
	assert.True(t, types["employment_letter"])

	last := result.Items[len(result.Items)-1]
	assert.Equal(t, "employment_letter", last.DocumentType)
	assert.True(t, last.Synthesized)
	assert.True(t, last.AppliesToThisApplicant)
	assert.NotEmpty(t, last.Name.En)
	assert.Greater(t, last.Priority, result.Items[len(result.Items)-2].Priority)
}

// Category and required are rule decisions. Whatever the draft claims is
// overwritten from the base set.
func TestRepairRestoresCategoryAndRequired(t *testing.T) {
	draft := map[string]interface{}{
		"checklist": []map[string]interface{}{
			fullItem("passport", models.CategoryOptional, false, models.GroupOther, 1),
			fullItem("bank_statement", models.CategoryRequired, true, models.GroupFinancial, 2),
			fullItem("employment_letter", models.CategoryRequired, true, models.GroupEmployment, 3),
		},
	}
	b, _ := json.Marshal(draft)

	result, err := Repair(string(b), baseSet())
	require.NoError(t, err)

	passport := result.Items[0]
	assert.Equal(t, models.CategoryRequired, passport.Category)
	assert.True(t, passport.Required)
	assert.Equal(t, models.GroupIdentity, passport.Group)

	employment := result.Items[2]
	assert.Equal(t, models.CategoryHighlyRecommended, employment.Category)
	assert.False(t, employment.Required)
}

func TestRepairCoercesRecoverableDefects(t *testing.T) {
	draft := map[string]interface{}{
		"checklist": []map[string]interface{}{
			{
				"documentType": "passport",
				"category":     "mandatory",
				"name":         map[string]string{"en": "Passport"},
			},
			{
				"documentType": "bank_statement",
				"category":     "required",
				"required":     true,
				"name":         map[string]string{"en": "Bank statement"},
				"priority":     2,
			},
			{
				"documentType": "employment_letter",
				"category":     "highly_recommended",
				"required":     false,
				"name":         map[string]string{"en": "Employment letter", "uz": "Ish joyidan ma'lumotnoma", "ru": "Справка с работы"},
				"priority":     3,
			},
		},
	}
	b, _ := json.Marshal(draft)

	result, err := Repair(string(b), baseSet())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRepaired, result.Outcome)
	assert.True(t, result.Coerced)

	passport := result.Items[0]
	assert.NotEmpty(t, passport.ID)
	assert.Equal(t, models.CategoryRequired, passport.Category)
	assert.True(t, passport.AppliesToThisApplicant)
	assert.Equal(t, "Passport", passport.Name.Uz)
	assert.Equal(t, "Passport", passport.Name.Ru)
	assert.GreaterOrEqual(t, passport.Priority, 1)

	employment := result.Items[2]
	assert.Equal(t, "Ish joyidan ma'lumotnoma", employment.Name.Uz)
}

func TestRepairDropsDuplicateDocuments(t *testing.T) {
	draft := map[string]interface{}{
		"checklist": []map[string]interface{}{
			fullItem("passport", models.CategoryRequired, true, models.GroupIdentity, 1),
			fullItem("passport", models.CategoryRequired, true, models.GroupIdentity, 2),
			fullItem("bank_statement", models.CategoryRequired, true, models.GroupFinancial, 3),
			fullItem("employment_letter", models.CategoryHighlyRecommended, false, models.GroupEmployment, 4),
		},
	}
	b, _ := json.Marshal(draft)

	result, err := Repair(string(b), baseSet())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, []string{"passport", "bank_statement", "employment_letter"}, documentTypesInOrder(result.Items))
}

// Repairing an already repaired checklist changes nothing.
func TestRepairIsIdempotent(t *testing.T) {
	first, err := Repair(cleanDraft(), baseSet())
	require.NoError(t, err)

	again, _ := json.Marshal(map[string]interface{}{
		"checklist": first.Items,
		"notes":     first.Notes,
	})

	second, err := Repair(string(again), baseSet())
	require.NoError(t, err)

	assert.Equal(t, OutcomeParsed, second.Outcome)
	assert.Equal(t, first.Items, second.Items)
}

func TestRepairUnparseableDraft(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain refusal", "I am sorry, I cannot help with that."},
		{"empty", ""},
		{"unbalanced braces", `{"checklist": [ {"documentType": "passport"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Repair(tt.raw, baseSet())
			require.Error(t, err)

			var stdErr *apperrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, apperrors.ErrCodeUnparseableResponse, stdErr.Code)
		})
	}
}

func TestRepairSchemaInvalidBeyondRepair(t *testing.T) {
	// Valid JSON, but the checklist is not an array. That is a shape defect
	// the re-typing rules do not touch.
	raw := `{"checklist": "not an array"}`

	_, err := Repair(raw, baseSet())
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeSchemaInvalid, stdErr.Code)
}

// Mistyped scalars are well-typedness defects. They must reach the coercion
// pass instead of failing as unparseable.
func TestRepairRetypesMistypedScalars(t *testing.T) {
	raw := `{"checklist": [{
		"documentType": "passport",
		"category": "required",
		"required": "true",
		"name": "Passport",
		"appliesToThisApplicant": "yes",
		"priority": "1"
	}]}`

	result, err := Repair(raw, baseSet())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRepaired, result.Outcome)
	assert.True(t, result.Coerced)

	passport := result.Items[0]
	assert.Equal(t, "passport", passport.DocumentType)
	assert.True(t, passport.Required)
	assert.True(t, passport.AppliesToThisApplicant)
	assert.Equal(t, 1, passport.Priority)
	assert.Equal(t, "Passport", passport.Name.En)
	assert.Equal(t, "Passport", passport.Name.Uz)
}

// A repaired checklist re-validates against the same schema the draft was
// held to, so absent optional fields must be omitted rather than serialized
// as null.
func TestRepairedItemsRevalidateWithoutOptionalFields(t *testing.T) {
	result, err := Repair(cleanDraft(), baseSet())
	require.NoError(t, err)

	for _, item := range result.Items {
		assert.Nil(t, item.DependsOn)
		assert.Nil(t, item.Reasoning)
	}

	b, err := json.Marshal(draftResponse{Checklist: toDraftItems(result.Items), Notes: result.Notes})
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"dependsOn":null`)
	assert.NotContains(t, string(b), `"reasoning":null`)
	require.NoError(t, validateDraftSchema(string(b)))
}

func TestRepairEmptyChecklistWithEmptyBase(t *testing.T) {
	result, err := Repair(`{"checklist": []}`, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeParsed, result.Outcome)
	assert.Empty(t, result.Items)
}

func TestHumanizeDocumentType(t *testing.T) {
	assert.Equal(t, "Bank Statement", humanizeDocumentType("bank_statement"))
	assert.Equal(t, "Passport", humanizeDocumentType("passport"))
	assert.Equal(t, "Proof Of Funds", humanizeDocumentType("proof-of-funds"))
}

func TestRepairManyMissingDocumentsSynthesizedInBaseOrder(t *testing.T) {
	base := baseSet()
	for i := 0; i < 3; i++ {
		base = append(base, models.BaseDocumentEntry{
			DocumentType: fmt.Sprintf("extra_doc_%d", i),
			Category:     models.CategoryOptional,
			Group:        models.GroupOther,
		})
	}

	draft := map[string]interface{}{
		"checklist": []map[string]interface{}{
			fullItem("passport", models.CategoryRequired, true, models.GroupIdentity, 1),
		},
	}
	b, _ := json.Marshal(draft)

	result, err := Repair(string(b), base)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Synthesized)
	assert.Equal(t, []string{"passport", "bank_statement", "employment_letter", "extra_doc_0", "extra_doc_1", "extra_doc_2"},
		documentTypesInOrder(result.Items))
}
