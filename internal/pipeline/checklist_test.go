// internal/pipeline/checklist_test.go
package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/models"
	buildcontext "visabuddy-engine/internal/workers/checklist/build-context"
	enrichchecklist "visabuddy-engine/internal/workers/checklist/enrich-checklist"
	prioritizechecklist "visabuddy-engine/internal/workers/checklist/prioritize-checklist"
	resolverules "visabuddy-engine/internal/workers/checklist/resolve-rules"
	validatechecklist "visabuddy-engine/internal/workers/checklist/validate-checklist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	ruleSet *models.RuleSet
	err     error
}

func (s *stubResolver) LatestApproved(_ context.Context, _, _ string) (*models.RuleSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ruleSet, nil
}

type stubCollaborator struct {
	respond func(userPrompt string) (string, error)
	calls   int
}

func (s *stubCollaborator) Complete(_ context.Context, _, _, userPrompt string) (string, error) {
	s.calls++
	return s.respond(userPrompt)
}

func testRuleSet() *models.RuleSet {
	return &models.RuleSet{
		ID:          "rs-1",
		CountryCode: "US",
		VisaType:    "tourist",
		Version:     2,
		Approved:    true,
		Documents: []models.RequiredDocumentRule{
			{DocumentType: "passport", Category: models.CategoryRequired, Group: models.GroupIdentity},
			{DocumentType: "bank_statement", Category: models.CategoryRequired, Group: models.GroupFinancial},
		},
	}
}

// draftFor echoes the base set back the way an obedient collaborator would.
func draftFor(ruleSet *models.RuleSet) string {
	items := make([]map[string]interface{}, 0, len(ruleSet.Documents))
	for i, doc := range ruleSet.Documents {
		items = append(items, map[string]interface{}{
			"id":           doc.DocumentType,
			"documentType": doc.DocumentType,
			"category":     string(doc.Category),
			"required":     doc.Required(),
			"name": map[string]string{
				"en": doc.DocumentType, "uz": doc.DocumentType, "ru": doc.DocumentType,
			},
			"appliesToThisApplicant": true,
			"group":                  doc.Group,
			"priority":               i + 1,
		})
	}
	b, _ := json.Marshal(map[string]interface{}{"checklist": items})
	return string(b)
}

func newPipeline(t *testing.T, resolver *stubResolver, collab *stubCollaborator) *Checklist {
	t.Helper()
	log := logger.NewNoOpLogger()

	resolveHandler, err := resolverules.NewHandler(resolverules.LoadConfig(), resolver, log)
	require.NoError(t, err)

	return NewChecklist(
		buildcontext.NewHandler(buildcontext.LoadConfig(), log),
		resolveHandler,
		enrichchecklist.NewHandler(enrichchecklist.LoadConfig(), collab, log),
		validatechecklist.NewHandler(validatechecklist.LoadConfig(), log),
		prioritizechecklist.NewHandler(prioritizechecklist.LoadConfig(), log),
		log,
	)
}

func request() *buildcontext.Input {
	return &buildcontext.Input{
		ApplicationID: "app-1",
		CountryCode:   "US",
		VisaType:      "tourist",
		DurationDays:  14,
		AppLanguage:   "en",
		Questionnaire: map[string]interface{}{
			"employmentStatus": "employed",
			"employmentMonths": float64(30),
			"sponsorType":      "self",
			"bankBalance":      float64(9000),
			"countriesVisited": float64(3),
		},
	}
}

func TestGenerateHappyPath(t *testing.T) {
	ruleSet := testRuleSet()
	resolver := &stubResolver{ruleSet: ruleSet}
	collab := &stubCollaborator{respond: func(string) (string, error) {
		return draftFor(ruleSet), nil
	}}

	p := newPipeline(t, resolver, collab)
	resp, err := p.Generate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "engine", resp.Source)
	assert.Equal(t, "US", resp.CountryCode)
	assert.Equal(t, 2, resp.RuleSetVersion)
	assert.Len(t, resp.Checklist, 2)
	assert.Equal(t, 1, collab.calls)

	// The probability disclaimer rides along with every generated checklist.
	require.NotEmpty(t, resp.Notes)
	assert.Contains(t, resp.Notes[len(resp.Notes)-1], "NOT a guarantee")
}

func TestGenerateFallsBackWhenRuleSetMissing(t *testing.T) {
	resolver := &stubResolver{err: apperrors.NewRuleSetNotFoundError("US", "tourist")}
	collab := &stubCollaborator{respond: func(string) (string, error) {
		t.Fatal("collaborator must not be called without a rule set")
		return "", nil
	}}

	p := newPipeline(t, resolver, collab)
	resp, err := p.Generate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "fallback", resp.Source)
	types := models.DocumentTypes(resp.Checklist)
	assert.True(t, types["passport"])
	assert.True(t, types["application_form"])
	assert.True(t, types["photo"])
	assert.True(t, types["financial_proof"])
	assert.False(t, types["acceptance_letter"])
}

func TestGenerateFallbackAddsAcceptanceLetterForStudents(t *testing.T) {
	resolver := &stubResolver{err: apperrors.NewRuleSetNotFoundError("DE", "student")}
	collab := &stubCollaborator{respond: func(string) (string, error) { return "", nil }}

	p := newPipeline(t, resolver, collab)
	req := request()
	req.CountryCode = "DE"
	req.VisaType = "student"

	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "fallback", resp.Source)
	assert.True(t, models.DocumentTypes(resp.Checklist)["acceptance_letter"])
}

func TestGenerateFallsBackWhenCollaboratorDies(t *testing.T) {
	resolver := &stubResolver{ruleSet: testRuleSet()}
	collab := &stubCollaborator{respond: func(string) (string, error) {
		return "", apperrors.NewEnrichmentFailedError(assert.AnError)
	}}

	p := newPipeline(t, resolver, collab)
	resp, err := p.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Source)
}

func TestGenerateFallsBackWhenDraftBeyondRepair(t *testing.T) {
	resolver := &stubResolver{ruleSet: testRuleSet()}
	collab := &stubCollaborator{respond: func(string) (string, error) {
		return "I refuse to answer in JSON today.", nil
	}}

	p := newPipeline(t, resolver, collab)
	resp, err := p.Generate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Source)
}

// Drifted collaborator output is repaired, not discarded: the engine answer
// still contains exactly the base documents.
func TestGenerateRepairsDriftedDraft(t *testing.T) {
	ruleSet := testRuleSet()
	resolver := &stubResolver{ruleSet: ruleSet}
	collab := &stubCollaborator{respond: func(string) (string, error) {
		drifted := draftFor(&models.RuleSet{Documents: []models.RequiredDocumentRule{
			{DocumentType: "passport", Category: models.CategoryRequired, Group: models.GroupIdentity},
			{DocumentType: "hotel_booking", Category: models.CategoryOptional, Group: models.GroupTravel},
		}})
		return drifted, nil
	}}

	p := newPipeline(t, resolver, collab)
	resp, err := p.Generate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, "engine", resp.Source)
	types := models.DocumentTypes(resp.Checklist)
	assert.True(t, types["passport"])
	assert.True(t, types["bank_statement"])
	assert.False(t, types["hotel_booking"])
}
