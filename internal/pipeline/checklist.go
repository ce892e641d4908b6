// internal/pipeline/checklist.go

// Package pipeline chains the checklist stages into one call for use outside
// the process engine, for local tooling and for the end-to-end tests. The
// BPMN process runs the same stages through their job handlers.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
	"visabuddy-engine/internal/models"
	buildcontext "visabuddy-engine/internal/workers/checklist/build-context"
	enrichchecklist "visabuddy-engine/internal/workers/checklist/enrich-checklist"
	prioritizechecklist "visabuddy-engine/internal/workers/checklist/prioritize-checklist"
	resolverules "visabuddy-engine/internal/workers/checklist/resolve-rules"
	validatechecklist "visabuddy-engine/internal/workers/checklist/validate-checklist"
)

type Checklist struct {
	buildContext *buildcontext.Handler
	resolveRules *resolverules.Handler
	enrich       *enrichchecklist.Handler
	validate     *validatechecklist.Handler
	prioritize   *prioritizechecklist.Handler
	logger       logger.Logger
}

func NewChecklist(
	buildContext *buildcontext.Handler,
	resolveRules *resolverules.Handler,
	enrich *enrichchecklist.Handler,
	validate *validatechecklist.Handler,
	prioritize *prioritizechecklist.Handler,
	log logger.Logger,
) *Checklist {
	return &Checklist{
		buildContext: buildContext,
		resolveRules: resolveRules,
		enrich:       enrich,
		validate:     validate,
		prioritize:   prioritize,
		logger:       log.WithFields(map[string]interface{}{"component": "checklist-pipeline"}),
	}
}

// Generate runs the full chain. A missing rule set or a dead collaborator
// degrades to the static fallback checklist instead of an error; the caller
// always gets something the applicant can start with.
func (p *Checklist) Generate(ctx context.Context, req *buildcontext.Input) (*models.ChecklistResponse, error) {
	built, err := p.buildContext.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	appCtx := built.CanonicalContext

	resolved, err := p.resolveRules.Execute(ctx, &resolverules.Input{
		ApplicationID:    req.ApplicationID,
		CanonicalContext: appCtx,
	})
	if err != nil {
		if isFallbackTrigger(err) {
			p.logger.Warn("rule resolution unavailable, serving fallback checklist", map[string]interface{}{
				"applicationId": req.ApplicationID,
				"error":         err.Error(),
			})
			return p.fallback(&appCtx), nil
		}
		return nil, fmt.Errorf("resolve rules: %w", err)
	}

	enriched, err := p.enrich.Execute(ctx, &enrichchecklist.Input{
		ApplicationID:    req.ApplicationID,
		CountryCode:      resolved.CountryCode,
		VisaType:         resolved.VisaType,
		RuleSetVersion:   resolved.RuleSetVersion,
		CanonicalContext: appCtx,
		BaseDocuments:    resolved.BaseDocuments,
	})
	if err != nil {
		p.logger.Warn("enrichment unavailable, serving fallback checklist", map[string]interface{}{
			"applicationId": req.ApplicationID,
			"error":         err.Error(),
		})
		return p.fallback(&appCtx), nil
	}

	validated, err := p.validate.Execute(ctx, &validatechecklist.Input{
		ApplicationID:  req.ApplicationID,
		CountryCode:    resolved.CountryCode,
		VisaType:       resolved.VisaType,
		RuleSetVersion: resolved.RuleSetVersion,
		RawDraft:       enriched.RawDraft,
		BaseDocuments:  resolved.BaseDocuments,
	})
	if err != nil {
		p.logger.Warn("draft beyond repair, serving fallback checklist", map[string]interface{}{
			"applicationId": req.ApplicationID,
			"error":         err.Error(),
		})
		return p.fallback(&appCtx), nil
	}

	prioritized, err := p.prioritize.Execute(ctx, &prioritizechecklist.Input{
		ApplicationID:     req.ApplicationID,
		CanonicalContext:  appCtx,
		ChecklistResponse: validated.ChecklistResponse,
	})
	if err != nil {
		return nil, fmt.Errorf("prioritize checklist: %w", err)
	}

	response := prioritized.ChecklistResponse
	if appCtx.Risk.Warning != "" {
		response.Notes = append(response.Notes, appCtx.Risk.Warning)
	}

	metrics.ChecklistsGenerated.WithLabelValues("engine").Inc()
	return &response, nil
}

// isFallbackTrigger reports whether the failure means "no rules exist for
// this destination" rather than a transient fault worth retrying.
func isFallbackTrigger(err error) bool {
	var stdErr *apperrors.StandardError
	if !errors.As(err, &stdErr) {
		return false
	}
	return stdErr.Code == apperrors.ErrCodeRuleSetNotFound
}

type fallbackDocument struct {
	docType string
	group   string
	name    models.LocalizedName
}

var fallbackDocuments = []fallbackDocument{
	{"passport", models.GroupIdentity, models.LocalizedName{En: "Passport", Uz: "Pasport", Ru: "Паспорт"}},
	{"application_form", models.GroupPurpose, models.LocalizedName{En: "Visa application form", Uz: "Viza ariza shakli", Ru: "Анкета на визу"}},
	{"photo", models.GroupIdentity, models.LocalizedName{En: "Passport photo", Uz: "Pasport uchun foto", Ru: "Фотография на паспорт"}},
	{"financial_proof", models.GroupFinancial, models.LocalizedName{En: "Proof of funds", Uz: "Moliyaviy ta'minot hujjati", Ru: "Подтверждение финансовых средств"}},
}

var fallbackStudentDocument = fallbackDocument{
	"acceptance_letter", models.GroupPurpose,
	models.LocalizedName{En: "Acceptance letter", Uz: "Qabul xati", Ru: "Письмо о зачислении"},
}

// fallback is the static checklist served when the engine cannot produce a
// rule-driven one. Deliberately generic and always safe to show.
func (p *Checklist) fallback(appCtx *models.CanonicalContext) *models.ChecklistResponse {
	docs := fallbackDocuments
	if appCtx.Intent.VisaType == "student" {
		docs = append(append([]fallbackDocument{}, docs...), fallbackStudentDocument)
	}

	items := make([]models.ChecklistItem, 0, len(docs))
	for i, doc := range docs {
		items = append(items, models.ChecklistItem{
			ID:                     fmt.Sprintf("item_%s", doc.docType),
			DocumentType:           doc.docType,
			Category:               models.CategoryRequired,
			Required:               true,
			Name:                   doc.name,
			AppliesToThisApplicant: true,
			Group:                  doc.group,
			Priority:               i + 1,
		})
	}

	var notes []string
	if appCtx.Risk.Warning != "" {
		notes = append(notes, appCtx.Risk.Warning)
	}

	metrics.ChecklistsGenerated.WithLabelValues("fallback").Inc()
	return &models.ChecklistResponse{
		Type:        "checklist",
		CountryCode: appCtx.Intent.CountryCode,
		VisaType:    appCtx.Intent.VisaType,
		Source:      "fallback",
		Checklist:   items,
		Notes:       notes,
	}
}
