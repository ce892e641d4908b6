// internal/workers/checklist/validate-checklist/models.go
package validatechecklist

import "visabuddy-engine/internal/models"

const (
	OutcomeParsed   = "parsed"
	OutcomeRepaired = "repaired"
	OutcomeFailed   = "failed"
)

type Input struct {
	ApplicationID  string                     `json:"applicationId"`
	CountryCode    string                     `json:"country"`
	VisaType       string                     `json:"visaType"`
	RuleSetVersion int                        `json:"ruleSetVersion"`
	RawDraft       string                     `json:"rawDraft"`
	BaseDocuments  []models.BaseDocumentEntry `json:"baseDocuments"`
}

type Output struct {
	ChecklistResponse models.ChecklistResponse `json:"checklistResponse"`
	ValidationOutcome string                   `json:"validationOutcome"`
}
