// internal/workers/checklist/enrich-checklist/models.go
package enrichchecklist

import "visabuddy-engine/internal/models"

type Input struct {
	ApplicationID    string                     `json:"applicationId"`
	CountryCode      string                     `json:"country"`
	VisaType         string                     `json:"visaType"`
	RuleSetVersion   int                        `json:"ruleSetVersion"`
	CanonicalContext models.CanonicalContext    `json:"canonicalContext"`
	BaseDocuments    []models.BaseDocumentEntry `json:"baseDocuments"`
}

type Output struct {
	RawDraft string `json:"rawDraft"`
}
