// internal/workers/checklist/resolve-rules/models.go
package resolverules

import "visabuddy-engine/internal/models"

type Input struct {
	ApplicationID    string                  `json:"applicationId"`
	CanonicalContext models.CanonicalContext `json:"canonicalContext"`
}

type Output struct {
	CountryCode    string                     `json:"country"`
	VisaType       string                     `json:"visaType"`
	RuleSetVersion int                        `json:"ruleSetVersion"`
	BaseDocuments  []models.BaseDocumentEntry `json:"baseDocuments"`
}
