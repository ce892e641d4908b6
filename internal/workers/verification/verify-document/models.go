// internal/workers/verification/verify-document/models.go
package verifydocument

import "visabuddy-engine/internal/models"

type Input struct {
	ApplicationID      string                       `json:"applicationId"`
	DocumentID         string                       `json:"documentId"`
	DocumentType       string                       `json:"documentType"`
	CountryCode        string                       `json:"country"`
	VisaType           string                       `json:"visaType"`
	AppLanguage        string                       `json:"appLanguage"`
	DocumentText       string                       `json:"documentText"`
	ExtractionMetadata *models.ExtractionMetadata   `json:"extractionMetadata,omitempty"`
	DocumentRule       *models.RequiredDocumentRule `json:"documentRule,omitempty"`

	// MinValidityMonths is how far past the travel date the document must
	// stay valid. Zero means only "not expired" is enforced.
	MinValidityMonths int    `json:"minValidityMonths"`
	TravelDate        string `json:"travelDate,omitempty"` // ISO 8601 date
}

type Output struct {
	CheckResult models.DocumentCheckResult `json:"checkResult"`
}
