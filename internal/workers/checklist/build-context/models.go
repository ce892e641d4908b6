// internal/workers/checklist/build-context/models.go
package buildcontext

import "visabuddy-engine/internal/models"

// Input is the raw request. Questionnaire is loosely structured: values may be
// numbers, numeric strings, booleans or missing entirely, and the builder must
// cope with all of them.
type Input struct {
	ApplicationID string                 `json:"applicationId"`
	CountryCode   string                 `json:"country"`
	VisaType      string                 `json:"visaType"`
	DurationDays  int                    `json:"durationDays"`
	AppLanguage   string                 `json:"appLanguage"`
	Questionnaire map[string]interface{} `json:"questionnaire"`
}

type Output struct {
	CanonicalContext models.CanonicalContext `json:"canonicalContext"`
}
