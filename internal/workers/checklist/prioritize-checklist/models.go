// internal/workers/checklist/prioritize-checklist/models.go
package prioritizechecklist

import "visabuddy-engine/internal/models"

type Input struct {
	ApplicationID     string                   `json:"applicationId"`
	CanonicalContext  models.CanonicalContext  `json:"canonicalContext"`
	ChecklistResponse models.ChecklistResponse `json:"checklistResponse"`
}

type Output struct {
	ChecklistResponse models.ChecklistResponse `json:"checklistResponse"`
}
