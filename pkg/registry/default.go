// pkg/registry/default.go
package registry

import "time"

// Default returns the registry for the currently implemented workers.
// The registry-updater tool seeds configs/activity-registry.json from this.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: time.Now().Format(time.RFC3339),
		Activities: []Activity{
			{
				ID:                   "build-context",
				DisplayName:          "Build Canonical Context",
				Description:          "Normalizes the raw applicant questionnaire into a canonical context with derived financial, ties, travel history and risk signals",
				Category:             "checklist",
				Version:              "1.0.0",
				TaskType:             "build-context",
				ImplementationStatus: "completed",
				InputSchema: map[string]interface{}{
					"country":                "string",
					"visaType":               "string",
					"applicantQuestionnaire": "object",
					"appLanguage":            "string, optional, one of en|uz|ru",
				},
				OutputSchema: map[string]interface{}{
					"canonicalContext": "object with identity, financial, ties, travel and risk sections",
				},
				ErrorCodes: []string{"PARSE_ERROR", "CONTEXT_BUILD_FAILED"},
				Timeout:    "10s",
				Retries:    3,
				Workflows:  []string{WorkflowChecklistGeneration},
				Tags:       []string{"deterministic", "derivation"},
			},
			{
				ID:                   "resolve-rules",
				DisplayName:          "Resolve Document Rules",
				Description:          "Loads the latest approved rule set for the country and visa type and evaluates per-document conditions against the canonical context",
				Category:             "checklist",
				Version:              "1.0.0",
				TaskType:             "resolve-rules",
				ImplementationStatus: "completed",
				InputSchema: map[string]interface{}{
					"country":          "string",
					"visaType":         "string",
					"canonicalContext": "object",
				},
				OutputSchema: map[string]interface{}{
					"country":        "string",
					"visaType":       "string",
					"ruleSetVersion": "integer",
					"baseDocuments":  "array of base document entries",
				},
				ErrorCodes: []string{"PARSE_ERROR", "RULESET_NOT_FOUND", "RULE_EVALUATION_FAILED"},
				Timeout:    "10s",
				Retries:    3,
				Workflows:  []string{WorkflowChecklistGeneration},
				Tags:       []string{"deterministic", "rules", "cel"},
			},
			{
				ID:                   "enrich-checklist",
				DisplayName:          "Enrich Checklist",
				Description:          "Sends the resolved base document set and applicant context to the text collaborator for names, descriptions and reasoning under a strict echo contract",
				Category:             "checklist",
				Version:              "1.0.0",
				TaskType:             "enrich-checklist",
				ImplementationStatus: "completed",
				InputSchema: map[string]interface{}{
					"country":          "string",
					"visaType":         "string",
					"ruleSetVersion":   "integer",
					"canonicalContext": "object",
					"baseDocuments":    "array of base document entries",
				},
				OutputSchema: map[string]interface{}{
					"rawDraft": "string, unvalidated collaborator response",
				},
				ErrorCodes: []string{"PARSE_ERROR", "COLLABORATOR_TIMEOUT", "ENRICHMENT_FAILED"},
				Timeout:    "90s",
				Retries:    2,
				Workflows:  []string{WorkflowChecklistGeneration},
				Tags:       []string{"collaborator"},
			},
			{
				ID:                   "validate-checklist",
				DisplayName:          "Validate Checklist",
				Description:          "Parses, schema-validates and repairs the raw enrichment draft, reconciling drift against the resolved base document set",
				Category:             "checklist",
				Version:              "1.0.0",
				TaskType:             "validate-checklist",
				ImplementationStatus: "completed",
				InputSchema: map[string]interface{}{
					"country":        "string",
					"visaType":       "string",
					"ruleSetVersion": "integer",
					"rawDraft":       "string",
					"baseDocuments":  "array of base document entries",
				},
				OutputSchema: map[string]interface{}{
					"checklistResponse": "validated checklist response",
					"validationOutcome": "string, one of parsed|repaired|failed",
				},
				ErrorCodes: []string{"PARSE_ERROR", "UNPARSEABLE_RESPONSE", "SCHEMA_INVALID"},
				Timeout:    "10s",
				Retries:    0,
				Workflows:  []string{WorkflowChecklistGeneration},
				Tags:       []string{"deterministic", "validation", "repair"},
			},
			{
				ID:                   "prioritize-checklist",
				DisplayName:          "Prioritize Checklist",
				Description:          "Reorders checklist items by boosting document groups that match applicant risk signals, then renumbers priorities densely",
				Category:             "checklist",
				Version:              "1.0.0",
				TaskType:             "prioritize-checklist",
				ImplementationStatus: "completed",
				InputSchema: map[string]interface{}{
					"canonicalContext":  "object",
					"checklistResponse": "validated checklist response",
				},
				OutputSchema: map[string]interface{}{
					"checklistResponse": "checklist response with risk-weighted ordering",
				},
				ErrorCodes: []string{"PARSE_ERROR"},
				Timeout:    "5s",
				Retries:    3,
				Workflows:  []string{WorkflowChecklistGeneration},
				Tags:       []string{"deterministic", "ranking"},
			},
			{
				ID:                   "verify-document",
				DisplayName:          "Verify Document",
				Description:          "Assesses one uploaded document against its checklist rule via the collaborator, with a conservative fallback verdict and a deterministic expiry guard",
				Category:             "verification",
				Version:              "1.0.0",
				TaskType:             "verify-document",
				ImplementationStatus: "completed",
				InputSchema: map[string]interface{}{
					"applicationId":      "string",
					"documentId":         "string",
					"documentType":       "string",
					"country":            "string",
					"visaType":           "string",
					"appLanguage":        "string, optional",
					"documentText":       "string, extracted text",
					"extractionMetadata": "object, optional",
					"documentRule":       "object, optional",
					"minValidityMonths":  "integer, optional",
					"travelDate":         "string, optional, YYYY-MM-DD",
				},
				OutputSchema: map[string]interface{}{
					"checkResult": "verdict with status, short_reason, trilingual notes and embassy risk level",
				},
				ErrorCodes: []string{"PARSE_ERROR", "COLLABORATOR_TIMEOUT", "VERIFICATION_FAILED"},
				Timeout:    "90s",
				Retries:    2,
				Workflows:  []string{WorkflowDocumentVerification},
				Tags:       []string{"collaborator", "conservative"},
			},
		},
	}
}
