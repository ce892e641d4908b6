// internal/workers/checklist/validate-checklist/schema.go
package validatechecklist

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// checklistSchema is the strict shape a draft must satisfy before repair.
// The repair pass fills in what the coercion rules allow; anything the
// schema still rejects afterwards is a hard failure.
const checklistSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["checklist"],
  "properties": {
    "checklist": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "documentType", "category", "required", "name", "appliesToThisApplicant", "priority"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "documentType": {"type": "string", "minLength": 1},
          "category": {"enum": ["required", "highly_recommended", "optional"]},
          "required": {"type": "boolean"},
          "name": {
            "type": "object",
            "required": ["en", "uz", "ru"],
            "properties": {
              "en": {"type": "string", "minLength": 1},
              "uz": {"type": "string", "minLength": 1},
              "ru": {"type": "string", "minLength": 1}
            }
          },
          "description": {"type": "string"},
          "appliesToThisApplicant": {"type": "boolean"},
          "reasonIfApplies": {"type": "string"},
          "group": {"type": "string"},
          "priority": {"type": "integer", "minimum": 1},
          "dependsOn": {"type": "array", "items": {"type": "string"}},
          "reasoning": {
            "type": "object",
            "properties": {
              "whyNeeded": {"type": "string"},
              "embassyConcern": {"type": "string"},
              "tip": {"type": "string"}
            }
          }
        }
      }
    },
    "notes": {"type": "string"}
  }
}`

// validateDraftSchema returns nil when the document matches the checklist
// schema, or an error listing every violation.
func validateDraftSchema(document string) error {
	schemaLoader := gojsonschema.NewStringLoader(checklistSchema)
	documentLoader := gojsonschema.NewStringLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("schema violations: %s", strings.Join(violations, "; "))
}
