// internal/workers/checklist/validate-checklist/repair.go
package validatechecklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/validation"
	"visabuddy-engine/internal/models"
)

// RepairResult describes what it took to turn a raw draft into a checklist
// that honors the base document set.
type RepairResult struct {
	Items            []models.ChecklistItem
	Notes            string
	Outcome          string
	ExtractionMethod validation.ExtractionMethod
	Dropped          int
	Synthesized      int
	Coerced          bool
}

// draftItem mirrors a checklist entry as the collaborator may have produced
// it. Pointer fields distinguish absent from false.
type draftItem struct {
	ID                     string                  `json:"id"`
	DocumentType           string                  `json:"documentType"`
	Category               string                  `json:"category"`
	Required               *bool                   `json:"required"`
	Name                   models.LocalizedName    `json:"name"`
	Description            string                  `json:"description"`
	AppliesToThisApplicant *bool                   `json:"appliesToThisApplicant"`
	ReasonIfApplies        string                  `json:"reasonIfApplies"`
	Group                  string                  `json:"group"`
	Priority               int                     `json:"priority"`
	DependsOn              []string                `json:"dependsOn,omitempty"`
	Reasoning              *models.ExpertReasoning `json:"reasoning,omitempty"`
}

type draftResponse struct {
	Checklist []draftItem `json:"checklist"`
	Notes     string      `json:"notes"`
}

// Repair runs the full ladder: extract a JSON object from the raw text,
// parse it, validate against the schema, coerce recoverable defects, then
// reconcile the item set against the base documents. The base set always
// wins: extras are dropped, missing documents are synthesized, and category,
// required and group are restored from the rules for every item.
func Repair(raw string, base []models.BaseDocumentEntry) (*RepairResult, error) {
	extracted, method, err := validation.ExtractJSONObject(raw)
	if err != nil {
		return nil, apperrors.NewUnparseableResponseError(err.Error())
	}

	var draft draftResponse
	if err := json.Unmarshal([]byte(extracted), &draft); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, apperrors.NewUnparseableResponseError(fmt.Sprintf("extracted object is not valid JSON: %v", err))
		}
		// A mistyped scalar is a well-typedness defect, not a parse failure.
		// Re-type the known fields so the draft can reach the coercion pass.
		normalized, nerr := normalizeDraft(extracted)
		if nerr != nil {
			return nil, apperrors.NewUnparseableResponseError(fmt.Sprintf("extracted object is not valid JSON: %v", nerr))
		}
		if err := json.Unmarshal(normalized, &draft); err != nil {
			return nil, apperrors.NewSchemaInvalidError(fmt.Sprintf("draft fields are mistyped beyond repair: %v", err))
		}
	}

	coerced := false
	if err := validateDraftSchema(extracted); err != nil {
		coerceDraft(&draft)
		coerced = true
	}

	items, dropped, synthesized := reconcile(draft.Checklist, base)

	// The reconciled checklist must pass the same schema the draft was held
	// to. Anything still invalid here is beyond repair.
	final, err := json.Marshal(draftResponse{Checklist: toDraftItems(items), Notes: draft.Notes})
	if err != nil {
		return nil, apperrors.NewSchemaInvalidError(fmt.Sprintf("marshal repaired checklist: %v", err))
	}
	if err := validateDraftSchema(string(final)); err != nil {
		return nil, apperrors.NewSchemaInvalidError(err.Error())
	}

	outcome := OutcomeParsed
	if method != validation.MethodDirect || coerced || dropped > 0 || synthesized > 0 {
		outcome = OutcomeRepaired
	}

	return &RepairResult{
		Items:            items,
		Notes:            draft.Notes,
		Outcome:          outcome,
		ExtractionMethod: method,
		Dropped:          dropped,
		Synthesized:      synthesized,
		Coerced:          coerced,
	}, nil
}

// coerceDraft applies the recoverable-defect rules in place. Each rule fixes
// an omission the collaborator commonly makes without inventing content.
func coerceDraft(draft *draftResponse) {
	for i := range draft.Checklist {
		item := &draft.Checklist[i]

		if item.ID == "" {
			item.ID = fmt.Sprintf("item_%d", i+1)
		}
		if !models.ValidCategory(item.Category) {
			item.Category = string(models.CategoryOptional)
		}
		if item.Required == nil {
			required := item.Category == string(models.CategoryRequired)
			item.Required = &required
		}
		if item.AppliesToThisApplicant == nil {
			applies := true
			item.AppliesToThisApplicant = &applies
		}
		if item.Name.En == "" && item.DocumentType != "" {
			item.Name.En = humanizeDocumentType(item.DocumentType)
		}
		if item.Name.Uz == "" {
			item.Name.Uz = item.Name.En
		}
		if item.Name.Ru == "" {
			item.Name.Ru = item.Name.En
		}
		if item.Priority < 1 {
			item.Priority = i + 1
		}
	}
}

// normalizeDraft re-types mistyped scalar fields in a generic decoding of the
// draft. Only field-level type slips are fixed; a value that cannot be
// re-typed is removed so the coercion rules can restore it. Structural damage
// is left for the caller to reject.
func normalizeDraft(extracted string) ([]byte, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(extracted), &generic); err != nil {
		return nil, err
	}

	if list, ok := generic["checklist"].([]interface{}); ok {
		for _, raw := range list {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			normalizeDraftItem(item)
		}
	}
	if n, ok := generic["notes"].(float64); ok {
		generic["notes"] = strconv.FormatFloat(n, 'f', -1, 64)
	}

	return json.Marshal(generic)
}

func normalizeDraftItem(item map[string]interface{}) {
	switch v := item["priority"].(type) {
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			item["priority"] = n
		} else {
			delete(item, "priority")
		}
	case float64:
		item["priority"] = int(v)
	}

	for _, field := range []string{"required", "appliesToThisApplicant"} {
		if s, ok := item[field].(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				item[field] = b
			} else {
				delete(item, field)
			}
		}
	}

	for _, field := range []string{"id", "documentType", "category", "description", "reasonIfApplies", "group"} {
		if n, ok := item[field].(float64); ok {
			item[field] = strconv.FormatFloat(n, 'f', -1, 64)
		}
	}

	if s, ok := item["dependsOn"].(string); ok {
		item["dependsOn"] = []interface{}{s}
	}
	if s, ok := item["name"].(string); ok {
		item["name"] = map[string]interface{}{"en": s}
	}
}

// reconcile enforces set equality with the base documents. Draft items keep
// their order and enrichment; category, required and group always come from
// the rules. Base documents the draft omitted come back as bare synthesized
// entries appended after the drafted ones.
func reconcile(draft []draftItem, base []models.BaseDocumentEntry) ([]models.ChecklistItem, int, int) {
	baseByType := make(map[string]models.BaseDocumentEntry, len(base))
	for _, entry := range base {
		baseByType[entry.DocumentType] = entry
	}

	items := make([]models.ChecklistItem, 0, len(base))
	seen := make(map[string]bool, len(base))
	dropped := 0

	for i, d := range draft {
		entry, ok := baseByType[d.DocumentType]
		if !ok || seen[d.DocumentType] {
			dropped++
			continue
		}
		seen[d.DocumentType] = true

		applies := true
		if d.AppliesToThisApplicant != nil {
			applies = *d.AppliesToThisApplicant
		}
		priority := d.Priority
		if priority < 1 {
			priority = i + 1
		}
		id := d.ID
		if id == "" {
			id = fmt.Sprintf("item_%d", i+1)
		}

		items = append(items, models.ChecklistItem{
			ID:                     id,
			DocumentType:           entry.DocumentType,
			Category:               entry.Category,
			Required:               entry.Required,
			Name:                   d.Name,
			Description:            d.Description,
			AppliesToThisApplicant: applies,
			ReasonIfApplies:        d.ReasonIfApplies,
			Group:                  entry.Group,
			Priority:               priority,
			DependsOn:              d.DependsOn,
			Reasoning:              d.Reasoning,
		})
	}

	synthesized := 0
	nextPriority := maxPriority(items) + 1
	for _, entry := range base {
		if seen[entry.DocumentType] {
			continue
		}
		synthesized++

		name := humanizeDocumentType(entry.DocumentType)
		items = append(items, models.ChecklistItem{
			ID:                     fmt.Sprintf("item_%s", entry.DocumentType),
			DocumentType:           entry.DocumentType,
			Category:               entry.Category,
			Required:               entry.Required,
			Name:                   models.LocalizedName{En: name, Uz: name, Ru: name},
			AppliesToThisApplicant: true,
			Group:                  entry.Group,
			Priority:               nextPriority,
			Synthesized:            true,
		})
		nextPriority++
	}

	return items, dropped, synthesized
}

func maxPriority(items []models.ChecklistItem) int {
	max := 0
	for _, item := range items {
		if item.Priority > max {
			max = item.Priority
		}
	}
	return max
}

func humanizeDocumentType(documentType string) string {
	out := make([]rune, 0, len(documentType))
	upperNext := true
	for _, r := range documentType {
		if r == '_' || r == '-' {
			out = append(out, ' ')
			upperNext = true
			continue
		}
		if upperNext && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upperNext = false
		out = append(out, r)
	}
	return string(out)
}

func toDraftItems(items []models.ChecklistItem) []draftItem {
	out := make([]draftItem, 0, len(items))
	for _, item := range items {
		required := item.Required
		applies := item.AppliesToThisApplicant
		out = append(out, draftItem{
			ID:                     item.ID,
			DocumentType:           item.DocumentType,
			Category:               string(item.Category),
			Required:               &required,
			Name:                   item.Name,
			Description:            item.Description,
			AppliesToThisApplicant: &applies,
			ReasonIfApplies:        item.ReasonIfApplies,
			Group:                  item.Group,
			Priority:               item.Priority,
			DependsOn:              item.DependsOn,
			Reasoning:              item.Reasoning,
		})
	}
	return out
}
