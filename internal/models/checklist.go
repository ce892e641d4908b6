// internal/models/checklist.go
package models

// Document groups used by the prioritizer. Groups come from the rule catalog;
// anything unrecognized is treated as "other" and never boosted.
const (
	GroupIdentity   = "identity"
	GroupFinancial  = "financial"
	GroupTies       = "ties"
	GroupEmployment = "employment"
	GroupTravel     = "travel"
	GroupPurpose    = "purpose"
	GroupOther      = "other"
)

// LocalizedName holds the document name in the three supported app languages.
// After repair all three fields are non-empty.
type LocalizedName struct {
	En string `json:"en"`
	Uz string `json:"uz"`
	Ru string `json:"ru"`
}

// ExpertReasoning is the optional per-item justification sub-object the
// collaborator may attach.
type ExpertReasoning struct {
	WhyNeeded      string `json:"whyNeeded,omitempty"`
	EmbassyConcern string `json:"embassyConcern,omitempty"`
	Tip            string `json:"tip,omitempty"`
}

// ChecklistItem is one enriched checklist entry. DocumentType, Category and
// Required mirror the BaseDocumentEntry exactly; the repairer enforces that.
type ChecklistItem struct {
	ID                     string           `json:"id"`
	DocumentType           string           `json:"documentType"`
	Category               DocumentCategory `json:"category"`
	Required               bool             `json:"required"`
	Name                   LocalizedName    `json:"name"`
	Description            string           `json:"description"`
	AppliesToThisApplicant bool             `json:"appliesToThisApplicant"`
	ReasonIfApplies        string           `json:"reasonIfApplies,omitempty"`
	Group                  string           `json:"group"`
	Priority               int              `json:"priority"`
	DependsOn              []string         `json:"dependsOn,omitempty"`
	Reasoning              *ExpertReasoning `json:"reasoning,omitempty"`
	Synthesized            bool             `json:"synthesized,omitempty"`
}

// ChecklistResponse is the wire shape returned to callers.
type ChecklistResponse struct {
	Type           string          `json:"type"` // always "checklist"
	CountryCode    string          `json:"country"`
	VisaType       string          `json:"visaType"`
	RuleSetVersion int             `json:"ruleSetVersion"`
	Source         string          `json:"source"` // "engine" or "fallback"
	Checklist      []ChecklistItem `json:"checklist"`
	Notes          []string        `json:"notes,omitempty"`
}

// DocumentTypes returns the set of documentType values present in items.
func DocumentTypes(items []ChecklistItem) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it.DocumentType] = true
	}
	return set
}
