// internal/models/ruleset.go
package models

import "time"

// DocumentCategory classifies how strongly an embassy expects a document.
type DocumentCategory string

const (
	CategoryRequired          DocumentCategory = "required"
	CategoryHighlyRecommended DocumentCategory = "highly_recommended"
	CategoryOptional          DocumentCategory = "optional"
)

// ValidCategory reports whether s is one of the known document categories.
func ValidCategory(s string) bool {
	switch DocumentCategory(s) {
	case CategoryRequired, CategoryHighlyRecommended, CategoryOptional:
		return true
	}
	return false
}

// RuleSet is one approved, versioned document catalog for a (country, visaType) pair.
// Rule sets are authored and approved outside this service; the engine only reads them.
type RuleSet struct {
	ID             string                 `json:"id"`
	CountryCode    string                 `json:"countryCode"`
	VisaType       string                 `json:"visaType"`
	Version        int                    `json:"version"`
	Approved       bool                   `json:"approved"`
	Documents      []RequiredDocumentRule `json:"documents"`
	FinancialRule  *FinancialRule         `json:"financialRule,omitempty"`
	ProcessingRule *ProcessingRule        `json:"processingRule,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// RequiredDocumentRule describes one document an embassy may require.
// Condition, when present, is a CEL boolean expression over canonical context
// fields (sponsor_type, employment_status, risk_level, financial_ratio,
// ties_score, education_status, age, has_children).
type RequiredDocumentRule struct {
	DocumentType         string           `json:"documentType"`
	Category             DocumentCategory `json:"category"`
	Group                string           `json:"group,omitempty"` // identity, financial, ties, employment, travel, purpose
	ValidityRequirements string           `json:"validityRequirements,omitempty"`
	FormatRequirements   string           `json:"formatRequirements,omitempty"`
	Condition            string           `json:"condition,omitempty"`
	// ConditionDefault is the inclusion decision when the condition cannot be
	// evaluated (unknown fields, compile error). Nil means: include if the
	// rule is required, exclude otherwise.
	ConditionDefault *bool `json:"conditionDefault,omitempty"`
}

// Required reports whether the rule's category makes the document mandatory.
func (r RequiredDocumentRule) Required() bool {
	return r.Category == CategoryRequired
}

// SafeDefault resolves the inclusion decision for an unevaluable condition.
func (r RequiredDocumentRule) SafeDefault() bool {
	if r.ConditionDefault != nil {
		return *r.ConditionDefault
	}
	return r.Required()
}

// FinancialRule holds the embassy's minimum-funds expectations.
type FinancialRule struct {
	MinBankBalance  float64 `json:"minBankBalance,omitempty"`
	PerDayEstimate  float64 `json:"perDayEstimate,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	StatementMonths int     `json:"statementMonths,omitempty"`
}

// ProcessingRule holds ancillary processing facts carried along for prompts.
type ProcessingRule struct {
	ProcessingDays    int     `json:"processingDays,omitempty"`
	FeeAmount         float64 `json:"feeAmount,omitempty"`
	FeeCurrency       string  `json:"feeCurrency,omitempty"`
	InsuranceRequired bool    `json:"insuranceRequired,omitempty"`
	InsuranceMinCover float64 `json:"insuranceMinCover,omitempty"`
}

// BaseDocumentEntry is the deterministic, rule-derived ground truth for one
// checklist document. Enrichment must never change any of these three fields.
type BaseDocumentEntry struct {
	DocumentType string           `json:"documentType"`
	Category     DocumentCategory `json:"category"`
	Required     bool             `json:"required"`
	Group        string           `json:"group,omitempty"`
}
