// internal/models/verification.go
package models

// Verification verdict statuses.
const (
	CheckApproved = "APPROVED"
	CheckNeedFix  = "NEED_FIX"
	CheckRejected = "REJECTED"
)

// Embassy risk levels attached to a verification verdict.
const (
	EmbassyRiskLow    = "LOW"
	EmbassyRiskMedium = "MEDIUM"
	EmbassyRiskHigh   = "HIGH"
)

// ValidStatus reports whether s is a known verification status.
func ValidStatus(s string) bool {
	return s == CheckApproved || s == CheckNeedFix || s == CheckRejected
}

// ValidEmbassyRisk reports whether s is a known embassy risk level.
func ValidEmbassyRisk(s string) bool {
	return s == EmbassyRiskLow || s == EmbassyRiskMedium || s == EmbassyRiskHigh
}

// TrilingualNotes carries applicant-facing notes per app language.
type TrilingualNotes struct {
	En string `json:"en,omitempty"`
	Uz string `json:"uz,omitempty"`
	Ru string `json:"ru,omitempty"`
}

// ValidationDetails are the structured per-aspect sub-results the collaborator
// may return alongside the overall verdict.
type ValidationDetails struct {
	TypeMatch       *bool `json:"typeMatch,omitempty"`
	Completeness    *bool `json:"completeness,omitempty"`
	FinancialValid  *bool `json:"financialValid,omitempty"`
	DatesValid      *bool `json:"datesValid,omitempty"`
	FormatCompliant *bool `json:"formatCompliant,omitempty"`
}

// DocumentCheckResult is the verdict for one uploaded document against one
// rule. Results are created fresh per call and never mutated afterwards.
type DocumentCheckResult struct {
	Status           string             `json:"status"`
	ShortReason      string             `json:"short_reason"`
	Notes            *TrilingualNotes   `json:"notes,omitempty"`
	EmbassyRiskLevel string             `json:"embassy_risk_level"`
	TechnicalNotes   string             `json:"technical_notes,omitempty"`
	Details          *ValidationDetails `json:"validationDetails,omitempty"`
}

// ExtractionMetadata is optional structured data pulled out of the document
// text by the upstream extraction service.
type ExtractionMetadata struct {
	Amounts    []float64 `json:"amounts,omitempty"`
	Dates      []string  `json:"dates,omitempty"` // ISO 8601 dates as found
	ExpiryDate string    `json:"expiryDate,omitempty"`
	IssueDate  string    `json:"issueDate,omitempty"`
	BankName   string    `json:"bankName,omitempty"`
}
