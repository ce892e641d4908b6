// internal/models/context.go
package models

// TriState distinguishes an explicit yes/no answer from a question that was
// never answered. Downstream prompt construction must not collapse Unknown
// into No: "we don't know the employment status" and "unemployed" produce
// very different justification text.
type TriState string

const (
	TriYes     TriState = "yes"
	TriNo      TriState = "no"
	TriUnknown TriState = "unknown"
)

// Bool converts an explicit answer; Unknown maps to the given fallback.
func (t TriState) Bool(fallback bool) bool {
	switch t {
	case TriYes:
		return true
	case TriNo:
		return false
	}
	return fallback
}

// Known reports whether the applicant actually answered.
func (t TriState) Known() bool { return t == TriYes || t == TriNo }

// StatusUnknown is the sentinel for string fields the questionnaire left blank.
const StatusUnknown = "unknown"

// CanonicalContext is the normalized applicant snapshot every engine stage
// consumes. It is rebuilt from raw questionnaire data on each request and
// carries no hidden state, so recomputation is always safe.
type CanonicalContext struct {
	Identity      Identity         `json:"identity"`
	Intent        VisaIntent       `json:"intent"`
	Financial     FinancialProfile `json:"financial"`
	Ties          TiesProfile      `json:"ties"`
	TravelHistory TravelProfile    `json:"travelHistory"`
	Risk          RiskScore        `json:"riskScore"`
	AppLanguage   string           `json:"appLanguage"` // en, uz, ru
}

type Identity struct {
	Citizenship      string   `json:"citizenship"`
	Age              int      `json:"age"`
	EmploymentStatus string   `json:"employmentStatus"` // employed, self_employed, student, unemployed, retired, unknown
	EmploymentMonths int      `json:"employmentMonths"`
	EducationStatus  string   `json:"educationStatus"`
	SponsorType      string   `json:"sponsorType"` // self, family, employer, host, unknown
	MaritalStatus    string   `json:"maritalStatus"`
	HasChildren      TriState `json:"hasChildren"`
}

type VisaIntent struct {
	CountryCode   string   `json:"countryCode"`
	VisaType      string   `json:"visaType"`
	DurationDays  int      `json:"durationDays"`
	HasInvitation TriState `json:"hasInvitation"`
}

// FinancialProfile carries the derived sufficiency metrics. All amounts are
// normalized to the rule set's currency before derivation.
type FinancialProfile struct {
	BankBalance           float64 `json:"bankBalance"`
	MonthlyIncome         float64 `json:"monthlyIncome"`
	SponsorFunds          float64 `json:"sponsorFunds"`
	RequiredFundsEstimate float64 `json:"requiredFundsEstimate"`
	SufficiencyRatio      float64 `json:"sufficiencyRatio"`
	SufficiencyLabel      string  `json:"sufficiencyLabel"` // low, borderline, sufficient, strong
}

type TiesProfile struct {
	Score            float64  `json:"tiesStrengthScore"` // 0..1
	Label            string   `json:"tiesStrengthLabel"` // weak, moderate, strong
	OwnsProperty     TriState `json:"ownsProperty"`
	FamilyPresent    TriState `json:"familyPresent"`
	HasChildren      TriState `json:"hasChildren"`
	EmploymentMonths int      `json:"employmentMonths"`
}

type TravelProfile struct {
	Score              float64  `json:"travelHistoryScore"` // 0..1
	Label              string   `json:"travelHistoryLabel"` // none, limited, good, strong
	CountriesVisited   int      `json:"countriesVisited"`
	PreviousRejections int      `json:"previousRejections"`
	HasOverstay        TriState `json:"hasOverstay"`
}

// RiskScore is the coarse 3-bucket classification with its supporting factor
// lists. The factor strings flow verbatim into collaborator prompts and are
// asserted on by tests, so wording changes are behavior changes.
type RiskScore struct {
	Level              string   `json:"level"` // low, medium, high
	ProbabilityPercent int      `json:"probabilityPercent"`
	RiskFactors        []string `json:"riskFactors"`
	PositiveFactors    []string `json:"positiveFactors"`
	Warning            string   `json:"warning"`
}
