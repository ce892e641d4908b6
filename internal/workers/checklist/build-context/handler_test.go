// internal/workers/checklist/build-context/handler_test.go
package buildcontext

import (
	"context"
	"testing"

	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	return NewHandler(LoadConfig(), logger.NewNoOpLogger())
}

func baseInput() *Input {
	return &Input{
		ApplicationID: "app-123",
		CountryCode:   "US",
		VisaType:      "tourist",
		DurationDays:  14,
		AppLanguage:   "en",
		Questionnaire: map[string]interface{}{
			"citizenship":         "UZ",
			"age":                 float64(31),
			"employmentStatus":    "employed",
			"employmentMonths":    float64(36),
			"sponsorType":         "self",
			"maritalStatus":       "married",
			"hasChildren":         true,
			"ownsProperty":        true,
			"familyInHomeCountry": true,
			"bankBalance":         float64(8000),
			"monthlyIncome":       float64(900),
			"countriesVisited":    float64(4),
			"previousRejections":  float64(0),
			"hasOverstay":         false,
			"hasInvitation":       "no",
		},
	}
}

func TestExecuteDeterministic(t *testing.T) {
	h := newTestHandler()
	input := baseInput()

	first, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFinancialDerivation(t *testing.T) {
	h := newTestHandler()

	tests := []struct {
		name         string
		bankBalance  float64
		sponsorFunds float64
		sponsorType  string
		durationDays int
		wantRequired float64
		wantLabel    string
	}{
		{
			name:         "short stay uses minimum basis",
			bankBalance:  8000,
			sponsorType:  "self",
			durationDays: 14,
			// US is 120 per day over the 30 day floor.
			wantRequired: 3600,
			wantLabel:    "strong",
		},
		{
			name:         "self sponsor ignores sponsor funds",
			bankBalance:  1000,
			sponsorFunds: 50000,
			sponsorType:  "self",
			durationDays: 30,
			wantRequired: 3600,
			wantLabel:    "low",
		},
		{
			name:         "parent sponsor funds are counted",
			bankBalance:  1000,
			sponsorFunds: 5000,
			sponsorType:  "parent",
			durationDays: 30,
			wantRequired: 3600,
			wantLabel:    "strong",
		},
		{
			name:         "borderline band",
			bankBalance:  3000,
			sponsorType:  "self",
			durationDays: 30,
			wantRequired: 3600,
			wantLabel:    "borderline",
		},
		{
			name:         "sufficient band",
			bankBalance:  4000,
			sponsorType:  "self",
			durationDays: 30,
			wantRequired: 3600,
			wantLabel:    "sufficient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			input.DurationDays = tt.durationDays
			input.Questionnaire["bankBalance"] = tt.bankBalance
			input.Questionnaire["sponsorFunds"] = tt.sponsorFunds
			input.Questionnaire["sponsorType"] = tt.sponsorType

			out, err := h.Execute(context.Background(), input)
			require.NoError(t, err)

			fin := out.CanonicalContext.Financial
			assert.InDelta(t, tt.wantRequired, fin.RequiredFundsEstimate, 0.01)
			assert.Equal(t, tt.wantLabel, fin.SufficiencyLabel)
		})
	}
}

func TestFundsPerDayFallback(t *testing.T) {
	h := newTestHandler()
	input := baseInput()
	input.CountryCode = "JP"
	input.DurationDays = 30

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.InDelta(t, 75*30, out.CanonicalContext.Financial.RequiredFundsEstimate, 0.01)
}

func TestTiesDerivation(t *testing.T) {
	h := newTestHandler()

	t.Run("all anchors present is strong", func(t *testing.T) {
		out, err := h.Execute(context.Background(), baseInput())
		require.NoError(t, err)

		ties := out.CanonicalContext.Ties
		assert.InDelta(t, 1.0, ties.Score, 0.001)
		assert.Equal(t, "strong", ties.Label)
	})

	t.Run("no anchors is weak", func(t *testing.T) {
		input := baseInput()
		input.Questionnaire["hasChildren"] = false
		input.Questionnaire["ownsProperty"] = false
		input.Questionnaire["familyInHomeCountry"] = false
		input.Questionnaire["employmentMonths"] = float64(0)

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		ties := out.CanonicalContext.Ties
		assert.InDelta(t, 0.0, ties.Score, 0.001)
		assert.Equal(t, "weak", ties.Label)
	})

	t.Run("short employment contributes partial weight", func(t *testing.T) {
		input := baseInput()
		input.Questionnaire["hasChildren"] = false
		input.Questionnaire["ownsProperty"] = false
		input.Questionnaire["familyInHomeCountry"] = false
		input.Questionnaire["employmentMonths"] = float64(12)

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		assert.InDelta(t, 0.10, out.CanonicalContext.Ties.Score, 0.001)
	})

	t.Run("unknown answers do not count as anchors", func(t *testing.T) {
		input := baseInput()
		delete(input.Questionnaire, "hasChildren")
		delete(input.Questionnaire, "ownsProperty")
		delete(input.Questionnaire, "familyInHomeCountry")
		input.Questionnaire["employmentMonths"] = float64(0)

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		ties := out.CanonicalContext.Ties
		assert.Equal(t, models.TriUnknown, ties.HasChildren)
		assert.Equal(t, models.TriUnknown, ties.OwnsProperty)
		assert.InDelta(t, 0.0, ties.Score, 0.001)
	})
}

func TestTravelDerivation(t *testing.T) {
	h := newTestHandler()

	tests := []struct {
		name       string
		visited    float64
		rejections float64
		overstay   bool
		wantLabel  string
	}{
		{"no history", 0, 0, false, "none"},
		{"one trip", 1, 0, false, "limited"},
		{"several trips", 4, 0, false, "good"},
		{"frequent traveller", 7, 0, false, "strong"},
		{"rejections drag the score down", 7, 2, false, "good"},
		{"overstay drags the score down", 4, 0, true, "limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			input.Questionnaire["countriesVisited"] = tt.visited
			input.Questionnaire["previousRejections"] = tt.rejections
			input.Questionnaire["hasOverstay"] = tt.overstay

			out, err := h.Execute(context.Background(), input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLabel, out.CanonicalContext.TravelHistory.Label)
		})
	}
}

func TestRiskScoring(t *testing.T) {
	h := newTestHandler()

	t.Run("strong applicant is low risk", func(t *testing.T) {
		out, err := h.Execute(context.Background(), baseInput())
		require.NoError(t, err)

		risk := out.CanonicalContext.Risk
		assert.Equal(t, "low", risk.Level)
		assert.GreaterOrEqual(t, risk.ProbabilityPercent, 70)
		assert.LessOrEqual(t, risk.ProbabilityPercent, 90)
		assert.NotEmpty(t, risk.PositiveFactors)
	})

	t.Run("weak applicant is high risk and clamped", func(t *testing.T) {
		input := baseInput()
		input.Questionnaire["bankBalance"] = float64(100)
		input.Questionnaire["employmentStatus"] = "unemployed"
		input.Questionnaire["hasChildren"] = false
		input.Questionnaire["ownsProperty"] = false
		input.Questionnaire["familyInHomeCountry"] = false
		input.Questionnaire["employmentMonths"] = float64(0)
		input.Questionnaire["countriesVisited"] = float64(0)
		input.Questionnaire["previousRejections"] = float64(2)
		input.Questionnaire["hasOverstay"] = true

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		risk := out.CanonicalContext.Risk
		assert.Equal(t, "high", risk.Level)
		assert.Equal(t, 10, risk.ProbabilityPercent)
		assert.NotEmpty(t, risk.RiskFactors)
	})

	t.Run("warning follows app language", func(t *testing.T) {
		for _, lang := range []string{"en", "uz", "ru"} {
			input := baseInput()
			input.AppLanguage = lang

			out, err := h.Execute(context.Background(), input)
			require.NoError(t, err)

			assert.Equal(t, estimateWarnings[lang], out.CanonicalContext.Risk.Warning)
		}
	})

	t.Run("unsupported language falls back to english", func(t *testing.T) {
		input := baseInput()
		input.AppLanguage = "fr"

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		assert.Equal(t, "en", out.CanonicalContext.AppLanguage)
		assert.Equal(t, estimateWarnings["en"], out.CanonicalContext.Risk.Warning)
	})
}

// An applicant whose status was never asked must not be described as
// unemployed anywhere in the derived context.
func TestUnknownEmploymentNeverReportedAsUnemployed(t *testing.T) {
	h := newTestHandler()
	input := baseInput()
	delete(input.Questionnaire, "employmentStatus")
	delete(input.Questionnaire, "currentStatus")
	input.Questionnaire["employmentMonths"] = float64(0)

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.StatusUnknown, out.CanonicalContext.Identity.EmploymentStatus)
	for _, factor := range out.CanonicalContext.Risk.RiskFactors {
		assert.NotContains(t, factor, "unemployed")
	}
}

func TestCurrentStatusFallbackKey(t *testing.T) {
	h := newTestHandler()
	input := baseInput()
	delete(input.Questionnaire, "employmentStatus")
	input.Questionnaire["currentStatus"] = "student"

	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "student", out.CanonicalContext.Identity.EmploymentStatus)
}

func TestDefensiveParsing(t *testing.T) {
	h := newTestHandler()

	t.Run("numeric strings with separators", func(t *testing.T) {
		input := baseInput()
		input.Questionnaire["bankBalance"] = "12,500.50"
		input.Questionnaire["age"] = "28"

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		assert.InDelta(t, 12500.50, out.CanonicalContext.Financial.BankBalance, 0.01)
		assert.Equal(t, 28, out.CanonicalContext.Identity.Age)
	})

	t.Run("garbage values collapse to safe zero", func(t *testing.T) {
		input := baseInput()
		input.Questionnaire["bankBalance"] = "a lot"
		input.Questionnaire["age"] = []string{"nope"}
		input.Questionnaire["monthlyIncome"] = float64(-500)

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		assert.Zero(t, out.CanonicalContext.Financial.BankBalance)
		assert.Zero(t, out.CanonicalContext.Identity.Age)
		assert.Zero(t, out.CanonicalContext.Financial.MonthlyIncome)
	})

	t.Run("tri-state string forms", func(t *testing.T) {
		assert.Equal(t, models.TriYes, h.parseTriState("Yes"))
		assert.Equal(t, models.TriYes, h.parseTriState("ha"))
		assert.Equal(t, models.TriNo, h.parseTriState("нет"))
		assert.Equal(t, models.TriUnknown, h.parseTriState("maybe"))
		assert.Equal(t, models.TriUnknown, h.parseTriState(nil))
	})

	t.Run("nil questionnaire still yields a context", func(t *testing.T) {
		input := &Input{CountryCode: "de", VisaType: "Tourist", DurationDays: 10, AppLanguage: "ru"}

		out, err := h.Execute(context.Background(), input)
		require.NoError(t, err)

		assert.Equal(t, "DE", out.CanonicalContext.Intent.CountryCode)
		assert.Equal(t, "tourist", out.CanonicalContext.Intent.VisaType)
		assert.Equal(t, models.StatusUnknown, out.CanonicalContext.Identity.EmploymentStatus)
	})
}
