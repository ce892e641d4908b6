// internal/workers/checklist/build-context/handler.go
package buildcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
	"visabuddy-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "build-context"
)

// Estimate disclaimer shown with every probability, per app language. The
// wording is fixed product copy; do not rephrase casually.
var estimateWarnings = map[string]string{
	"en": "This is only an estimate based on your answers and typical patterns. It is NOT a guarantee. Only the embassy can make the final decision.",
	"uz": "Bu faqat sizning javoblaringiz va odatiy naqshlarga asoslangan taxmin. Bu KAFOLAT EMAS. Faqat elchixona yakuniy qaror qabul qiladi.",
	"ru": "Это только оценка на основе ваших ответов и типичных паттернов. Это НЕ гарантия. Только посольство может принять окончательное решение.",
}

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "CONTEXT_BUILD_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// execute is a pure derivation: identical input always yields identical
// output, and missing optional answers surface as explicit unknowns rather
// than fabricated zeros.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	q := input.Questionnaire
	if q == nil {
		q = make(map[string]interface{})
	}

	lang := input.AppLanguage
	if _, ok := estimateWarnings[lang]; !ok {
		lang = "en"
	}

	identity := h.buildIdentity(q)
	intent := models.VisaIntent{
		CountryCode:   strings.ToUpper(strings.TrimSpace(input.CountryCode)),
		VisaType:      strings.ToLower(strings.TrimSpace(input.VisaType)),
		DurationDays:  input.DurationDays,
		HasInvitation: h.parseTriState(q["hasInvitation"]),
	}
	if intent.CountryCode == "" {
		intent.CountryCode = models.StatusUnknown
	}
	if intent.VisaType == "" {
		intent.VisaType = models.StatusUnknown
	}

	financial := h.deriveFinancial(q, identity, intent)
	ties := h.deriveTies(q, identity)
	travel := h.deriveTravel(q)
	risk := h.deriveRisk(identity, intent, financial, ties, travel, lang)

	ctxOut := models.CanonicalContext{
		Identity:      identity,
		Intent:        intent,
		Financial:     financial,
		Ties:          ties,
		TravelHistory: travel,
		Risk:          risk,
		AppLanguage:   lang,
	}

	h.logger.Info("canonical context built", map[string]interface{}{
		"applicationId":    input.ApplicationID,
		"country":          intent.CountryCode,
		"visaType":         intent.VisaType,
		"sufficiencyLabel": financial.SufficiencyLabel,
		"tiesLabel":        ties.Label,
		"riskLevel":        risk.Level,
	})

	return &Output{CanonicalContext: ctxOut}, nil
}

func (h *Handler) buildIdentity(q map[string]interface{}) models.Identity {
	status := h.parseString(q["employmentStatus"])
	if status == "" {
		// Older questionnaires used currentStatus for the same answer.
		status = h.parseString(q["currentStatus"])
	}
	if status == "" {
		status = models.StatusUnknown
	}

	sponsor := h.parseString(q["sponsorType"])
	if sponsor == "" {
		sponsor = models.StatusUnknown
	}

	education := h.parseString(q["educationStatus"])
	if education == "" {
		education = models.StatusUnknown
	}

	marital := h.parseString(q["maritalStatus"])
	if marital == "" {
		marital = models.StatusUnknown
	}

	citizenship := h.parseString(q["citizenship"])
	if citizenship == "" {
		citizenship = models.StatusUnknown
	}

	return models.Identity{
		Citizenship:      citizenship,
		Age:              h.parseInt(q["age"]),
		EmploymentStatus: strings.ToLower(status),
		EmploymentMonths: h.parseInt(q["employmentMonths"]),
		EducationStatus:  strings.ToLower(education),
		SponsorType:      strings.ToLower(sponsor),
		MaritalStatus:    strings.ToLower(marital),
		HasChildren:      h.parseTriState(q["hasChildren"]),
	}
}

func (h *Handler) deriveFinancial(q map[string]interface{}, identity models.Identity, intent models.VisaIntent) models.FinancialProfile {
	bankBalance := h.parseFloat(q["bankBalance"])
	monthlyIncome := h.parseFloat(q["monthlyIncome"])
	sponsorFunds := h.parseFloat(q["sponsorFunds"])

	available := bankBalance
	if identity.SponsorType != "self" && identity.SponsorType != models.StatusUnknown {
		available += sponsorFunds
	}

	perDay, ok := h.config.FundsPerDay[intent.CountryCode]
	if !ok {
		perDay = h.config.DefaultFundsPerDay
	}
	days := intent.DurationDays
	if days < h.config.MinStayDays {
		days = h.config.MinStayDays
	}
	required := perDay * float64(days)

	ratio := 0.0
	if required > 0 {
		ratio = available / required
	}

	return models.FinancialProfile{
		BankBalance:           bankBalance,
		MonthlyIncome:         monthlyIncome,
		SponsorFunds:          sponsorFunds,
		RequiredFundsEstimate: required,
		SufficiencyRatio:      ratio,
		SufficiencyLabel:      h.financialLabel(ratio),
	}
}

func (h *Handler) financialLabel(ratio float64) string {
	switch {
	case ratio >= h.config.FinancialStrong:
		return "strong"
	case ratio >= h.config.FinancialSufficient:
		return "sufficient"
	case ratio >= h.config.FinancialBorderline:
		return "borderline"
	default:
		return "low"
	}
}

// deriveTies weights the anchoring factors: children outrank property, which
// outranks long employment, which outranks family presence alone. Employment
// contributes its full weight at 24 months and scales linearly below that.
func (h *Handler) deriveTies(q map[string]interface{}, identity models.Identity) models.TiesProfile {
	ownsProperty := h.parseTriState(q["ownsProperty"])
	familyPresent := h.parseTriState(q["familyInHomeCountry"])
	hasChildren := identity.HasChildren

	score := 0.0
	if hasChildren == models.TriYes {
		score += 0.35
	}
	if ownsProperty == models.TriYes {
		score += 0.30
	}
	if identity.EmploymentMonths > 0 {
		months := float64(identity.EmploymentMonths)
		if months > 24 {
			months = 24
		}
		score += 0.20 * (months / 24)
	}
	if familyPresent == models.TriYes {
		score += 0.15
	}

	label := "weak"
	if score >= h.config.TiesStrong {
		label = "strong"
	} else if score >= h.config.TiesModerate {
		label = "moderate"
	}

	return models.TiesProfile{
		Score:            score,
		Label:            label,
		OwnsProperty:     ownsProperty,
		FamilyPresent:    familyPresent,
		HasChildren:      hasChildren,
		EmploymentMonths: identity.EmploymentMonths,
	}
}

func (h *Handler) deriveTravel(q map[string]interface{}) models.TravelProfile {
	visited := h.parseInt(q["countriesVisited"])
	rejections := h.parseInt(q["previousRejections"])
	overstay := h.parseTriState(q["hasOverstay"])

	score := 0.0
	switch {
	case visited >= 6:
		score = 0.8
	case visited >= 3:
		score = 0.6
	case visited >= 1:
		score = 0.3
	}
	score -= 0.2 * float64(rejections)
	if overstay == models.TriYes {
		score -= 0.3
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	label := "limited"
	switch {
	case visited == 0:
		label = "none"
	case score >= 0.7:
		label = "strong"
	case score >= 0.4:
		label = "good"
	}

	return models.TravelProfile{
		Score:              score,
		Label:              label,
		CountriesVisited:   visited,
		PreviousRejections: rejections,
		HasOverstay:        overstay,
	}
}

func (h *Handler) deriveRisk(
	identity models.Identity,
	intent models.VisaIntent,
	financial models.FinancialProfile,
	ties models.TiesProfile,
	travel models.TravelProfile,
	lang string,
) models.RiskScore {
	percent := 70
	var riskFactors, positiveFactors []string

	switch financial.SufficiencyLabel {
	case "low":
		percent -= 20
		riskFactors = append(riskFactors, "Available funds are below the estimated requirement")
	case "borderline":
		percent -= 10
		riskFactors = append(riskFactors, "Available funds barely cover the estimated requirement")
	case "sufficient":
		positiveFactors = append(positiveFactors, "Sufficient funds for the planned stay")
	case "strong":
		percent += 10
		positiveFactors = append(positiveFactors, "Strong financial cushion for the planned stay")
	}

	switch ties.Label {
	case "weak":
		percent -= 15
		riskFactors = append(riskFactors, "Weak documented ties to home country")
	case "strong":
		percent += 10
		positiveFactors = append(positiveFactors, "Strong ties to home country")
	}

	switch travel.Label {
	case "none":
		percent -= 5
		riskFactors = append(riskFactors, "No international travel history")
	case "good":
		percent += 5
		positiveFactors = append(positiveFactors, "Good international travel history")
	case "strong":
		percent += 10
		positiveFactors = append(positiveFactors, "Strong international travel history")
	}

	if travel.PreviousRejections > 0 {
		percent -= 15 * travel.PreviousRejections
		riskFactors = append(riskFactors, "Previous visa rejection on record")
	}
	if travel.HasOverstay == models.TriYes {
		percent -= 20
		riskFactors = append(riskFactors, "Previous overstay on record")
	}

	// Employment wording is deliberately strict: an unknown status is never
	// described as unemployment.
	switch identity.EmploymentStatus {
	case "unemployed":
		percent -= 10
		riskFactors = append(riskFactors, "Applicant is currently unemployed")
	case "employed", "self_employed":
		if identity.EmploymentMonths >= 24 {
			percent += 5
			positiveFactors = append(positiveFactors, "Stable long-term employment")
		}
	}

	if intent.HasInvitation == models.TriYes {
		percent += 5
		positiveFactors = append(positiveFactors, "Official invitation provided")
	}

	// Probability stays inside [10, 90]; the engine never promises certainty
	// in either direction.
	if percent < 10 {
		percent = 10
	}
	if percent > 90 {
		percent = 90
	}

	level := "high"
	switch {
	case percent >= 70:
		level = "low"
	case percent >= 40:
		level = "medium"
	}

	return models.RiskScore{
		Level:              level,
		ProbabilityPercent: percent,
		RiskFactors:        riskFactors,
		PositiveFactors:    positiveFactors,
		Warning:            estimateWarnings[lang],
	}
}

func (h *Handler) parseString(raw interface{}) string {
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}

func (h *Handler) parseFloat(raw interface{}) float64 {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return v
	case int:
		if v < 0 {
			return 0
		}
		return float64(v)
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	default:
		return 0
	}
}

func (h *Handler) parseInt(raw interface{}) int {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return int(v)
	case int:
		if v < 0 {
			return 0
		}
		return v
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		n, err := strconv.Atoi(cleaned)
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

// parseTriState maps an absent or unreadable answer to Unknown, never to No.
func (h *Handler) parseTriState(raw interface{}) models.TriState {
	switch v := raw.(type) {
	case bool:
		if v {
			return models.TriYes
		}
		return models.TriNo
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true", "y", "ha", "да":
			return models.TriYes
		case "no", "false", "n", "yo'q", "нет":
			return models.TriNo
		}
		return models.TriUnknown
	default:
		return models.TriUnknown
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
