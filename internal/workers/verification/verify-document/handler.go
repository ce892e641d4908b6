// internal/workers/verification/verify-document/handler.go
package verifydocument

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
	"visabuddy-engine/internal/common/validation"
	"visabuddy-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "verify-document"
)

type Collaborator interface {
	Complete(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error)
}

type Handler struct {
	config       *Config
	collaborator Collaborator
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, collab Collaborator, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:       config,
		collaborator: collab,
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:          time.Now,
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
		h.failJob(client, job, apperrors.ErrCodeVerificationFailed, fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := apperrors.ErrCodeVerificationFailed
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			code = stdErr.Code
		}
		h.failJob(client, job, code, err.Error())
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// execute makes one collaborator call and normalizes whatever comes back
// into a safe verdict. Only a timeout propagates as an error; every other
// failure becomes the conservative fallback verdict so a broken model reply
// never blocks an application.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	raw, err := h.collaborator.Complete(ctx, "verify", systemPrompt, buildUserPrompt(input, h.config.MaxDocumentChars))
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == apperrors.ErrCodeCollaboratorTimeout {
			return nil, err
		}
		return h.finish(input, h.fallbackVerdict(fmt.Sprintf("collaborator call failed: %v", err))), nil
	}

	result, parseErr := h.parseVerdict(raw)
	if parseErr != nil {
		h.logger.Warn("verdict could not be parsed, using conservative fallback", map[string]interface{}{
			"documentId": input.DocumentID,
			"error":      parseErr.Error(),
		})
		return h.finish(input, h.fallbackVerdict(parseErr.Error())), nil
	}

	h.applyExpiryGuard(input, result)

	return h.finish(input, result), nil
}

func (h *Handler) finish(input *Input, result *models.DocumentCheckResult) *Output {
	metrics.VerificationVerdicts.WithLabelValues(result.Status).Inc()
	h.logger.Info("document verified", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"documentId":    input.DocumentID,
		"documentType":  input.DocumentType,
		"status":        result.Status,
		"embassyRisk":   result.EmbassyRiskLevel,
	})
	return &Output{CheckResult: *result}
}

// parseVerdict runs the extraction ladder over the raw reply and normalizes
// the decoded verdict. A verdict that parses but carries an unknown status
// is as useless as no verdict, so it fails the same way.
func (h *Handler) parseVerdict(raw string) (*models.DocumentCheckResult, error) {
	extracted, _, err := validation.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("no JSON object in collaborator reply: %w", err)
	}

	var result models.DocumentCheckResult
	if err := json.Unmarshal([]byte(extracted), &result); err != nil {
		return nil, fmt.Errorf("verdict is not valid JSON: %w", err)
	}

	result.Status = strings.ToUpper(strings.TrimSpace(result.Status))
	if !models.ValidStatus(result.Status) {
		return nil, fmt.Errorf("unknown verdict status %q", result.Status)
	}

	result.EmbassyRiskLevel = strings.ToUpper(strings.TrimSpace(result.EmbassyRiskLevel))
	if !models.ValidEmbassyRisk(result.EmbassyRiskLevel) {
		result.EmbassyRiskLevel = models.EmbassyRiskMedium
	}

	if result.ShortReason == "" {
		result.ShortReason = "No reason provided by the verifier"
	}

	h.truncateFields(&result)

	return &result, nil
}

// fallbackVerdict is the verdict used when no usable verdict exists. It is
// never APPROVED and always says why in technical_notes.
func (h *Handler) fallbackVerdict(reason string) *models.DocumentCheckResult {
	result := &models.DocumentCheckResult{
		Status:           models.CheckNeedFix,
		ShortReason:      "The document could not be verified automatically, please re-upload a clearer copy",
		EmbassyRiskLevel: models.EmbassyRiskMedium,
		TechnicalNotes:   "automatic fallback: " + reason,
		Notes: &models.TrilingualNotes{
			En: "We could not verify this document automatically. Please upload a clear, complete copy.",
			Uz: "Bu hujjatni avtomatik tekshirib bo'lmadi. Iltimos, aniq va to'liq nusxasini yuklang.",
			Ru: "Не удалось автоматически проверить этот документ. Пожалуйста, загрузите четкую полную копию.",
		},
	}
	h.truncateFields(result)
	return result
}

// applyExpiryGuard downgrades an approval when the extracted expiry date
// falls inside the required validity window. The guard trusts extraction over
// the collaborator: an expired document is never approved.
func (h *Handler) applyExpiryGuard(input *Input, result *models.DocumentCheckResult) {
	if result.Status != models.CheckApproved {
		return
	}
	if input.ExtractionMetadata == nil || input.ExtractionMetadata.ExpiryDate == "" {
		return
	}

	expiry, err := time.Parse("2006-01-02", input.ExtractionMetadata.ExpiryDate)
	if err != nil {
		return
	}

	deadline := h.now().UTC().Truncate(24 * time.Hour)
	if input.TravelDate != "" {
		if travel, err := time.Parse("2006-01-02", input.TravelDate); err == nil {
			deadline = travel
		}
	}
	deadline = deadline.AddDate(0, input.MinValidityMonths, 0)

	if !expiry.Before(deadline) {
		return
	}

	result.Status = models.CheckRejected
	result.EmbassyRiskLevel = models.EmbassyRiskHigh
	result.ShortReason = fmt.Sprintf("Document expires %s, before the required validity date %s",
		expiry.Format("2006-01-02"), deadline.Format("2006-01-02"))
	guardNote := fmt.Sprintf("expiry guard: extracted expiry %s precedes required validity end %s",
		expiry.Format("2006-01-02"), deadline.Format("2006-01-02"))
	if result.TechnicalNotes != "" {
		result.TechnicalNotes += "; " + guardNote
	} else {
		result.TechnicalNotes = guardNote
	}
	if result.Details == nil {
		result.Details = &models.ValidationDetails{}
	}
	datesValid := false
	result.Details.DatesValid = &datesValid

	h.truncateFields(result)
}

func (h *Handler) truncateFields(result *models.DocumentCheckResult) {
	result.ShortReason = validation.TruncateString(result.ShortReason, h.config.MaxShortReason)
	result.TechnicalNotes = validation.TruncateString(result.TechnicalNotes, h.config.MaxTechnicalNotes)
	if result.Notes != nil {
		result.Notes.En = validation.TruncateString(result.Notes.En, h.config.MaxNotes)
		result.Notes.Uz = validation.TruncateString(result.Notes.Uz, h.config.MaxNotes)
		result.Notes.Ru = validation.TruncateString(result.Notes.Ru, h.config.MaxNotes)
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
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

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode apperrors.ErrorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errorCode)).Inc()

	bpmnErr := apperrors.ConvertToBPMNError(&apperrors.StandardError{
		Code:      errorCode,
		Message:   errorMessage,
		Retryable: apperrors.IsRetryableErrorCode(errorCode),
		Timestamp: time.Now().UTC(),
	})

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    bpmnErr.Code,
		"errorMessage": errorMessage,
		"retryable":    bpmnErr.Retryable,
		"retries":      bpmnErr.Retries,
	})

	if bpmnErr.Retryable {
		h.retryJob(client, job, bpmnErr)
		return
	}

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

// retryJob hands a transient failure back to the broker with a retry budget
// instead of raising a BPMN error. The budget is the smaller of the job's
// remaining retries minus one and the per-code recommendation, so a job
// never retries past either limit.
func (h *Handler) retryJob(client worker.JobClient, job entities.Job, bpmnErr *apperrors.BPMNError) {
	retries := job.Retries - 1
	if retries < 0 {
		retries = 0
	}
	if int32(bpmnErr.Retries) < retries {
		retries = int32(bpmnErr.Retries)
	}

	failCmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(fmt.Sprintf("[%s] %s", bpmnErr.Code, bpmnErr.Message))

	sendCmd := commands.DispatchFailJobCommand(failCmd)
	if varCmd, varErr := failCmd.VariablesFromMap(bpmnErr.ToErrorVariables()); varErr == nil {
		sendCmd = varCmd
	} else {
		h.logger.Error("failed to set error variables, sending without them", map[string]interface{}{
			"error": varErr,
		})
	}

	if _, sendErr := sendCmd.Send(context.Background()); sendErr != nil {
		h.logger.Error("failed to return job for retry", map[string]interface{}{
			"error": sendErr,
		})
	}
}
