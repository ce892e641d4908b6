// internal/workers/checklist/validate-checklist/handler.go
package validatechecklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
	"visabuddy-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-checklist"
)

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
		h.failJob(client, job, apperrors.ErrCodeUnparseableResponse, fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := apperrors.ErrCodeSchemaInvalid
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

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	result, err := Repair(input.RawDraft, input.BaseDocuments)
	if err != nil {
		metrics.ChecklistValidationOutcomes.WithLabelValues(OutcomeFailed).Inc()
		h.logger.Warn("draft could not be repaired", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"draftBytes":    len(input.RawDraft),
			"error":         err.Error(),
		})
		return nil, err
	}

	metrics.ChecklistValidationOutcomes.WithLabelValues(result.Outcome).Inc()
	if result.Dropped > 0 {
		metrics.ChecklistDriftDropped.Add(float64(result.Dropped))
	}
	if result.Synthesized > 0 {
		metrics.ChecklistDriftSynthesized.Add(float64(result.Synthesized))
	}

	if result.Outcome == OutcomeRepaired {
		h.logger.Info("draft repaired", map[string]interface{}{
			"applicationId":    input.ApplicationID,
			"extractionMethod": string(result.ExtractionMethod),
			"coerced":          result.Coerced,
			"dropped":          result.Dropped,
			"synthesized":      result.Synthesized,
		})
	}

	var notes []string
	if result.Notes != "" {
		notes = append(notes, result.Notes)
	}

	response := models.ChecklistResponse{
		Type:           "checklist",
		CountryCode:    input.CountryCode,
		VisaType:       input.VisaType,
		RuleSetVersion: input.RuleSetVersion,
		Source:         "engine",
		Checklist:      result.Items,
		Notes:          notes,
	}

	return &Output{
		ChecklistResponse: response,
		ValidationOutcome: result.Outcome,
	}, nil
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
