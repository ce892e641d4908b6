// internal/workers/checklist/enrich-checklist/handler.go
package enrichchecklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "enrich-checklist"
)

// Collaborator is the single operation this worker needs from the language
// model client.
type Collaborator interface {
	Complete(ctx context.Context, operation, systemPrompt, userPrompt string) (string, error)
}

type Handler struct {
	config       *Config
	collaborator Collaborator
	logger       logger.Logger
}

func NewHandler(config *Config, collab Collaborator, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:       config,
		collaborator: collab,
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		h.failJob(client, job, apperrors.ErrCodeEnrichmentFailed, fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := apperrors.ErrCodeEnrichmentFailed
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

// execute makes exactly one collaborator call and hands the raw draft to the
// validation stage untouched. An empty base set short-circuits: there is
// nothing to enrich and nothing worth a model round trip.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.BaseDocuments) == 0 {
		return &Output{RawDraft: `{"checklist": []}`}, nil
	}

	userPrompt, err := buildUserPrompt(&input.CanonicalContext, input.BaseDocuments)
	if err != nil {
		return nil, apperrors.NewEnrichmentFailedError(err)
	}

	raw, err := h.collaborator.Complete(ctx, "enrich", systemPrompt, userPrompt)
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			return nil, err
		}
		return nil, apperrors.NewEnrichmentFailedError(err)
	}

	h.logger.Info("checklist draft received", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"country":       input.CountryCode,
		"visaType":      input.VisaType,
		"draftBytes":    len(raw),
	})

	return &Output{RawDraft: raw}, nil
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
