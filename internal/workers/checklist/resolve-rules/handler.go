// internal/workers/checklist/resolve-rules/handler.go
package resolverules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"visabuddy-engine/internal/catalog"
	apperrors "visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
	"visabuddy-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "resolve-rules"
)

type Handler struct {
	config    *Config
	catalog   catalog.Resolver
	evaluator *Evaluator
	logger    logger.Logger
}

func NewHandler(config *Config, resolver catalog.Resolver, log logger.Logger) (*Handler, error) {
	if config == nil {
		config = LoadConfig()
	}
	evaluator, err := NewEvaluator()
	if err != nil {
		return nil, err
	}
	return &Handler{
		config:    config,
		catalog:   resolver,
		evaluator: evaluator,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
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
		h.failJob(client, job, apperrors.ErrCodeRuleEvaluationFailed, fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := apperrors.ErrCodeRuleEvaluationFailed
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	appCtx := &input.CanonicalContext
	country := appCtx.Intent.CountryCode
	visaType := appCtx.Intent.VisaType

	ruleSet, err := h.catalog.LatestApproved(ctx, country, visaType)
	if err != nil {
		return nil, err
	}

	activation := Activation(appCtx)
	base := make([]models.BaseDocumentEntry, 0, len(ruleSet.Documents))

	// Rules are evaluated in authoring order, which fixes the base ordering
	// downstream stages rely on.
	for _, rule := range ruleSet.Documents {
		applies := true
		if rule.Condition != "" {
			applies, err = h.evaluator.Evaluate(rule.Condition, activation)
			if err != nil {
				applies = rule.SafeDefault()
				h.logger.Warn("condition evaluation failed, using safe default", map[string]interface{}{
					"documentType": rule.DocumentType,
					"safeDefault":  applies,
					"error":        err.Error(),
				})
			}
		}
		if !applies {
			continue
		}

		base = append(base, models.BaseDocumentEntry{
			DocumentType: rule.DocumentType,
			Category:     rule.Category,
			Required:     rule.Required(),
			Group:        rule.Group,
		})
	}

	h.logger.Info("base document set resolved", map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"country":        country,
		"visaType":       visaType,
		"ruleSetVersion": ruleSet.Version,
		"documentCount":  len(base),
	})

	return &Output{
		CountryCode:    country,
		VisaType:       visaType,
		RuleSetVersion: ruleSet.Version,
		BaseDocuments:  base,
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
