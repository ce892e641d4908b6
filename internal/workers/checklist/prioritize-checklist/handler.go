// internal/workers/checklist/prioritize-checklist/handler.go
package prioritizechecklist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
	"visabuddy-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "prioritize-checklist"
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
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "PRIORITIZATION_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// execute reorders the checklist by applicant risk signals. Items only move
// up, never down: each signal subtracts slots from the matching groups and
// the stable sort keeps the drafted order for everything else.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	boosted := boostedGroups(&input.CanonicalContext)

	items := make([]models.ChecklistItem, len(input.ChecklistResponse.Checklist))
	copy(items, input.ChecklistResponse.Checklist)

	for i := range items {
		priority := items[i].Priority
		if priority < 1 {
			priority = i + 1
		}
		priority -= h.config.Boost * boosted[items[i].Group]
		if priority < 1 {
			priority = 1
		}
		items[i].Priority = priority
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Priority < items[b].Priority
	})

	// Renumber so callers see a dense 1..n sequence.
	for i := range items {
		items[i].Priority = i + 1
	}

	response := input.ChecklistResponse
	response.Checklist = items

	if len(boosted) > 0 {
		h.logger.Info("checklist reprioritized", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"boostedGroups": groupNames(boosted),
		})
	}

	return &Output{ChecklistResponse: response}, nil
}

// boostedGroups counts boost signals per document group.
func boostedGroups(appCtx *models.CanonicalContext) map[string]int {
	boosts := make(map[string]int)

	if appCtx.Risk.Level == "high" {
		boosts[models.GroupFinancial]++
		boosts[models.GroupTies]++
		boosts[models.GroupEmployment]++
	}
	if appCtx.Financial.SufficiencyRatio < 1.0 {
		boosts[models.GroupFinancial]++
	}
	if appCtx.Ties.Score < 0.5 {
		boosts[models.GroupTies]++
	}
	if appCtx.TravelHistory.PreviousRejections > 0 {
		boosts[models.GroupFinancial]++
		boosts[models.GroupTies]++
	}

	return boosts
}

func groupNames(boosts map[string]int) []string {
	names := make([]string, 0, len(boosts))
	for name := range boosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
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
