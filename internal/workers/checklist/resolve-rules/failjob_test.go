// internal/workers/checklist/resolve-rules/failjob_test.go
package resolverules

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	apperrors "visabuddy-engine/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJobClient records which command the handler chose on failure: a fail
// command returns the job for retry, a throw command raises a BPMN error.
type fakeJobClient struct {
	completed *fakeCompleteJobCommand
	failed    *fakeFailJobCommand
	thrown    *fakeThrowErrorCommand
}

func (c *fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.completed = &fakeCompleteJobCommand{}
	return c.completed
}

func (c *fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.failed = &fakeFailJobCommand{}
	return c.failed
}

func (c *fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.thrown = &fakeThrowErrorCommand{}
	return c.thrown
}

type fakeCompleteJobCommand struct {
	sent bool
}

func (c *fakeCompleteJobCommand) JobKey(int64) commands.CompleteJobCommandStep2 { return c }
func (c *fakeCompleteJobCommand) VariablesFromString(string) (commands.DispatchCompleteJobCommand, error) {
	return c, nil
}
func (c *fakeCompleteJobCommand) VariablesFromStringer(fmt.Stringer) (commands.DispatchCompleteJobCommand, error) {
	return c, nil
}
func (c *fakeCompleteJobCommand) VariablesFromMap(map[string]interface{}) (commands.DispatchCompleteJobCommand, error) {
	return c, nil
}
func (c *fakeCompleteJobCommand) VariablesFromObject(interface{}) (commands.DispatchCompleteJobCommand, error) {
	return c, nil
}
func (c *fakeCompleteJobCommand) VariablesFromObjectIgnoreOmitempty(interface{}) (commands.DispatchCompleteJobCommand, error) {
	return c, nil
}
func (c *fakeCompleteJobCommand) Send(context.Context) (*pb.CompleteJobResponse, error) {
	c.sent = true
	return &pb.CompleteJobResponse{}, nil
}

type fakeFailJobCommand struct {
	jobKey    int64
	retries   int32
	message   string
	variables map[string]interface{}
	sent      bool
}

func (c *fakeFailJobCommand) JobKey(key int64) commands.FailJobCommandStep2 {
	c.jobKey = key
	return c
}

func (c *fakeFailJobCommand) Retries(retries int32) commands.FailJobCommandStep3 {
	c.retries = retries
	return c
}

func (c *fakeFailJobCommand) RetryBackoff(time.Duration) commands.FailJobCommandStep3 { return c }

func (c *fakeFailJobCommand) ErrorMessage(message string) commands.FailJobCommandStep3 {
	c.message = message
	return c
}

func (c *fakeFailJobCommand) VariablesFromString(string) (commands.DispatchFailJobCommand, error) {
	return c, nil
}
func (c *fakeFailJobCommand) VariablesFromStringer(fmt.Stringer) (commands.DispatchFailJobCommand, error) {
	return c, nil
}
func (c *fakeFailJobCommand) VariablesFromMap(variables map[string]interface{}) (commands.DispatchFailJobCommand, error) {
	c.variables = variables
	return c, nil
}
func (c *fakeFailJobCommand) VariablesFromObject(interface{}) (commands.DispatchFailJobCommand, error) {
	return c, nil
}
func (c *fakeFailJobCommand) VariablesFromObjectIgnoreOmitempty(interface{}) (commands.DispatchFailJobCommand, error) {
	return c, nil
}
func (c *fakeFailJobCommand) Send(context.Context) (*pb.FailJobResponse, error) {
	c.sent = true
	return &pb.FailJobResponse{}, nil
}

type fakeThrowErrorCommand struct {
	jobKey  int64
	code    string
	message string
	sent    bool
}

func (c *fakeThrowErrorCommand) JobKey(key int64) commands.ThrowErrorCommandStep2 {
	c.jobKey = key
	return c
}

func (c *fakeThrowErrorCommand) ErrorCode(code string) commands.DispatchThrowErrorCommand {
	c.code = code
	return c
}

func (c *fakeThrowErrorCommand) ErrorMessage(message string) commands.DispatchThrowErrorCommand {
	c.message = message
	return c
}

func (c *fakeThrowErrorCommand) VariablesFromString(string) (commands.DispatchThrowErrorCommand, error) {
	return c, nil
}
func (c *fakeThrowErrorCommand) VariablesFromStringer(fmt.Stringer) (commands.DispatchThrowErrorCommand, error) {
	return c, nil
}
func (c *fakeThrowErrorCommand) VariablesFromMap(map[string]interface{}) (commands.DispatchThrowErrorCommand, error) {
	return c, nil
}
func (c *fakeThrowErrorCommand) VariablesFromObject(interface{}) (commands.DispatchThrowErrorCommand, error) {
	return c, nil
}
func (c *fakeThrowErrorCommand) VariablesFromObjectIgnoreOmitempty(interface{}) (commands.DispatchThrowErrorCommand, error) {
	return c, nil
}
func (c *fakeThrowErrorCommand) Send(context.Context) (*pb.ThrowErrorResponse, error) {
	c.sent = true
	return &pb.ThrowErrorResponse{}, nil
}

func makeJob(t *testing.T, retries int32) entities.Job {
	t.Helper()
	variables, err := json.Marshal(Input{ApplicationID: "app-1", CanonicalContext: sampleContext()})
	require.NoError(t, err)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       42,
		Retries:   retries,
		Variables: string(variables),
	}}
}

// A transient catalog failure goes back to the broker with a decremented
// retry budget, not a BPMN error.
func TestHandleRetryableFailureReturnsJobForRetry(t *testing.T) {
	resolver := &stubResolver{err: apperrors.NewCatalogQueryFailedError(fmt.Errorf("connection refused"))}
	h := newTestHandler(t, resolver)
	client := &fakeJobClient{}

	h.Handle(client, makeJob(t, 3))

	require.NotNil(t, client.failed)
	assert.True(t, client.failed.sent)
	assert.Equal(t, int64(42), client.failed.jobKey)
	assert.Equal(t, int32(2), client.failed.retries)
	assert.Contains(t, client.failed.message, "CATALOG_QUERY_FAILED")
	assert.Equal(t, "CATALOG_QUERY_FAILED", client.failed.variables["originalErrorCode"])
	assert.Nil(t, client.thrown)
}

func TestHandleRetryBudgetNeverExceedsPerCodeCount(t *testing.T) {
	resolver := &stubResolver{err: apperrors.NewCatalogQueryTimeoutError("US", "tourist")}
	h := newTestHandler(t, resolver)
	client := &fakeJobClient{}

	h.Handle(client, makeJob(t, 10))

	require.NotNil(t, client.failed)
	assert.Equal(t, int32(2), client.failed.retries)
}

func TestHandleLastAttemptLeavesNoRetries(t *testing.T) {
	resolver := &stubResolver{err: apperrors.NewCatalogQueryFailedError(fmt.Errorf("connection refused"))}
	h := newTestHandler(t, resolver)
	client := &fakeJobClient{}

	h.Handle(client, makeJob(t, 1))

	require.NotNil(t, client.failed)
	assert.Equal(t, int32(0), client.failed.retries)
}

// A missing rule set is a business outcome. It raises a BPMN error so the
// process can route to the fallback path instead of retrying.
func TestHandleBusinessFailureThrowsBPMNError(t *testing.T) {
	resolver := &stubResolver{err: apperrors.NewRuleSetNotFoundError("XX", "tourist")}
	h := newTestHandler(t, resolver)
	client := &fakeJobClient{}

	h.Handle(client, makeJob(t, 3))

	require.NotNil(t, client.thrown)
	assert.True(t, client.thrown.sent)
	assert.Equal(t, int64(42), client.thrown.jobKey)
	assert.Equal(t, "RULESET_NOT_FOUND", client.thrown.code)
	assert.Nil(t, client.failed)
}
