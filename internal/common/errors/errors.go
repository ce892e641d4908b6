// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Rule catalog errors
	ErrCodeRuleSetNotFound          ErrorCode = "RULESET_NOT_FOUND"
	ErrCodeCatalogQueryFailed       ErrorCode = "CATALOG_QUERY_FAILED"
	ErrCodeCatalogQueryTimeout      ErrorCode = "CATALOG_QUERY_TIMEOUT"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"

	// Engine errors
	ErrCodeContextBuildFailed   ErrorCode = "CONTEXT_BUILD_FAILED"
	ErrCodeRuleEvaluationFailed ErrorCode = "RULE_EVALUATION_FAILED"

	// Collaborator (text generation) errors
	ErrCodeCollaboratorTimeout ErrorCode = "COLLABORATOR_TIMEOUT"
	ErrCodeEnrichmentFailed    ErrorCode = "ENRICHMENT_FAILED"
	ErrCodeUnparseableResponse ErrorCode = "UNPARSEABLE_RESPONSE"
	ErrCodeSchemaInvalid       ErrorCode = "SCHEMA_INVALID"

	// Verification errors
	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewRuleSetNotFoundError signals that no approved rule set exists for the key.
// Non-retryable: the caller must fall back to the legacy checklist path.
func NewRuleSetNotFoundError(countryCode, visaType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleSetNotFound,
		Message:   "No approved rule set for country/visa type",
		Details:   fmt.Sprintf("countryCode: %s, visaType: %s", countryCode, visaType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogQueryFailedError creates a retryable rule catalog read error.
func NewCatalogQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogQueryFailed,
		Message:   "Rule catalog query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogQueryTimeoutError creates a retryable catalog timeout error.
func NewCatalogQueryTimeoutError(countryCode, visaType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogQueryTimeout,
		Message:   "Rule catalog query timeout",
		Details:   fmt.Sprintf("countryCode: %s, visaType: %s", countryCode, visaType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewContextBuildFailedError creates a non-retryable context derivation error.
func NewContextBuildFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeContextBuildFailed,
		Message:   "Canonical context derivation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleEvaluationFailedError creates a non-retryable condition evaluation error.
// Individual rule conditions never throw; this covers rule set level defects
// such as a catalog entry that fails CEL compilation for every rule.
func NewRuleEvaluationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleEvaluationFailed,
		Message:   "Rule condition evaluation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCollaboratorTimeoutError creates a retryable text-generation timeout error.
func NewCollaboratorTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCollaboratorTimeout,
		Message:   "Text generation collaborator timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEnrichmentFailedError creates a retryable collaborator transport error.
func NewEnrichmentFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEnrichmentFailed,
		Message:   "Checklist enrichment call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnparseableResponseError signals that every parse strategy was exhausted.
// Non-retryable at this layer; the caller decides between hard failure
// (checklist) and conservative verdict (verification).
func NewUnparseableResponseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnparseableResponse,
		Message:   "Collaborator response is not parseable as JSON",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaInvalidError signals that validation still fails after one repair pass.
func NewSchemaInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaInvalid,
		Message:   "Collaborator response failed schema validation after repair",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewVerificationFailedError creates a retryable document verification error.
func NewVerificationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerificationFailed,
		Message:   "Document verification call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. The codes
// are identical; the map exists so a rename on either side stays explicit.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeRuleSetNotFound:          "RULESET_NOT_FOUND",
	ErrCodeCatalogQueryFailed:       "CATALOG_QUERY_FAILED",
	ErrCodeCatalogQueryTimeout:      "CATALOG_QUERY_TIMEOUT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeContextBuildFailed:       "CONTEXT_BUILD_FAILED",
	ErrCodeRuleEvaluationFailed:     "RULE_EVALUATION_FAILED",
	ErrCodeCollaboratorTimeout:      "COLLABORATOR_TIMEOUT",
	ErrCodeEnrichmentFailed:         "ENRICHMENT_FAILED",
	ErrCodeUnparseableResponse:      "UNPARSEABLE_RESPONSE",
	ErrCodeSchemaInvalid:            "SCHEMA_INVALID",
	ErrCodeVerificationFailed:       "VERIFICATION_FAILED",
}

// GetRetryCount returns the recommended BPMN retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogQueryFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeEnrichmentFailed,
		ErrCodeVerificationFailed:
		return 3 // Retryable technical errors

	case ErrCodeCatalogQueryTimeout:
		return 2

	case ErrCodeCollaboratorTimeout:
		return 1 // As per BPMN boundary event

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "RULESET") || strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "COLLABORATOR") || strings.Contains(codeStr, "ENRICHMENT") ||
		strings.Contains(codeStr, "RESPONSE") || strings.Contains(codeStr, "SCHEMA"):
		return "AI"
	case strings.Contains(codeStr, "VERIFICATION"):
		return "VERIFICATION"
	case strings.Contains(codeStr, "CONTEXT") || strings.Contains(codeStr, "RULE"):
		return "ENGINE"
	default:
		return "OTHER"
	}
}
