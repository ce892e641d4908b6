// internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"visabuddy-engine/internal/common/database"
	"visabuddy-engine/internal/common/errors"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/models"

	"github.com/google/uuid"
)

// Store reads and writes versioned rule sets in PostgreSQL. Only rows with
// approved = true are ever served to the engine; unapproved versions exist
// solely for the authoring workflow.
type Store struct {
	db           *database.PostgresClient
	logger       logger.Logger
	queryTimeout time.Duration
}

func NewStore(db *database.PostgresClient, log logger.Logger, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Store{
		db:           db,
		logger:       log,
		queryTimeout: queryTimeout,
	}
}

const latestApprovedQuery = `
SELECT id, country_code, visa_type, version, approved, payload, updated_at
FROM visa_rule_sets
WHERE country_code = $1 AND visa_type = $2 AND approved = TRUE
ORDER BY version DESC
LIMIT 1`

// ruleSetPayload is the JSONB document stored alongside the indexed columns.
type ruleSetPayload struct {
	Documents      []models.RequiredDocumentRule `json:"documents"`
	FinancialRule  *models.FinancialRule         `json:"financial_rule,omitempty"`
	ProcessingRule *models.ProcessingRule        `json:"processing_rule,omitempty"`
}

// LatestApproved returns the highest approved version for a country/visa pair.
func (s *Store) LatestApproved(ctx context.Context, countryCode, visaType string) (*models.RuleSet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	row := s.db.QueryRow(ctx, latestApprovedQuery, countryCode, visaType)

	var (
		rs      models.RuleSet
		rawJSON []byte
	)
	err := row.Scan(&rs.ID, &rs.CountryCode, &rs.VisaType, &rs.Version, &rs.Approved, &rawJSON, &rs.UpdatedAt)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, errors.NewRuleSetNotFoundError(countryCode, visaType)
	case stderrors.Is(err, context.DeadlineExceeded):
		return nil, errors.NewCatalogQueryTimeoutError(countryCode, visaType)
	case err != nil:
		s.logger.Error("rule set query failed", map[string]interface{}{
			"country_code": countryCode,
			"visa_type":    visaType,
			"error":        err.Error(),
		})
		return nil, errors.NewCatalogQueryFailedError(err)
	}

	var payload ruleSetPayload
	if err := json.Unmarshal(rawJSON, &payload); err != nil {
		return nil, errors.NewCatalogQueryFailedError(fmt.Errorf("corrupt rule set payload %s: %w", rs.ID, err))
	}
	rs.Documents = payload.Documents
	rs.FinancialRule = payload.FinancialRule
	rs.ProcessingRule = payload.ProcessingRule

	return &rs, nil
}

const insertRuleSetQuery = `
INSERT INTO visa_rule_sets (id, country_code, visa_type, version, approved, payload, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const nextVersionQuery = `
SELECT COALESCE(MAX(version), 0) + 1
FROM visa_rule_sets
WHERE country_code = $1 AND visa_type = $2`

// Save inserts a rule set as the next version for its country/visa pair.
// The assigned ID and version are written back into rs.
func (s *Store) Save(ctx context.Context, rs *models.RuleSet) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var version int
	if err := s.db.QueryRow(ctx, nextVersionQuery, rs.CountryCode, rs.VisaType).Scan(&version); err != nil {
		return errors.NewCatalogQueryFailedError(err)
	}

	payload, err := json.Marshal(ruleSetPayload{
		Documents:      rs.Documents,
		FinancialRule:  rs.FinancialRule,
		ProcessingRule: rs.ProcessingRule,
	})
	if err != nil {
		return errors.NewCatalogQueryFailedError(err)
	}

	rs.ID = uuid.NewString()
	rs.Version = version
	rs.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(ctx, insertRuleSetQuery,
		rs.ID, rs.CountryCode, rs.VisaType, rs.Version, rs.Approved, payload, rs.UpdatedAt)
	if err != nil {
		s.logger.Error("rule set insert failed", map[string]interface{}{
			"country_code": rs.CountryCode,
			"visa_type":    rs.VisaType,
			"version":      rs.Version,
			"error":        err.Error(),
		})
		return errors.NewCatalogQueryFailedError(err)
	}

	s.logger.Info("rule set saved", map[string]interface{}{
		"id":           rs.ID,
		"country_code": rs.CountryCode,
		"visa_type":    rs.VisaType,
		"version":      rs.Version,
		"approved":     rs.Approved,
	})
	return nil
}

const approveQuery = `
UPDATE visa_rule_sets
SET approved = (version = $4), updated_at = $3
WHERE country_code = $1 AND visa_type = $2
  AND (version = $4 OR approved = TRUE)
  AND EXISTS (
    SELECT 1 FROM visa_rule_sets target
    WHERE target.country_code = $1 AND target.visa_type = $2 AND target.version = $4
  )`

// Approve marks a specific version as servable. Any other approved version
// for the same country/visa pair is demoted in the same statement, so at
// most one version is ever servable. The EXISTS guard keeps an unknown
// version from demoting anything.
func (s *Store) Approve(ctx context.Context, countryCode, visaType string, version int) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.Exec(ctx, approveQuery, countryCode, visaType, time.Now().UTC(), version)
	if err != nil {
		return errors.NewCatalogQueryFailedError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewCatalogQueryFailedError(err)
	}
	if affected == 0 {
		return errors.NewRuleSetNotFoundError(countryCode, visaType)
	}
	return nil
}
