package rule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"preclear/internal/rules/models"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
	txcontext "preclear/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// Postgres is the production Store.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const ruleColumns = `id, code, country, hs_prefix, version, active,
	effective_from, effective_to, rule_json, created_by, created_at, updated_at`

func (s *Postgres) CreateRule(ctx context.Context, r *models.Rule) error {
	body, err := json.Marshal(r.Body)
	if err != nil {
		return fmt.Errorf("marshal rule body: %w", err)
	}
	var createdBy any
	if r.CreatedBy != nil {
		createdBy = uuid.UUID(*r.CreatedBy)
	}
	query := `
		INSERT INTO import_export_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID), r.Code, r.Country, r.HSPrefix, r.Version, r.Active,
		r.EffectiveFrom, r.EffectiveTo, body, createdBy, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *Postgres) GetRule(ctx context.Context, ruleID id.RuleID) (*models.Rule, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM import_export_rules WHERE id = $1`, uuid.UUID(ruleID))
	return scanRule(row)
}

func (s *Postgres) ListRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM import_export_rules ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return collectRules(rows)
}

func (s *Postgres) ActiveRules(ctx context.Context, country string, at time.Time) ([]models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM import_export_rules
		WHERE active
		  AND (country = '' OR country = $1)
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to > $2)
		ORDER BY code ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, country, at)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return collectRules(rows)
}

func (s *Postgres) LatestVersion(ctx context.Context, code string) (int, error) {
	var latest int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM import_export_rules WHERE code = $1`, code,
	).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("latest rule version: %w", err)
	}
	return latest, nil
}

func (s *Postgres) DeactivateCode(ctx context.Context, code string, now time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE import_export_rules SET active = false, updated_at = $2 WHERE code = $1 AND active`,
		code, now,
	)
	if err != nil {
		return fmt.Errorf("deactivate rule code: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateRule(ctx context.Context, r *models.Rule) error {
	body, err := json.Marshal(r.Body)
	if err != nil {
		return fmt.Errorf("marshal rule body: %w", err)
	}
	query := `
		UPDATE import_export_rules
		SET country = $2, hs_prefix = $3, active = $4,
		    effective_from = $5, effective_to = $6, rule_json = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID), r.Country, r.HSPrefix, r.Active,
		r.EffectiveFrom, r.EffectiveTo, body, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const requestColumns = `id, rule_code, country, hs_prefix, proposed_json, justification,
	status, requested_by, decided_by, decision_comments, created_at, updated_at, decided_at`

func (s *Postgres) CreateChangeRequest(ctx context.Context, c *models.ChangeRequest) error {
	proposed, err := json.Marshal(c.Proposed)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	query := `
		INSERT INTO rule_change_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.RuleCode, c.Country, c.HSPrefix, proposed, c.Justification,
		string(c.Status), nullableID(c.RequestedBy), nullableID(c.DecidedBy),
		c.DecisionComments, c.CreatedAt, c.UpdatedAt, c.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert change request: %w", err)
	}
	return nil
}

func (s *Postgres) GetChangeRequest(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM rule_change_requests WHERE id = $1`, uuid.UUID(requestID))
	return scanChangeRequest(row)
}

func (s *Postgres) ListChangeRequests(ctx context.Context, status models.ChangeRequestStatus) ([]models.ChangeRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM rule_change_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	defer rows.Close()

	var out []models.ChangeRequest
	for rows.Next() {
		c, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateChangeRequest(ctx context.Context, c *models.ChangeRequest) error {
	proposed, err := json.Marshal(c.Proposed)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	query := `
		UPDATE rule_change_requests
		SET proposed_json = $2, justification = $3, status = $4, decided_by = $5,
		    decision_comments = $6, updated_at = $7, decided_at = $8
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), proposed, c.Justification, string(c.Status),
		nullableID(c.DecidedBy), c.DecisionComments, c.UpdatedAt, c.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("update change request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update change request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableID(userID *id.UserID) any {
	if userID == nil {
		return nil
	}
	return uuid.UUID(*userID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectRules(rows *sql.Rows) ([]models.Rule, error) {
	defer rows.Close()
	var out []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRule(sc rowScanner) (*models.Rule, error) {
	var (
		r         models.Rule
		rawID     uuid.UUID
		body      []byte
		createdBy sql.Null[uuid.UUID]
	)
	err := sc.Scan(&rawID, &r.Code, &r.Country, &r.HSPrefix, &r.Version, &r.Active,
		&r.EffectiveFrom, &r.EffectiveTo, &body, &createdBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	r.ID = id.RuleID(rawID)
	if createdBy.Valid {
		uid := id.UserID(createdBy.V)
		r.CreatedBy = &uid
	}
	if err := json.Unmarshal(body, &r.Body); err != nil {
		return nil, fmt.Errorf("unmarshal rule body: %w", err)
	}
	return &r, nil
}

func scanChangeRequest(sc rowScanner) (*models.ChangeRequest, error) {
	var (
		c           models.ChangeRequest
		rawID       uuid.UUID
		proposed    []byte
		rawStatus   string
		requestedBy sql.Null[uuid.UUID]
		decidedBy   sql.Null[uuid.UUID]
	)
	err := sc.Scan(&rawID, &c.RuleCode, &c.Country, &c.HSPrefix, &proposed, &c.Justification,
		&rawStatus, &requestedBy, &decidedBy, &c.DecisionComments, &c.CreatedAt, &c.UpdatedAt, &c.DecidedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan change request: %w", err)
	}
	c.ID = id.ChangeRequestID(rawID)
	c.Status = models.ChangeRequestStatus(rawStatus)
	if requestedBy.Valid {
		uid := id.UserID(requestedBy.V)
		c.RequestedBy = &uid
	}
	if decidedBy.Valid {
		uid := id.UserID(decidedBy.V)
		c.DecidedBy = &uid
	}
	if err := json.Unmarshal(proposed, &c.Proposed); err != nil {
		return nil, fmt.Errorf("unmarshal proposal: %w", err)
	}
	return &c, nil
}
