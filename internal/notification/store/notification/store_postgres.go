package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"preclear/internal/notification/models"
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

const notificationColumns = `id, user_id, title, body, entity, entity_id, dedup_key, read, created_at, read_at`

func (s *Postgres) Create(ctx context.Context, n *models.Notification) error {
	var dedupKey any
	if n.DedupKey != "" {
		dedupKey = n.DedupKey
	}
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(n.ID), uuid.UUID(n.UserID), n.Title, n.Body,
		n.Entity, n.EntityID, dedupKey, n.Read, n.CreatedAt, n.ReadAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`,
		uuid.UUID(notificationID))
	return scanRow(row)
}

func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkRead(ctx context.Context, notificationID id.NotificationID, userID id.UserID, at time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`, uuid.UUID(notificationID), uuid.UUID(userID), at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkAllRead(ctx context.Context, userID id.UserID, at time.Time) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT read
	`, uuid.UUID(userID), at)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(affected), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRow(row *sql.Row) (*models.Notification, error) {
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return n, err
}

func scanNotification(row scannable) (*models.Notification, error) {
	var (
		n        models.Notification
		rawID    uuid.UUID
		rawUser  uuid.UUID
		dedupKey sql.NullString
		readAt   sql.NullTime
	)
	err := row.Scan(&rawID, &rawUser, &n.Title, &n.Body, &n.Entity, &n.EntityID,
		&dedupKey, &n.Read, &n.CreatedAt, &readAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = id.NotificationID(rawID)
	n.UserID = id.UserID(rawUser)
	n.DedupKey = dedupKey.String
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return &n, nil
}
