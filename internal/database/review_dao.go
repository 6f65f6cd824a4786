package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loreguard-ai/loreguard/internal/redact"
	"github.com/loreguard-ai/loreguard/internal/types"
)

// ReviewDAO persists review queue entries. It implements
// redact.ReviewStore, and additionally serves the reviewer-facing list and
// resolve operations plus the expiry sweep.
type ReviewDAO struct {
	db *DB
}

// NewReviewDAO creates a review DAO.
func NewReviewDAO(db *DB) *ReviewDAO {
	return &ReviewDAO{db: db}
}

const reviewColumns = `id, tenant_id, lesson_id, original_title, original_content,
	redacted_title, redacted_content, redaction_findings, status, created_at, expires_at`

// Enqueue inserts a pending entry.
func (d *ReviewDAO) Enqueue(ctx context.Context, entry *redact.ReviewQueueEntry) error {
	findings, err := json.Marshal(entry.RedactionFindings)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "marshal findings", err)
	}

	_, err = d.db.conn.ExecContext(ctx, `
		INSERT INTO review_queue (`+reviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.TenantID, entry.LessonID.String(),
		entry.OriginalTitle, entry.OriginalContent,
		entry.RedactedTitle, entry.RedactedContent, string(findings),
		string(entry.Status), entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "enqueue review entry", err)
	}
	return nil
}

// GetEntry fetches one entry by ID.
func (d *ReviewDAO) GetEntry(ctx context.Context, id types.ID) (*redact.ReviewQueueEntry, error) {
	row := d.db.conn.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM review_queue WHERE id = ?`, id.String())
	entry, err := scanReviewEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.REVIEW_ENTRY_NOT_FOUND,
			fmt.Sprintf("review entry %s not found", id))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "get review entry", err)
	}
	return entry, nil
}

// ListPending returns a tenant's pending, unexpired entries, oldest first.
func (d *ReviewDAO) ListPending(ctx context.Context, tenantID string, now time.Time) ([]*redact.ReviewQueueEntry, error) {
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM review_queue
		WHERE tenant_id = ? AND status = 'pending' AND expires_at > ?
		ORDER BY created_at`, tenantID, now)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "list pending reviews", err)
	}
	defer rows.Close()

	var entries []*redact.ReviewQueueEntry
	for rows.Next() {
		entry, err := scanReviewEntry(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "scan review entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "iterate review entries", err)
	}
	return entries, nil
}

// Resolve moves a pending entry to approved or rejected.
func (d *ReviewDAO) Resolve(ctx context.Context, id types.ID, status redact.ReviewStatus) error {
	if status != redact.ReviewStatusApproved && status != redact.ReviewStatusRejected {
		return types.NewError(types.DB_QUERY_FAILED,
			fmt.Sprintf("cannot resolve to status %q", status))
	}

	res, err := d.db.conn.ExecContext(ctx, `
		UPDATE review_queue SET status = ?
		WHERE id = ? AND status = 'pending'`, string(status), id.String())
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "resolve review entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "rows affected", err)
	}
	if n == 0 {
		return types.NewError(types.REVIEW_ENTRY_NOT_FOUND,
			fmt.Sprintf("no pending review entry %s", id))
	}
	return nil
}

// DeleteExpired removes pending entries past their expiry. Returns the
// number of entries swept.
func (d *ReviewDAO) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.db.conn.ExecContext(ctx, `
		DELETE FROM review_queue
		WHERE status = 'pending' AND expires_at <= ?`, now)
	if err != nil {
		return 0, types.WrapError(types.DB_QUERY_FAILED, "sweep expired reviews", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, types.WrapError(types.DB_QUERY_FAILED, "rows affected", err)
	}
	return n, nil
}

func scanReviewEntry(row rowScanner) (*redact.ReviewQueueEntry, error) {
	var (
		entry    redact.ReviewQueueEntry
		id       string
		lessonID string
		findings string
		status   string
	)
	err := row.Scan(&id, &entry.TenantID, &lessonID, &entry.OriginalTitle,
		&entry.OriginalContent, &entry.RedactedTitle, &entry.RedactedContent,
		&findings, &status, &entry.CreatedAt, &entry.ExpiresAt)
	if err != nil {
		return nil, err
	}

	entry.ID = types.ID(id)
	entry.LessonID = types.ID(lessonID)
	entry.Status = redact.ReviewStatus(status)
	if findings != "" {
		if err := json.Unmarshal([]byte(findings), &entry.RedactionFindings); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}
