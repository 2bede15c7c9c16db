package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mattfryer/bookstack-addon/internal/model"
)

var ErrNotFound = errors.New("not found")

// DefaultCycleRetention is how many cycle records are kept per instance.
const DefaultCycleRetention = 500

// RecordCycle stores one finished cycle and prunes the instance's history
// down to DefaultCycleRetention rows.
func (r *Repository) RecordCycle(ctx context.Context, record model.CycleRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (id, instance_id, started_at, finished_at, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.InstanceID,
		formatTime(record.StartedAt),
		formatTime(record.FinishedAt),
		string(record.Outcome),
		record.Error,
	); err != nil {
		return errors.Wrapf(err, "insert cycle %s", record.ID)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM cycles
		WHERE instance_id = ? AND id NOT IN (
			SELECT id FROM cycles WHERE instance_id = ?
			ORDER BY started_at DESC LIMIT ?
		)`,
		record.InstanceID, record.InstanceID, DefaultCycleRetention,
	); err != nil {
		return errors.Wrapf(err, "prune cycles for %s", record.InstanceID)
	}
	return errors.WithStack(tx.Commit())
}

// RecentCycles returns up to limit cycles of one instance, newest first.
func (r *Repository) RecentCycles(ctx context.Context, instanceID string, limit int) ([]model.CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, instance_id, started_at, finished_at, outcome, error
		FROM cycles
		WHERE instance_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, instanceID, limit)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	result := []model.CycleRecord{}
	for rows.Next() {
		var (
			record            model.CycleRecord
			started, finished string
			outcome           string
		)
		if err := rows.Scan(&record.ID, &record.InstanceID, &started, &finished, &outcome, &record.Error); err != nil {
			return nil, errors.WithStack(err)
		}
		record.StartedAt = parseTime(started)
		record.FinishedAt = parseTime(finished)
		record.Outcome = model.CycleOutcome(outcome)
		result = append(result, record)
	}
	return result, errors.WithStack(rows.Err())
}

// RecordOrphan adds a book to the orphan ledger. Recording the same book
// again reopens it with the latest reason.
func (r *Repository) RecordOrphan(ctx context.Context, orphan model.OrphanedBook) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orphaned_books (instance_id, book_id, shelf_id, name, reason, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(instance_id, book_id) DO UPDATE SET
			shelf_id=excluded.shelf_id,
			name=excluded.name,
			reason=excluded.reason,
			created_at=excluded.created_at,
			resolved_at=NULL`,
		orphan.InstanceID,
		orphan.BookID,
		orphan.ShelfID,
		orphan.Name,
		orphan.Reason,
		formatTime(orphan.CreatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "record orphaned book %d", orphan.BookID)
	}
	if r.logger != nil {
		r.logger.Info("orphaned book recorded", "instance", orphan.InstanceID, "book_id", orphan.BookID)
	}
	return nil
}

// UnresolvedOrphans lists the orphaned books of one instance, oldest first.
func (r *Repository) UnresolvedOrphans(ctx context.Context, instanceID string) ([]model.OrphanedBook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT instance_id, book_id, shelf_id, name, reason, created_at, resolved_at
		FROM orphaned_books
		WHERE instance_id = ? AND resolved_at IS NULL
		ORDER BY created_at ASC, book_id ASC`, instanceID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	result := []model.OrphanedBook{}
	for rows.Next() {
		var (
			orphan   model.OrphanedBook
			created  string
			resolved sql.NullString
		)
		if err := rows.Scan(&orphan.InstanceID, &orphan.BookID, &orphan.ShelfID, &orphan.Name, &orphan.Reason, &created, &resolved); err != nil {
			return nil, errors.WithStack(err)
		}
		orphan.CreatedAt = parseTime(created)
		orphan.ResolvedAt = toTimePtr(resolved)
		result = append(result, orphan)
	}
	return result, errors.WithStack(rows.Err())
}

// ResolveOrphan marks an orphaned book as handled. It returns ErrNotFound
// when the book is not an open orphan of the instance.
func (r *Repository) ResolveOrphan(ctx context.Context, instanceID string, bookID int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orphaned_books SET resolved_at = ?
		WHERE instance_id = ? AND book_id = ? AND resolved_at IS NULL`,
		formatTime(nowUTC()), instanceID, bookID)
	if err != nil {
		return errors.Wrapf(err, "resolve orphaned book %d", bookID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
