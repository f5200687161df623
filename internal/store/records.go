package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/theirongolddev/worklog/internal/model"
)

const refSep = ","

const selectRecords = `SELECT
		id, start_time, duration_seconds, keystrokes, mouse_moves, mouse_clicks,
		screenshot_refs, project_id, project_name, user_id, sync_status
		FROM tracking`

// CreateRecord persists one snapshot as a Pending record and returns its id.
// The insert is a single statement, so the record either exists whole or
// not at all.
func (s *Store) CreateRecord(ctx context.Context, snap model.Snapshot) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tracking
		(start_time, duration_seconds, keystrokes, mouse_moves, mouse_clicks,
		 screenshot_refs, project_id, project_name, user_id, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(snap.StartTime), snap.DurationSeconds, snap.Keystrokes, snap.MouseMoves, snap.MouseClicks,
		joinRefs(snap.ScreenshotRefs), nullString(snap.ProjectID), nullString(snap.ProjectName), nullString(snap.UserID),
		model.Pending,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Records yields every record newest first. Each range over the returned
// sequence runs a fresh query, so it can be iterated again.
func (s *Store) Records(ctx context.Context) iter.Seq2[model.SessionRecord, error] {
	return func(yield func(model.SessionRecord, error) bool) {
		rows, err := s.db.QueryContext(ctx, selectRecords+" ORDER BY start_time DESC, id DESC")
		if err != nil {
			yield(model.SessionRecord{}, err)
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if !yield(rec, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.SessionRecord{}, err)
		}
	}
}

// ListRecords collects Records into a slice, newest first.
func (s *Store) ListRecords(ctx context.Context) ([]model.SessionRecord, error) {
	var out []model.SessionRecord
	for rec, err := range s.Records(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// PendingRecords returns every record not yet acknowledged remotely,
// oldest first.
func (s *Store) PendingRecords(ctx context.Context) ([]model.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecords+" WHERE sync_status = ? ORDER BY id ASC", model.Pending)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountPending returns the number of Pending records.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracking WHERE sync_status = ?", model.Pending).Scan(&n)
	return n, err
}

// MarkSynced moves the given records to Synced. Records that are already
// Synced are left alone, so repeating a call changes nothing. It returns the
// number of records that changed state.
func (s *Store) MarkSynced(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	args := make([]any, 0, len(ids)+2)
	args = append(args, model.Synced, formatTime(time.Now()), model.Pending)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	res, err := tx.ExecContext(ctx,
		"UPDATE tracking SET sync_status = ?, synced_at = ? WHERE sync_status = ? AND id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// AggregateDuration sums duration_seconds over records whose start time is
// in [from, to).
func (s *Store) AggregateDuration(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(duration_seconds), 0) FROM tracking WHERE start_time >= ? AND start_time < ?",
		formatTime(from), formatTime(to),
	).Scan(&total)
	return total, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.SessionRecord, error) {
	var (
		rec                            model.SessionRecord
		startStr, refs                 string
		projectID, projectName, userID sql.NullString
	)
	err := row.Scan(
		&rec.ID, &startStr, &rec.DurationSeconds, &rec.Keystrokes, &rec.MouseMoves, &rec.MouseClicks,
		&refs, &projectID, &projectName, &userID, &rec.SyncStatus,
	)
	if err != nil {
		return model.SessionRecord{}, err
	}
	if rec.StartTime, err = parseTime(startStr); err != nil {
		return model.SessionRecord{}, fmt.Errorf("record %d start_time: %w", rec.ID, err)
	}
	rec.ScreenshotRefs = splitRefs(refs)
	rec.ProjectID = stringPtr(projectID)
	rec.ProjectName = stringPtr(projectName)
	rec.UserID = stringPtr(userID)
	return rec, nil
}

func joinRefs(refs []string) string {
	kept := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			kept = append(kept, r)
		}
	}
	return strings.Join(kept, refSep)
}

func splitRefs(s string) []string {
	out := []string{}
	for _, r := range strings.Split(s, refSep) {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
