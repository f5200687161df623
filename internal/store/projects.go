package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/theirongolddev/worklog/internal/model"
)

// AddProject inserts a project or renames an existing one.
func (s *Store) AddProject(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO projects (id, name, selected, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name, formatTime(time.Now()),
	)
	return err
}

// Projects returns all known projects ordered by name.
func (s *Store) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, selected FROM projects ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		var selected int
		if err := rows.Scan(&p.ID, &p.Name, &selected); err != nil {
			return nil, err
		}
		p.Selected = selected != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// SelectProject marks id as the selected project. Any prior selection is
// cleared in the same transaction.
func (s *Store) SelectProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProjectNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE projects SET selected = 0 WHERE selected = 1"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE projects SET selected = 1 WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearSelection unselects every project.
func (s *Store) ClearSelection(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "UPDATE projects SET selected = 0 WHERE selected = 1")
	return err
}

// SelectedProject returns the selected project, or nil if none is.
func (s *Store) SelectedProject(ctx context.Context) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRowContext(ctx, "SELECT id, name FROM projects WHERE selected = 1").Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Selected = true
	return &p, nil
}
