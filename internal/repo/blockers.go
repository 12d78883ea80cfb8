package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Foxnet360/acrux.life/internal/domain"
)

const blockerColumns = `id,objective_id,title,description,severity,status,reported_by,resolved_at,created_at,updated_at`

func scanBlocker(scan func(dest ...any) error) (domain.Blocker, error) {
	var b domain.Blocker
	var description, resolvedAt sql.NullString
	err := scan(&b.ID, &b.ObjectiveID, &b.Title, &description, &b.Severity, &b.Status, &b.ReportedBy, &resolvedAt, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if description.Valid {
		b.Description = description.String
	}
	if resolvedAt.Valid {
		b.ResolvedAt = &resolvedAt.String
	}
	return b, nil
}

func (r Repo) InsertBlocker(ctx context.Context, b domain.Blocker) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO blockers(`+blockerColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.ObjectiveID, b.Title, nullable(b.Description), b.Severity, b.Status, b.ReportedBy,
		nullableStringPtr(b.ResolvedAt), b.CreatedAt, b.UpdatedAt)
	return err
}

func (r Repo) GetBlocker(ctx context.Context, id string) (domain.Blocker, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+blockerColumns+` FROM blockers WHERE id=?`, id)
	return scanBlocker(row.Scan)
}

func (r Repo) UpdateBlocker(ctx context.Context, b domain.Blocker) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE blockers SET title=?, description=?, severity=?, status=?, resolved_at=?, updated_at=? WHERE id=?`,
		b.Title, nullable(b.Description), b.Severity, b.Status, nullableStringPtr(b.ResolvedAt), b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type BlockerFilters struct {
	ObjectiveID string
	Status      string
	// AssignedUserID restricts results to blockers on objectives the user
	// is assigned to; empty means no scoping (admin).
	AssignedUserID string
}

func (r Repo) ListBlockers(ctx context.Context, f BlockerFilters) ([]domain.Blocker, error) {
	var clauses []string
	var args []any
	if f.ObjectiveID != "" {
		clauses = append(clauses, "objective_id=?")
		args = append(args, f.ObjectiveID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedUserID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM objective_assignments a WHERE a.objective_id=blockers.objective_id AND a.user_id=?)")
		args = append(args, f.AssignedUserID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+blockerColumns+` FROM blockers `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Blocker
	for rows.Next() {
		b, err := scanBlocker(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
