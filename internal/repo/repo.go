package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Foxnet360/acrux.life/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

const objectiveColumns = `id,title,description,priority,status,health_score,progress,target_date,created_by,created_at,updated_at`

func scanObjective(scan func(dest ...any) error) (domain.Objective, error) {
	var o domain.Objective
	var description, targetDate sql.NullString
	err := scan(&o.ID, &o.Title, &description, &o.Priority, &o.Status, &o.HealthScore, &o.Progress, &targetDate, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if description.Valid {
		o.Description = description.String
	}
	if targetDate.Valid {
		o.TargetDate = &targetDate.String
	}
	return o, nil
}

func (r Repo) InsertObjective(ctx context.Context, tx *sql.Tx, o domain.Objective) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO objectives(`+objectiveColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.Title, nullable(o.Description), o.Priority, o.Status, o.HealthScore, o.Progress,
		nullableStringPtr(o.TargetDate), o.CreatedBy, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r Repo) GetObjective(ctx context.Context, id string) (domain.Objective, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+objectiveColumns+` FROM objectives WHERE id=?`, id)
	return scanObjective(row.Scan)
}

func (r Repo) UpdateObjective(ctx context.Context, tx *sql.Tx, o domain.Objective) error {
	res, err := tx.ExecContext(ctx, `UPDATE objectives SET title=?, description=?, priority=?, status=?, health_score=?, progress=?, target_date=?, updated_at=? WHERE id=?`,
		o.Title, nullable(o.Description), o.Priority, o.Status, o.HealthScore, o.Progress,
		nullableStringPtr(o.TargetDate), o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateObjectiveHealthScore persists a recomputed health score only.
func (r Repo) UpdateObjectiveHealthScore(ctx context.Context, id string, score int, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE objectives SET health_score=?, updated_at=? WHERE id=?`, score, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteObjective(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM objectives WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type ObjectiveFilters struct {
	Status          string
	Priority        string
	Search          string
	AssignedUserID  string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListObjectives(ctx context.Context, f ObjectiveFilters) ([]domain.Objective, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.Search != "" {
		clauses = append(clauses, "(title LIKE ? COLLATE NOCASE OR COALESCE(description,'') LIKE ? COLLATE NOCASE)")
		args = append(args, "%"+f.Search+"%", "%"+f.Search+"%")
	}
	if f.AssignedUserID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM objective_assignments a WHERE a.objective_id=objectives.id AND a.user_id=?)")
		args = append(args, f.AssignedUserID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + objectiveColumns + ` FROM objectives ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Objective
	for rows.Next() {
		o, err := scanObjective(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// ReplaceAssignments swaps the full assignment set of an objective.
func (r Repo) ReplaceAssignments(ctx context.Context, tx *sql.Tx, objectiveID string, userIDs []string, now string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM objective_assignments WHERE objective_id=?`, objectiveID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO objective_assignments(objective_id,user_id,assigned_at) VALUES (?,?,?)`,
			objectiveID, userID, now); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) ListAssignments(ctx context.Context, objectiveID string) ([]domain.Assignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT objective_id,user_id,assigned_at FROM objective_assignments WHERE objective_id=?`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ObjectiveID, &a.UserID, &a.AssignedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) IsAssigned(ctx context.Context, objectiveID, userID string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM objective_assignments WHERE objective_id=? AND user_id=? LIMIT 1`, objectiveID, userID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// CountActivePulseRequests counts unexpired pulse requests, scoped to the
// user's assigned objectives unless admin.
func (r Repo) CountActivePulseRequests(ctx context.Context, userID string, admin bool, now string) (int, error) {
	clauses := []string{"(pr.due_date IS NULL OR pr.due_date > ?)"}
	args := []any{now}
	if !admin {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM objective_assignments a WHERE a.objective_id=pr.objective_id AND a.user_id=?)")
		args = append(args, userID)
	}
	query := fmt.Sprintf(`SELECT count(*) FROM pulse_requests pr WHERE %s`, strings.Join(clauses, " AND "))
	var count int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
