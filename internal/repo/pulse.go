package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Foxnet360/acrux.life/internal/domain"
)

const pulseRequestColumns = `id,objective_id,question,due_date,created_by,created_at`

func scanPulseRequest(scan func(dest ...any) error) (domain.PulseRequest, error) {
	var pr domain.PulseRequest
	var dueDate sql.NullString
	err := scan(&pr.ID, &pr.ObjectiveID, &pr.Question, &dueDate, &pr.CreatedBy, &pr.CreatedAt)
	if err == sql.ErrNoRows {
		return pr, ErrNotFound
	}
	if err != nil {
		return pr, err
	}
	if dueDate.Valid {
		pr.DueDate = &dueDate.String
	}
	return pr, nil
}

func (r Repo) InsertPulseRequest(ctx context.Context, pr domain.PulseRequest) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO pulse_requests(`+pulseRequestColumns+`) VALUES (?,?,?,?,?,?)`,
		pr.ID, pr.ObjectiveID, pr.Question, nullableStringPtr(pr.DueDate), pr.CreatedBy, pr.CreatedAt)
	return err
}

func (r Repo) GetPulseRequest(ctx context.Context, id string) (domain.PulseRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+pulseRequestColumns+` FROM pulse_requests WHERE id=?`, id)
	return scanPulseRequest(row.Scan)
}

func (r Repo) ListPulseRequests(ctx context.Context, objectiveID string) ([]domain.PulseRequest, error) {
	query := `SELECT ` + pulseRequestColumns + ` FROM pulse_requests`
	var args []any
	if objectiveID != "" {
		query += ` WHERE objective_id=?`
		args = append(args, objectiveID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PulseRequest
	for rows.Next() {
		pr, err := scanPulseRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, pr)
	}
	return res, rows.Err()
}

// PendingPulseRequests returns unexpired requests on objectives the user is
// assigned to that the user has not yet answered.
func (r Repo) PendingPulseRequests(ctx context.Context, userID, now string) ([]domain.PulseRequest, error) {
	clauses := []string{
		"EXISTS (SELECT 1 FROM objective_assignments a WHERE a.objective_id=pr.objective_id AND a.user_id=?)",
		"(pr.due_date IS NULL OR pr.due_date > ?)",
		"NOT EXISTS (SELECT 1 FROM pulse_responses resp WHERE resp.pulse_request_id=pr.id AND resp.user_id=?)",
	}
	query := `SELECT pr.id,pr.objective_id,pr.question,pr.due_date,pr.created_by,pr.created_at FROM pulse_requests pr
WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY pr.created_at DESC, pr.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID, now, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PulseRequest
	for rows.Next() {
		pr, err := scanPulseRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, pr)
	}
	return res, rows.Err()
}

// UpsertPulseResponse creates the response, or updates rating and feedback in
// place when the (pulse_request_id, user_id) pair already answered. The unique
// constraint keeps the count at exactly one row per pair.
func (r Repo) UpsertPulseResponse(ctx context.Context, resp domain.PulseResponse) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO pulse_responses(id,pulse_request_id,objective_id,user_id,rating,feedback,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(pulse_request_id,user_id) DO UPDATE SET rating=excluded.rating, feedback=excluded.feedback, updated_at=excluded.updated_at`,
		resp.ID, resp.PulseRequestID, resp.ObjectiveID, resp.UserID, resp.Rating, nullable(resp.Feedback), resp.CreatedAt, resp.UpdatedAt)
	return err
}

func (r Repo) GetPulseResponse(ctx context.Context, pulseRequestID, userID string) (domain.PulseResponse, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,pulse_request_id,objective_id,user_id,rating,COALESCE(feedback,''),created_at,updated_at
FROM pulse_responses WHERE pulse_request_id=? AND user_id=?`, pulseRequestID, userID)
	var resp domain.PulseResponse
	err := row.Scan(&resp.ID, &resp.PulseRequestID, &resp.ObjectiveID, &resp.UserID, &resp.Rating, &resp.Feedback, &resp.CreatedAt, &resp.UpdatedAt)
	if err == sql.ErrNoRows {
		return resp, ErrNotFound
	}
	return resp, err
}

// ListObjectiveResponses gathers every response belonging to the objective
// through its pulse requests.
func (r Repo) ListObjectiveResponses(ctx context.Context, objectiveID string) ([]domain.PulseResponse, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT resp.id,resp.pulse_request_id,resp.objective_id,resp.user_id,resp.rating,COALESCE(resp.feedback,''),resp.created_at,resp.updated_at
FROM pulse_responses resp
JOIN pulse_requests pr ON pr.id=resp.pulse_request_id
WHERE pr.objective_id=?
ORDER BY resp.created_at ASC, resp.id ASC`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PulseResponse
	for rows.Next() {
		var resp domain.PulseResponse
		if err := rows.Scan(&resp.ID, &resp.PulseRequestID, &resp.ObjectiveID, &resp.UserID, &resp.Rating, &resp.Feedback, &resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, resp)
	}
	return res, rows.Err()
}

// CountResponses reports how many responses exist for a (request, user) pair.
func (r Repo) CountResponses(ctx context.Context, pulseRequestID, userID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM pulse_responses WHERE pulse_request_id=? AND user_id=?`, pulseRequestID, userID).Scan(&count)
	return count, err
}
