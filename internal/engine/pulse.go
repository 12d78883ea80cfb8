package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Foxnet360/acrux.life/internal/access"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

const defaultPulseQuestion = "How are you feeling about this objective?"

type PulseRequestCreateOptions struct {
	ObjectiveID string
	Question    string
	DueDate     *string
	ActorID     string
}

func (e Engine) CreatePulseRequest(ctx context.Context, opts PulseRequestCreateOptions) (domain.PulseRequest, error) {
	if opts.ObjectiveID == "" {
		return domain.PulseRequest{}, ValidationError{Message: "objective id is required"}
	}
	if _, err := e.Repo.GetObjective(ctx, opts.ObjectiveID); err != nil {
		return domain.PulseRequest{}, err
	}
	question := strings.TrimSpace(opts.Question)
	if question == "" {
		question = defaultPulseQuestion
	}
	// Due dates are compared lexicographically in SQL, so offsets must be
	// normalized to UTC before they are stored.
	dueDate := opts.DueDate
	if dueDate != nil && *dueDate != "" {
		parsed, err := time.Parse(time.RFC3339, *dueDate)
		if err != nil {
			return domain.PulseRequest{}, ValidationError{Message: "invalid due date", Details: map[string]any{"due_date": *dueDate}}
		}
		utc := parsed.UTC().Format(time.RFC3339)
		dueDate = &utc
	}
	pr := domain.PulseRequest{
		ID:          uuid.NewString(),
		ObjectiveID: opts.ObjectiveID,
		Question:    question,
		DueDate:     dueDate,
		CreatedBy:   opts.ActorID,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertPulseRequest(ctx, pr); err != nil {
		return domain.PulseRequest{}, err
	}
	return pr, nil
}

func (e Engine) ListPulseRequests(ctx context.Context, objectiveID string) ([]domain.PulseRequest, error) {
	return e.Repo.ListPulseRequests(ctx, objectiveID)
}

// PendingPulseRequests lists unexpired, unanswered requests on the user's
// assigned objectives.
func (e Engine) PendingPulseRequests(ctx context.Context, userID string) ([]domain.PulseRequest, error) {
	return e.Repo.PendingPulseRequests(ctx, userID, e.nowRFC3339())
}

type PulseResponseOptions struct {
	PulseRequestID string
	UserID         string
	Rating         int
	Feedback       string
}

// SubmitPulseResponse records or updates the user's rating for a pulse
// request, then synchronously recomputes the owning objective's health
// score. The reported bool is true when a new response row was created.
//
// A recomputation failure is logged and swallowed: the response is the
// source of truth and the score is a derived projection.
func (e Engine) SubmitPulseResponse(ctx context.Context, opts PulseResponseOptions) (domain.PulseResponse, bool, error) {
	if opts.PulseRequestID == "" {
		return domain.PulseResponse{}, false, ValidationError{Message: "pulse request id and rating are required"}
	}
	if opts.Rating < 1 || opts.Rating > 5 {
		return domain.PulseResponse{}, false, ValidationError{Message: "rating must be between 1 and 5", Details: map[string]any{"rating": opts.Rating}}
	}
	pr, err := e.Repo.GetPulseRequest(ctx, opts.PulseRequestID)
	if err != nil {
		return domain.PulseResponse{}, false, err
	}
	assigned, err := e.Repo.IsAssigned(ctx, pr.ObjectiveID, opts.UserID)
	if err != nil {
		return domain.PulseResponse{}, false, err
	}
	if !assigned {
		return domain.PulseResponse{}, false, access.ForbiddenError{Reason: "you are not assigned to this objective"}
	}

	created := false
	if _, err := e.Repo.GetPulseResponse(ctx, opts.PulseRequestID, opts.UserID); errors.Is(err, repo.ErrNotFound) {
		created = true
	} else if err != nil {
		return domain.PulseResponse{}, false, err
	}

	now := e.nowRFC3339()
	resp := domain.PulseResponse{
		ID:             uuid.NewString(),
		PulseRequestID: opts.PulseRequestID,
		ObjectiveID:    pr.ObjectiveID,
		UserID:         opts.UserID,
		Rating:         opts.Rating,
		Feedback:       opts.Feedback,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Repo.UpsertPulseResponse(ctx, resp); err != nil {
		return domain.PulseResponse{}, false, err
	}

	if err := e.RecalculateHealth(ctx, pr.ObjectiveID); err != nil {
		e.logger().Printf("health recalculation failed for objective %s: %v", pr.ObjectiveID, err)
	}

	stored, err := e.Repo.GetPulseResponse(ctx, opts.PulseRequestID, opts.UserID)
	if err != nil {
		return domain.PulseResponse{}, false, err
	}
	return stored, created, nil
}
