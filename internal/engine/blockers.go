package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Foxnet360/acrux.life/internal/access"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

type BlockerCreateOptions struct {
	ObjectiveID string
	Title       string
	Description string
	Severity    string
	Reporter    domain.User
}

func (e Engine) CreateBlocker(ctx context.Context, opts BlockerCreateOptions) (domain.Blocker, error) {
	if strings.TrimSpace(opts.Title) == "" || opts.ObjectiveID == "" {
		return domain.Blocker{}, ValidationError{Message: "title and objective id are required"}
	}
	if _, err := e.Repo.GetObjective(ctx, opts.ObjectiveID); err != nil {
		return domain.Blocker{}, err
	}
	if opts.Reporter.Role != domain.RoleAdmin {
		assigned, err := e.Repo.IsAssigned(ctx, opts.ObjectiveID, opts.Reporter.ID)
		if err != nil {
			return domain.Blocker{}, err
		}
		if !assigned {
			return domain.Blocker{}, access.ForbiddenError{Reason: "you are not assigned to this objective"}
		}
	}
	severity := domain.BlockerSeverity(opts.Severity)
	if opts.Severity == "" {
		severity = domain.SeverityMedium
	}
	if !severity.Valid() {
		return domain.Blocker{}, ValidationError{Message: "invalid severity", Details: map[string]any{"severity": opts.Severity}}
	}
	now := e.nowRFC3339()
	b := domain.Blocker{
		ID:          uuid.NewString(),
		ObjectiveID: opts.ObjectiveID,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Severity:    severity,
		Status:      domain.BlockerOpen,
		ReportedBy:  opts.Reporter.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertBlocker(ctx, b); err != nil {
		return domain.Blocker{}, err
	}
	return b, nil
}

// ListBlockers scopes results to the caller's assigned objectives unless
// admin.
func (e Engine) ListBlockers(ctx context.Context, ident domain.User, objectiveID, status string) ([]domain.Blocker, error) {
	f := repo.BlockerFilters{ObjectiveID: objectiveID, Status: status}
	if ident.Role != domain.RoleAdmin {
		f.AssignedUserID = ident.ID
	}
	return e.Repo.ListBlockers(ctx, f)
}

type BlockerUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Severity    *string
	Status      *string
}

func (e Engine) UpdateBlocker(ctx context.Context, opts BlockerUpdateOptions) (domain.Blocker, error) {
	b, err := e.Repo.GetBlocker(ctx, opts.ID)
	if err != nil {
		return domain.Blocker{}, err
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return domain.Blocker{}, ValidationError{Message: "title cannot be empty"}
		}
		b.Title = strings.TrimSpace(*opts.Title)
	}
	if opts.Description != nil {
		b.Description = *opts.Description
	}
	if opts.Severity != nil {
		s := domain.BlockerSeverity(*opts.Severity)
		if !s.Valid() {
			return domain.Blocker{}, ValidationError{Message: "invalid severity", Details: map[string]any{"severity": *opts.Severity}}
		}
		b.Severity = s
	}
	now := e.nowRFC3339()
	if opts.Status != nil {
		s := domain.BlockerStatus(*opts.Status)
		if !s.Valid() {
			return domain.Blocker{}, ValidationError{Message: "invalid status", Details: map[string]any{"status": *opts.Status}}
		}
		if s == domain.BlockerResolved && b.Status != domain.BlockerResolved {
			b.ResolvedAt = &now
		}
		b.Status = s
	}
	b.UpdatedAt = now
	if err := e.Repo.UpdateBlocker(ctx, b); err != nil {
		return domain.Blocker{}, err
	}
	return b, nil
}
