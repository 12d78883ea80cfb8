// Package access decides whether a resolved identity may perform an
// operation. Checks are either an explicit allowed-role set or a custom
// predicate that may read the repository. Predicates treat a missing
// resource as allowed so the downstream handler owns the not-found error
// and existence never leaks through the authorization path.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

// UnauthenticatedError indicates no valid identity was resolved.
type UnauthenticatedError struct{}

func (UnauthenticatedError) Error() string { return "authentication required" }

// ForbiddenError indicates the identity lacks the required capability.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "insufficient permissions"
	}
	return e.Reason
}

// Evaluator runs authorization checks against the persistence layer.
type Evaluator struct {
	Repo repo.Repo
}

// Predicate is a caller-supplied check that may issue reads.
type Predicate func(ctx context.Context, ident domain.User) (bool, error)

// AuthorizeRole checks exact membership in the allowed set. No hierarchy is
// derived; every operation spells out its own set.
func AuthorizeRole(ident domain.User, allowed ...domain.Role) error {
	for _, role := range allowed {
		if ident.Role == role {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, role := range allowed {
		names[i] = string(role)
	}
	return ForbiddenError{Reason: fmt.Sprintf("required roles: %s", strings.Join(names, ", "))}
}

// Authorize runs a custom predicate and converts a denial into a
// ForbiddenError. Predicate errors propagate unchanged.
func (ev Evaluator) Authorize(ctx context.Context, ident domain.User, pred Predicate) error {
	ok, err := pred(ctx, ident)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{}
	}
	return nil
}

// ObjectiveViewer allows admins, assignees and the creator. A missing
// objective allows so the handler raises the not-found.
func (ev Evaluator) ObjectiveViewer(objectiveID string) Predicate {
	return func(ctx context.Context, ident domain.User) (bool, error) {
		if ident.Role == domain.RoleAdmin {
			return true, nil
		}
		o, err := ev.Repo.GetObjective(ctx, objectiveID)
		if errors.Is(err, repo.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if o.CreatedBy == ident.ID {
			return true, nil
		}
		return ev.Repo.IsAssigned(ctx, objectiveID, ident.ID)
	}
}

// ObjectiveEditor allows admins and the creator.
func (ev Evaluator) ObjectiveEditor(objectiveID string) Predicate {
	return func(ctx context.Context, ident domain.User) (bool, error) {
		if ident.Role == domain.RoleAdmin {
			return true, nil
		}
		o, err := ev.Repo.GetObjective(ctx, objectiveID)
		if errors.Is(err, repo.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return o.CreatedBy == ident.ID, nil
	}
}

// BlockerEditor allows admins and the reporter.
func (ev Evaluator) BlockerEditor(blockerID string) Predicate {
	return func(ctx context.Context, ident domain.User) (bool, error) {
		if ident.Role == domain.RoleAdmin {
			return true, nil
		}
		b, err := ev.Repo.GetBlocker(ctx, blockerID)
		if errors.Is(err, repo.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return b.ReportedBy == ident.ID, nil
	}
}
