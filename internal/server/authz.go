package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Foxnet360/acrux.life/internal/access"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/engine"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

// identity resolves the authenticated principal to its user row. Unknown or
// inactive users fail authentication, not authorization.
func identity(ctx context.Context, e engine.Engine) (domain.User, error) {
	p, ok := principalFromContext(ctx)
	if !ok || p.UserID == "" {
		return domain.User{}, access.UnauthenticatedError{}
	}
	u, err := e.Repo.GetUser(ctx, p.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, access.UnauthenticatedError{}
	}
	if err != nil {
		return domain.User{}, err
	}
	if !u.Active {
		return domain.User{}, access.UnauthenticatedError{}
	}
	return u, nil
}

// authorizeFunc is one configured authorization stage: either a static
// allowed-role set or a custom predicate over the request input.
type authorizeFunc[I any] func(ctx context.Context, e engine.Engine, in *I, ident domain.User) error

// allowRoles gates on exact membership in the listed roles.
func allowRoles[I any](roles ...domain.Role) authorizeFunc[I] {
	return func(_ context.Context, _ engine.Engine, _ *I, ident domain.User) error {
		return access.AuthorizeRole(ident, roles...)
	}
}

// allowAuthenticated admits any resolved identity.
func allowAuthenticated[I any]() authorizeFunc[I] {
	return func(context.Context, engine.Engine, *I, domain.User) error {
		return nil
	}
}

// allowCustom runs a request-derived predicate through the evaluator.
func allowCustom[I any](pred func(e engine.Engine, in *I) access.Predicate) authorizeFunc[I] {
	return func(ctx context.Context, e engine.Engine, in *I, ident domain.User) error {
		return e.Access.Authorize(ctx, ident, pred(e, in))
	}
}

// guarded composes the operation pipeline: authenticate, authorize, handle,
// envelope. Handlers raise typed errors and never format responses; the
// guard is a coarse gate and handlers may still run finer-grained checks.
func guarded[I, O any](e engine.Engine, authorize authorizeFunc[I], handler func(ctx context.Context, in *I, ident domain.User) (*O, error)) func(context.Context, *I) (*O, error) {
	return func(ctx context.Context, in *I) (*O, error) {
		ident, err := identity(ctx, e)
		if err != nil {
			return nil, handleError(e, err)
		}
		if err := authorize(ctx, e, in, ident); err != nil {
			return nil, handleError(e, err)
		}
		out, err := handler(ctx, in, ident)
		if err != nil {
			return nil, handleError(e, err)
		}
		return out, nil
	}
}

// handleError is the single point converting raised errors into the error
// envelope. Operational errors keep their message; anything unexpected is
// logged loudly and reported generically.
func handleError(e engine.Engine, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if se, ok := err.(huma.StatusError); ok {
		return se
	}
	var unauth access.UnauthenticatedError
	if errors.As(err, &unauth) {
		return newAPIError(http.StatusUnauthorized, codeAuthentication, unauth.Error(), nil)
	}
	var forbidden access.ForbiddenError
	if errors.As(err, &forbidden) {
		return newAPIError(http.StatusForbidden, codeAuthorization, forbidden.Error(), nil)
	}
	var invalid engine.ValidationError
	if errors.As(err, &invalid) {
		return newAPIError(http.StatusBadRequest, codeValidation, invalid.Message, invalid.Details)
	}
	var conflict engine.ConflictError
	if errors.As(err, &conflict) {
		return newAPIError(http.StatusConflict, codeConflict, conflict.Message, nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, codeNotFound, "resource not found", nil)
	}
	lg := e.Logger
	if lg == nil {
		lg = log.Default()
	}
	lg.Printf("unexpected error: %v", err)
	return newAPIError(http.StatusInternalServerError, codeInternal, "an unexpected error occurred", nil)
}
