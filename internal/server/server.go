package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/Foxnet360/acrux.life/internal/access"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/engine"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

// Error codes of the failure envelope.
const (
	codeAuthentication = "AUTHENTICATION_ERROR"
	codeAuthorization  = "AUTHORIZATION_ERROR"
	codeValidation     = "VALIDATION_ERROR"
	codeNotFound       = "NOT_FOUND"
	codeConflict       = "CONFLICT"
	codeInternal       = "INTERNAL_SERVER_ERROR"
)

type apiErrorDetail struct {
	Code    string         `json:"code" example:"AUTHORIZATION_ERROR"`
	Message string         `json:"message" example:"insufficient permissions"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the failure envelope.
type apiError struct {
	status  int
	Success bool           `json:"success"`
	Detail  apiErrorDetail `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Detail.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status:  status,
		Success: false,
		Detail: apiErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codeValidation
	case http.StatusUnauthorized:
		return codeAuthentication
	case http.StatusForbidden:
		return codeAuthorization
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusConflict:
		return codeConflict
	case http.StatusInternalServerError:
		return codeInternal
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// New returns an HTTP handler exposing the Acrux API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the required envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema/request validation errors are 400 VALIDATION_ERROR.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Acrux API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerDashboard(group, cfg.Engine)
	registerObjectives(group, cfg.Engine)
	registerPulse(group, cfg.Engine)
	registerBlockers(group, cfg.Engine)

	return router, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Authenticate with email and password",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*Response[LoginData], error) {
		if input.Body.Email == "" || input.Body.Password == "" {
			return nil, handleError(e, engine.ValidationError{Message: "email and password are required"})
		}
		u, err := e.AuthenticateUser(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(e, err)
		}
		token, err := IssueToken(u.ID, authCfg.JWTSecret, authCfg.TokenTTL, e.Now())
		if err != nil {
			return nil, handleError(e, err)
		}
		return success(LoginData{Token: token, User: u}, "Login successful"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Register a member account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body SignupRequest `json:"body"`
	}) (*Response[domain.User], error) {
		if input.Body.Email == "" || input.Body.Password == "" {
			return nil, handleError(e, engine.ValidationError{Message: "email and password are required"})
		}
		u, err := e.CreateUser(ctx, engine.UserCreateOptions{
			Email:    input.Body.Email,
			Name:     input.Body.Name,
			Password: input.Body.Password,
			Role:     domain.RoleMember,
		})
		if err != nil {
			return nil, handleError(e, err)
		}
		return success(u, "Account created successfully"), nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-metrics",
		Method:      http.MethodGet,
		Path:        "/dashboard/metrics",
		Summary:     "Dashboard metrics",
		Errors:      []int{http.StatusUnauthorized},
	}, guarded(e, allowAuthenticated[struct{}](), func(ctx context.Context, _ *struct{}, ident domain.User) (*Response[engine.DashboardMetrics], error) {
		m, err := e.ComputeDashboardMetrics(ctx, ident)
		if err != nil {
			return nil, err
		}
		return success(m, "Dashboard metrics retrieved successfully"), nil
	}))
}

type objectivePath struct {
	ID string `path:"id"`
}

type objectiveListQuery struct {
	Status   string `query:"status" enum:"NOT_STARTED,IN_PROGRESS,COMPLETED,BLOCKED" required:"false"`
	Priority string `query:"priority" enum:"HIGH,MEDIUM,LOW" required:"false"`
	Search   string `query:"search" required:"false"`
	Limit    int    `query:"limit" required:"false"`
	Cursor   string `query:"cursor" required:"false"`
	CursorID string `query:"cursor_id" required:"false"`
}

func registerObjectives(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-objectives",
		Method:      http.MethodGet,
		Path:        "/objectives",
		Summary:     "List all objectives",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, guarded(e, allowRoles[objectiveListQuery](domain.RoleAdmin), func(ctx context.Context, in *objectiveListQuery, _ domain.User) (*Response[[]domain.Objective], error) {
		items, err := e.ListObjectives(ctx, repo.ObjectiveFilters{
			Status:          in.Status,
			Priority:        in.Priority,
			Search:          in.Search,
			Limit:           in.Limit,
			CursorCreatedAt: in.Cursor,
			CursorID:        in.CursorID,
		})
		if err != nil {
			return nil, err
		}
		return success(items, "Objectives retrieved successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID:   "create-objective",
		Method:        http.MethodPost,
		Path:          "/objectives",
		Summary:       "Create objective",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, guarded(e, allowRoles[struct {
		Body CreateObjectiveRequest `json:"body"`
	}](domain.RoleAdmin), func(ctx context.Context, in *struct {
		Body CreateObjectiveRequest `json:"body"`
	}, ident domain.User) (*Response[engine.ObjectiveView], error) {
		view, err := e.CreateObjective(ctx, engine.ObjectiveCreateOptions{
			Title:           in.Body.Title,
			Description:     stringOrEmpty(in.Body.Description),
			Priority:        stringOrEmpty(in.Body.Priority),
			TargetDate:      in.Body.TargetDate,
			AssignedUserIDs: in.Body.AssignedUserIDs,
			ActorID:         ident.ID,
		})
		if err != nil {
			return nil, err
		}
		return success(view, "Objective created successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "my-objectives",
		Method:      http.MethodGet,
		Path:        "/objectives/my",
		Summary:     "Objectives assigned to the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, guarded(e, allowAuthenticated[struct{}](), func(ctx context.Context, _ *struct{}, ident domain.User) (*Response[[]domain.Objective], error) {
		items, err := e.MyObjectives(ctx, ident.ID)
		if err != nil {
			return nil, err
		}
		return success(items, "Objectives retrieved successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "get-objective",
		Method:      http.MethodGet,
		Path:        "/objectives/{id}",
		Summary:     "Get objective",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowCustom(func(e engine.Engine, in *objectivePath) access.Predicate {
		return e.Access.ObjectiveViewer(in.ID)
	}), func(ctx context.Context, in *objectivePath, _ domain.User) (*Response[engine.ObjectiveView], error) {
		view, err := e.GetObjective(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		return success(view, "Objective retrieved successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "update-objective",
		Method:      http.MethodPut,
		Path:        "/objectives/{id}",
		Summary:     "Update objective",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowCustom(func(e engine.Engine, in *struct {
		objectivePath
		Body UpdateObjectiveRequest `json:"body"`
	}) access.Predicate {
		return e.Access.ObjectiveEditor(in.ID)
	}), func(ctx context.Context, in *struct {
		objectivePath
		Body UpdateObjectiveRequest `json:"body"`
	}, _ domain.User) (*Response[engine.ObjectiveView], error) {
		view, err := e.UpdateObjective(ctx, engine.ObjectiveUpdateOptions{
			ID:              in.ID,
			Title:           in.Body.Title,
			Description:     in.Body.Description,
			Priority:        in.Body.Priority,
			Status:          in.Body.Status,
			Progress:        in.Body.Progress,
			TargetDate:      in.Body.TargetDate,
			AssignedUserIDs: in.Body.AssignedUserIDs,
		})
		if err != nil {
			return nil, err
		}
		return success(view, "Objective updated successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "delete-objective",
		Method:      http.MethodDelete,
		Path:        "/objectives/{id}",
		Summary:     "Delete objective",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowRoles[objectivePath](domain.RoleAdmin), func(ctx context.Context, in *objectivePath, _ domain.User) (*Response[struct{}], error) {
		if err := e.DeleteObjective(ctx, in.ID); err != nil {
			return nil, err
		}
		return success(struct{}{}, "Objective deleted successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "replace-assignments",
		Method:      http.MethodPut,
		Path:        "/objectives/{id}/assignments",
		Summary:     "Replace objective assignments",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowRoles[struct {
		objectivePath
		Body ReplaceAssignmentsRequest `json:"body"`
	}](domain.RoleAdmin), func(ctx context.Context, in *struct {
		objectivePath
		Body ReplaceAssignmentsRequest `json:"body"`
	}, _ domain.User) (*Response[[]domain.Assignment], error) {
		assignments, err := e.ReplaceAssignments(ctx, in.ID, in.Body.UserIDs)
		if err != nil {
			return nil, err
		}
		return success(assignments, "Assignments updated successfully"), nil
	}))
}

func registerPulse(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-pulse-request",
		Method:        http.MethodPost,
		Path:          "/pulse/requests",
		Summary:       "Send a pulse check",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowRoles[struct {
		Body CreatePulseRequestRequest `json:"body"`
	}](domain.RoleAdmin), func(ctx context.Context, in *struct {
		Body CreatePulseRequestRequest `json:"body"`
	}, ident domain.User) (*Response[domain.PulseRequest], error) {
		pr, err := e.CreatePulseRequest(ctx, engine.PulseRequestCreateOptions{
			ObjectiveID: in.Body.ObjectiveID,
			Question:    stringOrEmpty(in.Body.Question),
			DueDate:     in.Body.ExpiresAt,
			ActorID:     ident.ID,
		})
		if err != nil {
			return nil, err
		}
		return success(pr, "Pulse request sent successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "list-pulse-requests",
		Method:      http.MethodGet,
		Path:        "/pulse/requests",
		Summary:     "List pulse requests",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, guarded(e, allowRoles[struct {
		ObjectiveID string `query:"objective_id" required:"false"`
	}](domain.RoleAdmin), func(ctx context.Context, in *struct {
		ObjectiveID string `query:"objective_id" required:"false"`
	}, _ domain.User) (*Response[[]domain.PulseRequest], error) {
		items, err := e.ListPulseRequests(ctx, in.ObjectiveID)
		if err != nil {
			return nil, err
		}
		return success(items, "Pulse requests retrieved successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "pending-pulse-requests",
		Method:      http.MethodGet,
		Path:        "/pulse/pending",
		Summary:     "Pending pulse checks for the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, guarded(e, allowAuthenticated[struct{}](), func(ctx context.Context, _ *struct{}, ident domain.User) (*Response[[]domain.PulseRequest], error) {
		items, err := e.PendingPulseRequests(ctx, ident.ID)
		if err != nil {
			return nil, err
		}
		return success(items, "Pending pulse requests retrieved successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "submit-pulse-response",
		Method:      http.MethodPost,
		Path:        "/pulse/responses",
		Summary:     "Submit a pulse rating",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowAuthenticated[struct {
		Body SubmitPulseResponseRequest `json:"body"`
	}](), func(ctx context.Context, in *struct {
		Body SubmitPulseResponseRequest `json:"body"`
	}, ident domain.User) (*Response[domain.PulseResponse], error) {
		resp, wasCreated, err := e.SubmitPulseResponse(ctx, engine.PulseResponseOptions{
			PulseRequestID: in.Body.PulseRequestID,
			UserID:         ident.ID,
			Rating:         in.Body.Rating,
			Feedback:       stringOrEmpty(in.Body.Feedback),
		})
		if err != nil {
			return nil, err
		}
		if wasCreated {
			return created(resp, "Pulse response submitted successfully"), nil
		}
		return success(resp, "Pulse response updated successfully"), nil
	}))
}

func registerBlockers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-blocker",
		Method:        http.MethodPost,
		Path:          "/blockers",
		Summary:       "Report a blocker",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowAuthenticated[struct {
		Body CreateBlockerRequest `json:"body"`
	}](), func(ctx context.Context, in *struct {
		Body CreateBlockerRequest `json:"body"`
	}, ident domain.User) (*Response[domain.Blocker], error) {
		b, err := e.CreateBlocker(ctx, engine.BlockerCreateOptions{
			ObjectiveID: in.Body.ObjectiveID,
			Title:       in.Body.Title,
			Description: stringOrEmpty(in.Body.Description),
			Severity:    stringOrEmpty(in.Body.Severity),
			Reporter:    ident,
		})
		if err != nil {
			return nil, err
		}
		return success(b, "Blocker reported successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "list-blockers",
		Method:      http.MethodGet,
		Path:        "/blockers",
		Summary:     "List blockers",
		Errors:      []int{http.StatusUnauthorized},
	}, guarded(e, allowAuthenticated[struct {
		ObjectiveID string `query:"objective_id" required:"false"`
		Status      string `query:"status" enum:"OPEN,IN_PROGRESS,RESOLVED,CLOSED" required:"false"`
	}](), func(ctx context.Context, in *struct {
		ObjectiveID string `query:"objective_id" required:"false"`
		Status      string `query:"status" enum:"OPEN,IN_PROGRESS,RESOLVED,CLOSED" required:"false"`
	}, ident domain.User) (*Response[[]domain.Blocker], error) {
		items, err := e.ListBlockers(ctx, ident, in.ObjectiveID, in.Status)
		if err != nil {
			return nil, err
		}
		return success(items, "Blockers retrieved successfully"), nil
	}))

	huma.Register(api, huma.Operation{
		OperationID: "update-blocker",
		Method:      http.MethodPatch,
		Path:        "/blockers/{id}",
		Summary:     "Update blocker",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, guarded(e, allowCustom(func(e engine.Engine, in *struct {
		ID   string               `path:"id"`
		Body UpdateBlockerRequest `json:"body"`
	}) access.Predicate {
		return e.Access.BlockerEditor(in.ID)
	}), func(ctx context.Context, in *struct {
		ID   string               `path:"id"`
		Body UpdateBlockerRequest `json:"body"`
	}, _ domain.User) (*Response[domain.Blocker], error) {
		b, err := e.UpdateBlocker(ctx, engine.BlockerUpdateOptions{
			ID:          in.ID,
			Title:       in.Body.Title,
			Description: in.Body.Description,
			Severity:    in.Body.Severity,
			Status:      in.Body.Status,
		})
		if err != nil {
			return nil, err
		}
		return success(b, "Blocker updated successfully"), nil
	}))
}
