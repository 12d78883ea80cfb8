package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Foxnet360/acrux.life/internal/access"
	"github.com/Foxnet360/acrux.life/internal/cache"
	"github.com/Foxnet360/acrux.life/internal/config"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

// ValidationError reports malformed input, optionally with field details.
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e ValidationError) Error() string { return e.Message }

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string { return e.Message }

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Access access.Evaluator
	Cache  *cache.Cache
	Config *config.Config
	Logger *log.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, c *cache.Cache) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Access: access.Evaluator{Repo: r},
		Cache:  c,
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e Engine) cacheTTL() time.Duration {
	if e.Config != nil {
		return e.Config.CacheTTL()
	}
	return cache.DefaultTTL
}

func objectiveKey(id string) string       { return "objective:" + id }
func dashboardKey(userID string) string   { return "dashboard-metrics:" + userID }
func myObjectivesKey(userID string) string { return "my-objectives:" + userID }

// invalidateObjective drops the per-id entry and, conservatively, every
// aggregate entry that could reflect the mutated objective.
func (e Engine) invalidateObjective(id string) {
	if e.Cache == nil {
		return
	}
	e.Cache.Delete(objectiveKey(id))
	e.Cache.Clear()
}

// ObjectiveView is an objective together with its assignment set.
type ObjectiveView struct {
	domain.Objective
	Assignments []domain.Assignment `json:"assignments"`
}

type ObjectiveCreateOptions struct {
	Title           string
	Description     string
	Priority        string
	TargetDate      *string
	AssignedUserIDs []string
	ActorID         string
}

func (e Engine) CreateObjective(ctx context.Context, opts ObjectiveCreateOptions) (ObjectiveView, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return ObjectiveView{}, ValidationError{Message: "title is required"}
	}
	priority := domain.Priority(opts.Priority)
	if opts.Priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return ObjectiveView{}, ValidationError{Message: "invalid priority", Details: map[string]any{"priority": opts.Priority}}
	}
	now := e.nowRFC3339()
	o := domain.Objective{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Priority:    priority,
		Status:      domain.StatusNotStarted,
		HealthScore: 100,
		Progress:    0,
		TargetDate:  opts.TargetDate,
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ObjectiveView{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertObjective(ctx, tx, o); err != nil {
		return ObjectiveView{}, fmt.Errorf("insert objective: %w", err)
	}
	if len(opts.AssignedUserIDs) > 0 {
		if err := e.Repo.ReplaceAssignments(ctx, tx, o.ID, opts.AssignedUserIDs, now); err != nil {
			return ObjectiveView{}, fmt.Errorf("assign users: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ObjectiveView{}, err
	}
	e.invalidateObjective(o.ID)
	assignments, err := e.Repo.ListAssignments(ctx, o.ID)
	if err != nil {
		return ObjectiveView{}, err
	}
	return ObjectiveView{Objective: o, Assignments: assignments}, nil
}

// GetObjective returns the objective with assignments, memoized per id.
func (e Engine) GetObjective(ctx context.Context, id string) (ObjectiveView, error) {
	if e.Cache != nil {
		if v, ok := e.Cache.Get(objectiveKey(id)); ok {
			if view, ok := v.(ObjectiveView); ok {
				return view, nil
			}
		}
	}
	o, err := e.Repo.GetObjective(ctx, id)
	if err != nil {
		return ObjectiveView{}, err
	}
	assignments, err := e.Repo.ListAssignments(ctx, id)
	if err != nil {
		return ObjectiveView{}, err
	}
	view := ObjectiveView{Objective: o, Assignments: assignments}
	if e.Cache != nil {
		e.Cache.Set(objectiveKey(id), view, e.cacheTTL())
	}
	return view, nil
}

type ObjectiveUpdateOptions struct {
	ID              string
	Title           *string
	Description     *string
	Priority        *string
	Status          *string
	Progress        *int
	TargetDate      *string
	AssignedUserIDs []string // nil keeps the current set
}

func (e Engine) UpdateObjective(ctx context.Context, opts ObjectiveUpdateOptions) (ObjectiveView, error) {
	o, err := e.Repo.GetObjective(ctx, opts.ID)
	if err != nil {
		return ObjectiveView{}, err
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return ObjectiveView{}, ValidationError{Message: "title cannot be empty"}
		}
		o.Title = strings.TrimSpace(*opts.Title)
	}
	if opts.Description != nil {
		o.Description = *opts.Description
	}
	if opts.Priority != nil {
		p := domain.Priority(*opts.Priority)
		if !p.Valid() {
			return ObjectiveView{}, ValidationError{Message: "invalid priority", Details: map[string]any{"priority": *opts.Priority}}
		}
		o.Priority = p
	}
	if opts.Status != nil {
		s := domain.Status(*opts.Status)
		if !s.Valid() {
			return ObjectiveView{}, ValidationError{Message: "invalid status", Details: map[string]any{"status": *opts.Status}}
		}
		o.Status = s
	}
	if opts.Progress != nil {
		o.Progress = domain.ClampScore(*opts.Progress)
	}
	if opts.TargetDate != nil {
		if *opts.TargetDate == "" {
			o.TargetDate = nil
		} else {
			o.TargetDate = opts.TargetDate
		}
	}
	o.HealthScore = domain.ClampScore(o.HealthScore)
	o.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ObjectiveView{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateObjective(ctx, tx, o); err != nil {
		return ObjectiveView{}, err
	}
	if opts.AssignedUserIDs != nil {
		if err := e.Repo.ReplaceAssignments(ctx, tx, o.ID, opts.AssignedUserIDs, o.UpdatedAt); err != nil {
			return ObjectiveView{}, fmt.Errorf("replace assignments: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ObjectiveView{}, err
	}
	e.invalidateObjective(o.ID)
	assignments, err := e.Repo.ListAssignments(ctx, o.ID)
	if err != nil {
		return ObjectiveView{}, err
	}
	return ObjectiveView{Objective: o, Assignments: assignments}, nil
}

func (e Engine) DeleteObjective(ctx context.Context, id string) error {
	if err := e.Repo.DeleteObjective(ctx, id); err != nil {
		return err
	}
	e.invalidateObjective(id)
	return nil
}

func (e Engine) ListObjectives(ctx context.Context, f repo.ObjectiveFilters) ([]domain.Objective, error) {
	return e.Repo.ListObjectives(ctx, f)
}

// MyObjectives returns the objectives the user is assigned to, memoized per
// user.
func (e Engine) MyObjectives(ctx context.Context, userID string) ([]domain.Objective, error) {
	key := myObjectivesKey(userID)
	if e.Cache != nil {
		if v, ok := e.Cache.Get(key); ok {
			if items, ok := v.([]domain.Objective); ok {
				return items, nil
			}
		}
	}
	items, err := e.Repo.ListObjectives(ctx, repo.ObjectiveFilters{AssignedUserID: userID})
	if err != nil {
		return nil, err
	}
	if e.Cache != nil {
		e.Cache.Set(key, items, e.cacheTTL())
	}
	return items, nil
}

// ReplaceAssignments swaps the objective's assignment set.
func (e Engine) ReplaceAssignments(ctx context.Context, objectiveID string, userIDs []string) ([]domain.Assignment, error) {
	if _, err := e.Repo.GetObjective(ctx, objectiveID); err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceAssignments(ctx, tx, objectiveID, userIDs, e.nowRFC3339()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.invalidateObjective(objectiveID)
	return e.Repo.ListAssignments(ctx, objectiveID)
}

type UserCreateOptions struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if email == "" {
		return domain.User{}, ValidationError{Message: "email is required"}
	}
	if opts.Role == "" {
		opts.Role = domain.RoleMember
	}
	if !opts.Role.Valid() {
		return domain.User{}, ValidationError{Message: "invalid role", Details: map[string]any{"role": string(opts.Role)}}
	}
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ConflictError{Message: "email already registered"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	var hashed string
	if opts.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		hashed = string(h)
	}
	now := e.nowRFC3339()
	u := domain.User{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           strings.TrimSpace(opts.Name),
		HashedPassword: hashed,
		Role:           opts.Role,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// AuthenticateUser verifies credentials and returns the active user.
func (e Engine) AuthenticateUser(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, access.UnauthenticatedError{}
	}
	if err != nil {
		return domain.User{}, err
	}
	if !u.Active || u.HashedPassword == "" {
		return domain.User{}, access.UnauthenticatedError{}
	}
	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		return domain.User{}, access.UnauthenticatedError{}
	}
	return u, nil
}
