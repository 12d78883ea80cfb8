package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Foxnet360/acrux.life/internal/cache"
	"github.com/Foxnet360/acrux.life/internal/config"
	"github.com/Foxnet360/acrux.life/internal/db"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/engine"
	"github.com/Foxnet360/acrux.life/internal/migrate"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

// Open opens the workspace database, applies migrations and constructs the
// engine with a fresh process-wide cache instance.
func Open(workspace string, cfg *config.Config) (engine.Engine, *sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	return engine.New(conn, cfg, cache.New()), conn, nil
}

// SeedAdmin ensures the configured admin account exists. A missing password
// leaves the account creation to an operator.
func SeedAdmin(ctx context.Context, e engine.Engine) (domain.User, error) {
	cfg := e.Config
	if cfg == nil || cfg.Admin.Email == "" {
		return domain.User{}, nil
	}
	if u, err := e.Repo.GetUserByEmail(ctx, cfg.Admin.Email); err == nil {
		return u, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if cfg.Admin.Password == "" {
		return domain.User{}, nil
	}
	return e.CreateUser(ctx, engine.UserCreateOptions{
		Email:    cfg.Admin.Email,
		Name:     cfg.Admin.Name,
		Password: cfg.Admin.Password,
		Role:     domain.RoleAdmin,
	})
}
