package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Foxnet360/acrux.life/internal/app"
	"github.com/Foxnet360/acrux.life/internal/config"
	"github.com/Foxnet360/acrux.life/internal/db"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/engine"
	"github.com/Foxnet360/acrux.life/internal/repo"
	"github.com/Foxnet360/acrux.life/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "acrux",
	Short: "Acrux CLI",
	Long: `Acrux tracks team objectives with pulse-check driven health scores.
- Objectives: the goals a team commits to, each with a 0-100 health score.
- Assignments: which members carry an objective.
- Pulse checks: short "how is it going?" prompts; 1-5 ratings roll up into
  the objective's health score.
- Blockers: reported impediments tied to an objective.
The workspace directory holds a .acrux database; the HTTP API is served
with 'acrux serve'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ACRUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to acrux.yml")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(objectiveCmd())
	rootCmd.AddCommand(pulseCmd())
	rootCmd.AddCommand(blockerCmd())
	rootCmd.AddCommand(metricsCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			secret := cfg.Auth.JWTSecret
			if env := os.Getenv("ACRUX_JWT_SECRET"); env != "" {
				secret = env
			}
			if secret == "" {
				return fmt.Errorf("a JWT secret is required: set auth.jwt_secret or ACRUX_JWT_SECRET")
			}
			e, conn, err := app.Open(viper.GetString("workspace"), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			if _, err := app.SeedAdmin(cmd.Context(), e); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, TokenTTL: cfg.TokenTTL()},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Acrux API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Println("database is up to date")
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	usr.AddCommand(userCreateCmd())
	usr.AddCommand(userListCmd())
	usr.AddCommand(userAPIKeyCmd())
	return usr
}

func userCreateCmd() *cobra.Command {
	var email, name, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserCreateOptions{
					Email:    email,
					Name:     name,
					Password: password,
					Role:     domain.Role(strings.ToUpper(role)),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", "MEMBER", "role (ADMIN or MEMBER)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role", "Active"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Name, u.Role, u.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userAPIKeyCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Issue an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetUser(ctx, userID); err != nil {
					return err
				}
				raw := "acx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
				key := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// The raw key is shown once and never stored.
				fmt.Println(raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func objectiveCmd() *cobra.Command {
	obj := &cobra.Command{Use: "objective", Short: "Manage objectives"}
	obj.AddCommand(objectiveListCmd())
	obj.AddCommand(objectiveShowCmd())
	obj.AddCommand(objectiveCreateCmd())
	return obj
}

func objectiveListCmd() *cobra.Command {
	var f repo.ObjectiveFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List objectives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListObjectives(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Health", "Progress"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.Title, o.Status, o.Priority, o.HealthScore, o.Progress})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.Search, "search", "", "title/description search")
	cmd.Flags().StringVar(&f.AssignedUserID, "assignee", "", "assigned user filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "page size")
	return cmd
}

func objectiveShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an objective with its assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.GetObjective(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "objective id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func objectiveCreateCmd() *cobra.Command {
	var title, description, priority, targetDate, actorID string
	var assign []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an objective",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ObjectiveCreateOptions{
					Title:           title,
					Description:     description,
					Priority:        priority,
					AssignedUserIDs: assign,
					ActorID:         actorID,
				}
				if targetDate != "" {
					opts.TargetDate = &targetDate
				}
				view, err := e.CreateObjective(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "objective title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "HIGH, MEDIUM or LOW")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "RFC3339 target date")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "creating user id")
	cmd.Flags().StringSliceVar(&assign, "assign", nil, "user ids to assign")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("actor-id")
	return cmd
}

func pulseCmd() *cobra.Command {
	pulse := &cobra.Command{Use: "pulse", Short: "Pulse checks"}
	pulse.AddCommand(pulseRequestCmd())
	pulse.AddCommand(pulsePendingCmd())
	pulse.AddCommand(pulseRespondCmd())
	return pulse
}

func pulseRequestCmd() *cobra.Command {
	var objectiveID, question, dueDate, actorID string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Send a pulse check for an objective",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.PulseRequestCreateOptions{
					ObjectiveID: objectiveID,
					Question:    question,
					ActorID:     actorID,
				}
				if dueDate != "" {
					opts.DueDate = &dueDate
				}
				pr, err := e.CreatePulseRequest(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(pr)
			})
		},
	}
	cmd.Flags().StringVar(&objectiveID, "objective-id", "", "objective id")
	cmd.Flags().StringVar(&question, "question", "", "prompt shown to assignees")
	cmd.Flags().StringVar(&dueDate, "due", "", "RFC3339 expiry")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "requesting user id")
	_ = cmd.MarkFlagRequired("objective-id")
	_ = cmd.MarkFlagRequired("actor-id")
	return cmd
}

func pulsePendingCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List unanswered pulse checks for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.PendingPulseRequests(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Objective", "Question", "Due"})
				for _, pr := range items {
					due := ""
					if pr.DueDate != nil {
						due = *pr.DueDate
					}
					tw.AppendRow(table.Row{pr.ID, pr.ObjectiveID, pr.Question, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func pulseRespondCmd() *cobra.Command {
	var requestID, userID, feedback string
	var rating int
	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Record a pulse rating",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				resp, wasCreated, err := e.SubmitPulseResponse(ctx, engine.PulseResponseOptions{
					PulseRequestID: requestID,
					UserID:         userID,
					Rating:         rating,
					Feedback:       feedback,
				})
				if err != nil {
					return err
				}
				if !viper.GetBool("json") {
					if wasCreated {
						fmt.Println("response recorded")
					} else {
						fmt.Println("response updated")
					}
				}
				return printJSONOrTable(resp)
			})
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "pulse request id")
	cmd.Flags().StringVar(&userID, "user-id", "", "responding user id")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating 1-5")
	cmd.Flags().StringVar(&feedback, "feedback", "", "optional feedback")
	_ = cmd.MarkFlagRequired("request-id")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func blockerCmd() *cobra.Command {
	blocker := &cobra.Command{Use: "blocker", Short: "Blockers"}
	blocker.AddCommand(blockerListCmd())
	return blocker
}

func blockerListCmd() *cobra.Command {
	var f repo.BlockerFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blockers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListBlockers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Objective", "Title", "Severity", "Status"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.ID, b.ObjectiveID, b.Title, b.Severity, b.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ObjectiveID, "objective-id", "", "objective filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func metricsCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show dashboard metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ident := domain.User{Role: domain.RoleAdmin}
				if userID != "" {
					u, err := e.Repo.GetUser(ctx, userID)
					if err != nil {
						return err
					}
					ident = u
				}
				m, err := e.ComputeDashboardMetrics(ctx, ident)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "scope metrics to this user's assignments")
	return cmd
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("config"))
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e, conn, err := app.Open(viper.GetString("workspace"), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
