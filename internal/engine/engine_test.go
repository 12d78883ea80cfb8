package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Foxnet360/acrux.life/internal/access"
	"github.com/Foxnet360/acrux.life/internal/cache"
	"github.com/Foxnet360/acrux.life/internal/config"
	"github.com/Foxnet360/acrux.life/internal/db"
	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/engine"
	"github.com/Foxnet360/acrux.life/internal/migrate"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Admin  domain.User
	Member domain.User
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(), cache.New())
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	admin, err := eng.CreateUser(ctx, engine.UserCreateOptions{
		Email: "admin@example.com", Name: "Admin", Password: "admin-secret", Role: domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	member, err := eng.CreateUser(ctx, engine.UserCreateOptions{
		Email: "member@example.com", Name: "Member", Password: "member-secret", Role: domain.RoleMember,
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Admin: admin, Member: member}
}

func (env testEnv) createObjective(t *testing.T, title string, assignees ...string) engine.ObjectiveView {
	t.Helper()
	view, err := env.Engine.CreateObjective(env.Ctx, engine.ObjectiveCreateOptions{
		Title:           title,
		AssignedUserIDs: assignees,
		ActorID:         env.Admin.ID,
	})
	if err != nil {
		t.Fatalf("create objective: %v", err)
	}
	return view
}

func (env testEnv) createPulseRequest(t *testing.T, objectiveID string) domain.PulseRequest {
	t.Helper()
	pr, err := env.Engine.CreatePulseRequest(env.Ctx, engine.PulseRequestCreateOptions{
		ObjectiveID: objectiveID,
		ActorID:     env.Admin.ID,
	})
	if err != nil {
		t.Fatalf("create pulse request: %v", err)
	}
	return pr
}

func TestCreateObjectiveDefaults(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Ship onboarding", env.Member.ID)
	if view.Status != domain.StatusNotStarted {
		t.Fatalf("status = %s, want NOT_STARTED", view.Status)
	}
	if view.HealthScore != 100 {
		t.Fatalf("health score = %d, want 100", view.HealthScore)
	}
	if view.Priority != domain.PriorityMedium {
		t.Fatalf("priority = %s, want MEDIUM", view.Priority)
	}
	if len(view.Assignments) != 1 || view.Assignments[0].UserID != env.Member.ID {
		t.Fatalf("assignments = %+v", view.Assignments)
	}
}

func TestCreateObjectiveRequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateObjective(env.Ctx, engine.ObjectiveCreateOptions{Title: "  ", ActorID: env.Admin.ID})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestUpdateObjective(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Reduce churn", env.Member.ID)

	title := "Reduce churn by 20%"
	status := string(domain.StatusInProgress)
	progress := 150
	updated, err := env.Engine.UpdateObjective(env.Ctx, engine.ObjectiveUpdateOptions{
		ID:       view.ID,
		Title:    &title,
		Status:   &status,
		Progress: &progress,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Status != domain.StatusInProgress {
		t.Fatalf("updated = %+v", updated.Objective)
	}
	if updated.Progress != 100 {
		t.Fatalf("progress = %d, want clamped to 100", updated.Progress)
	}

	bad := "SOMEDAY"
	_, err = env.Engine.UpdateObjective(env.Ctx, engine.ObjectiveUpdateOptions{ID: view.ID, Status: &bad})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("invalid status err = %v, want ValidationError", err)
	}
}

func TestUpdateObjectiveReplacesAssignments(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Expand to EU", env.Member.ID)

	other, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Email: "other@example.com", Password: "other-secret", Role: domain.RoleMember,
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := env.Engine.UpdateObjective(env.Ctx, engine.ObjectiveUpdateOptions{
		ID:              view.ID,
		AssignedUserIDs: []string{other.ID},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Assignments) != 1 || updated.Assignments[0].UserID != other.ID {
		t.Fatalf("assignments = %+v", updated.Assignments)
	}
}

func TestGetObjectiveNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.GetObjective(env.Ctx, "missing")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMyObjectivesScoped(t *testing.T) {
	env := newTestEnv(t)
	env.createObjective(t, "Mine", env.Member.ID)
	env.createObjective(t, "Not mine")

	mine, err := env.Engine.MyObjectives(env.Ctx, env.Member.ID)
	if err != nil {
		t.Fatalf("my objectives: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "Mine" {
		t.Fatalf("mine = %+v", mine)
	}
}

func TestPulseResponseRecalculatesHealth(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Stabilize ingest", env.Member.ID)
	pr := env.createPulseRequest(t, view.ID)

	resp, wasCreated, err := env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{
		PulseRequestID: pr.ID, UserID: env.Member.ID, Rating: 3,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !wasCreated || resp.Rating != 3 {
		t.Fatalf("created=%v resp=%+v", wasCreated, resp)
	}
	o, err := env.Engine.Repo.GetObjective(env.Ctx, view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.HealthScore != 50 {
		t.Fatalf("health = %d, want 50", o.HealthScore)
	}

	// Resubmitting overwrites the rating instead of adding a row.
	resp, wasCreated, err = env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{
		PulseRequestID: pr.ID, UserID: env.Member.ID, Rating: 5, Feedback: "much better now",
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if wasCreated {
		t.Fatal("resubmit reported a new row")
	}
	if resp.Feedback != "much better now" {
		t.Fatalf("feedback = %q", resp.Feedback)
	}
	n, err := env.Engine.Repo.CountResponses(env.Ctx, pr.ID, env.Member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("response rows = %d, want 1", n)
	}
	o, _ = env.Engine.Repo.GetObjective(env.Ctx, view.ID)
	if o.HealthScore != 100 {
		t.Fatalf("health after resubmit = %d, want 100", o.HealthScore)
	}
}

func TestAllLowestRatingsMapToZero(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Struggling effort", env.Member.ID)
	pr := env.createPulseRequest(t, view.ID)

	if _, _, err := env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{
		PulseRequestID: pr.ID, UserID: env.Member.ID, Rating: 1,
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	o, err := env.Engine.Repo.GetObjective(env.Ctx, view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.HealthScore != 0 {
		t.Fatalf("health = %d, want 0", o.HealthScore)
	}
}

func TestRecalculateHealthWithoutResponses(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Unprompted", env.Member.ID)
	env.createPulseRequest(t, view.ID)

	if err := env.Engine.Repo.UpdateObjectiveHealthScore(env.Ctx, view.ID, 42, "2026-03-01T12:00:00Z"); err != nil {
		t.Fatal(err)
	}
	// No responses yet: the stored score must survive a recalculation.
	if err := env.Engine.RecalculateHealth(env.Ctx, view.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	o, err := env.Engine.Repo.GetObjective(env.Ctx, view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.HealthScore != 42 {
		t.Fatalf("health = %d, want untouched 42", o.HealthScore)
	}
}

func TestPulseResponseAveragesAcrossUsers(t *testing.T) {
	env := newTestEnv(t)
	second, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Email: "second@example.com", Password: "second-secret", Role: domain.RoleMember,
	})
	if err != nil {
		t.Fatal(err)
	}
	view := env.createObjective(t, "Launch beta", env.Member.ID, second.ID)
	pr := env.createPulseRequest(t, view.ID)

	if _, _, err := env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{PulseRequestID: pr.ID, UserID: env.Member.ID, Rating: 5}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{PulseRequestID: pr.ID, UserID: second.ID, Rating: 2}); err != nil {
		t.Fatal(err)
	}
	// mean 3.5 -> ((3.5-1)/4)*100 = 62.5 -> 63
	o, err := env.Engine.Repo.GetObjective(env.Ctx, view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.HealthScore != 63 {
		t.Fatalf("health = %d, want 63", o.HealthScore)
	}
}

func TestPulseResponseValidation(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Harden auth", env.Member.ID)
	pr := env.createPulseRequest(t, view.ID)

	_, _, err := env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{PulseRequestID: pr.ID, UserID: env.Member.ID, Rating: 6})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("rating 6 err = %v, want ValidationError", err)
	}

	_, _, err = env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{PulseRequestID: "missing", UserID: env.Member.ID, Rating: 3})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing request err = %v, want ErrNotFound", err)
	}

	outsider, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Email: "outsider@example.com", Password: "outsider-secret", Role: domain.RoleMember,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{PulseRequestID: pr.ID, UserID: outsider.ID, Rating: 3})
	var fe access.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("unassigned err = %v, want ForbiddenError", err)
	}
}

func TestPulseRequestDueDateNormalizedToUTC(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Timebound", env.Member.ID)

	// Fixed clock is 2026-03-01T12:00:00Z; this offset instant is ten
	// hours later.
	due := "2026-03-02T00:00:00+02:00"
	pr, err := env.Engine.CreatePulseRequest(env.Ctx, engine.PulseRequestCreateOptions{
		ObjectiveID: view.ID,
		DueDate:     &due,
		ActorID:     env.Admin.ID,
	})
	if err != nil {
		t.Fatalf("create pulse request: %v", err)
	}
	if pr.DueDate == nil || *pr.DueDate != "2026-03-01T22:00:00Z" {
		t.Fatalf("due date = %v, want 2026-03-01T22:00:00Z", pr.DueDate)
	}

	// The lexicographic unexpired filter must still see it as pending.
	pending, err := env.Engine.PendingPulseRequests(env.Ctx, env.Member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != pr.ID {
		t.Fatalf("pending = %+v", pending)
	}

	bad := "next tuesday"
	_, err = env.Engine.CreatePulseRequest(env.Ctx, engine.PulseRequestCreateOptions{
		ObjectiveID: view.ID,
		DueDate:     &bad,
		ActorID:     env.Admin.ID,
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("bad due date err = %v, want ValidationError", err)
	}
}

func TestPendingPulseRequests(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Improve docs", env.Member.ID)
	pr := env.createPulseRequest(t, view.ID)

	pending, err := env.Engine.PendingPulseRequests(env.Ctx, env.Member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != pr.ID {
		t.Fatalf("pending = %+v", pending)
	}

	if _, _, err := env.Engine.SubmitPulseResponse(env.Ctx, engine.PulseResponseOptions{PulseRequestID: pr.ID, UserID: env.Member.ID, Rating: 4}); err != nil {
		t.Fatal(err)
	}
	pending, err = env.Engine.PendingPulseRequests(env.Ctx, env.Member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after answer = %+v", pending)
	}
}

func TestDashboardMetrics(t *testing.T) {
	env := newTestEnv(t)
	a := env.createObjective(t, "A", env.Member.ID)
	b := env.createObjective(t, "B", env.Member.ID)
	c := env.createObjective(t, "C", env.Member.ID)

	setHealth := func(id string, score int) {
		if err := env.Engine.Repo.UpdateObjectiveHealthScore(env.Ctx, id, score, "2026-03-01T12:00:00Z"); err != nil {
			t.Fatal(err)
		}
	}
	setHealth(a.ID, 100)
	setHealth(b.ID, 60)
	setHealth(c.ID, 40)

	completed := string(domain.StatusCompleted)
	if _, err := env.Engine.UpdateObjective(env.Ctx, engine.ObjectiveUpdateOptions{ID: b.ID, Status: &completed}); err != nil {
		t.Fatal(err)
	}
	blocked := string(domain.StatusBlocked)
	if _, err := env.Engine.UpdateObjective(env.Ctx, engine.ObjectiveUpdateOptions{ID: c.ID, Status: &blocked}); err != nil {
		t.Fatal(err)
	}
	m, err := env.Engine.ComputeDashboardMetrics(env.Ctx, env.Admin)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	// (100+60+40)/3 = 66.67 -> 67
	if m.AverageHealthScore != 67 {
		t.Fatalf("average = %d, want 67", m.AverageHealthScore)
	}
	if m.TotalObjectives != 3 || m.CompletedObjectives != 1 || m.BlockedObjectives != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestDashboardMetricsEmpty(t *testing.T) {
	env := newTestEnv(t)
	m, err := env.Engine.ComputeDashboardMetrics(env.Ctx, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if m.AverageHealthScore != 100 || m.TotalObjectives != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestDashboardMetricsScopedForMembers(t *testing.T) {
	env := newTestEnv(t)
	env.createObjective(t, "Assigned", env.Member.ID)
	env.createObjective(t, "Elsewhere")

	m, err := env.Engine.ComputeDashboardMetrics(env.Ctx, env.Member)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalObjectives != 1 {
		t.Fatalf("member sees %d objectives, want 1", m.TotalObjectives)
	}
	m, err = env.Engine.ComputeDashboardMetrics(env.Ctx, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalObjectives != 2 {
		t.Fatalf("admin sees %d objectives, want 2", m.TotalObjectives)
	}
}

func TestObjectiveCacheInvalidation(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Cache me", env.Member.ID)

	if _, err := env.Engine.GetObjective(env.Ctx, view.ID); err != nil {
		t.Fatal(err)
	}
	title := "Cache me again"
	if _, err := env.Engine.UpdateObjective(env.Ctx, engine.ObjectiveUpdateOptions{ID: view.ID, Title: &title}); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.GetObjective(env.Ctx, view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != title {
		t.Fatalf("title = %q, want %q", got.Title, title)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Email: "Admin@Example.com", Password: "whatever", Role: domain.RoleMember,
	})
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.AuthenticateUser(env.Ctx, "member@example.com", "member-secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != env.Member.ID {
		t.Fatalf("user = %+v", u)
	}
	if _, err := env.Engine.AuthenticateUser(env.Ctx, "member@example.com", "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
	var ue access.UnauthenticatedError
	if _, err := env.Engine.AuthenticateUser(env.Ctx, "ghost@example.com", "whatever"); !errors.As(err, &ue) {
		t.Fatalf("unknown email err = %v, want UnauthenticatedError", err)
	}
}

func TestBlockers(t *testing.T) {
	env := newTestEnv(t)
	view := env.createObjective(t, "Unblock me", env.Member.ID)

	b, err := env.Engine.CreateBlocker(env.Ctx, engine.BlockerCreateOptions{
		ObjectiveID: view.ID,
		Title:       "Vendor API down",
		Reporter:    env.Member,
	})
	if err != nil {
		t.Fatalf("create blocker: %v", err)
	}
	if b.Severity != domain.SeverityMedium || b.Status != domain.BlockerOpen {
		t.Fatalf("blocker = %+v", b)
	}

	outsider, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Email: "outsider@example.com", Password: "outsider-secret", Role: domain.RoleMember,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CreateBlocker(env.Ctx, engine.BlockerCreateOptions{
		ObjectiveID: view.ID, Title: "Not my objective", Reporter: outsider,
	})
	var fe access.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("outsider err = %v, want ForbiddenError", err)
	}

	resolved := string(domain.BlockerResolved)
	updated, err := env.Engine.UpdateBlocker(env.Ctx, engine.BlockerUpdateOptions{ID: b.ID, Status: &resolved})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if updated.Status != domain.BlockerResolved || updated.ResolvedAt == nil {
		t.Fatalf("updated = %+v", updated)
	}
}
