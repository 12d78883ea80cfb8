package engine

import (
	"context"
	"math"

	"github.com/Foxnet360/acrux.life/internal/domain"
	"github.com/Foxnet360/acrux.life/internal/repo"
)

// DashboardMetrics summarizes the objectives visible to an identity.
type DashboardMetrics struct {
	AverageHealthScore  int `json:"average_health_score"`
	TotalObjectives     int `json:"total_objectives"`
	CompletedObjectives int `json:"completed_objectives"`
	BlockedObjectives   int `json:"blocked_objectives"`
	ActivePulseRequests int `json:"active_pulse_requests"`
}

func averageHealthScore(objectives []domain.Objective) int {
	// An empty set reads as "nothing to worry about", not an error.
	if len(objectives) == 0 {
		return 100
	}
	total := 0
	for _, o := range objectives {
		total += o.HealthScore
	}
	return int(math.Round(float64(total) / float64(len(objectives))))
}

func countByStatus(objectives []domain.Objective, status domain.Status) int {
	n := 0
	for _, o := range objectives {
		if o.Status == status {
			n++
		}
	}
	return n
}

// ComputeDashboardMetrics scopes the objective set to everything for admins
// and to assigned objectives otherwise, memoized per identity for one cache
// TTL window.
func (e Engine) ComputeDashboardMetrics(ctx context.Context, ident domain.User) (DashboardMetrics, error) {
	key := dashboardKey(ident.ID)
	if e.Cache != nil {
		if v, ok := e.Cache.Get(key); ok {
			if m, ok := v.(DashboardMetrics); ok {
				return m, nil
			}
		}
	}

	admin := ident.Role == domain.RoleAdmin
	filters := repo.ObjectiveFilters{}
	if !admin {
		filters.AssignedUserID = ident.ID
	}
	objectives, err := e.Repo.ListObjectives(ctx, filters)
	if err != nil {
		return DashboardMetrics{}, err
	}
	active, err := e.Repo.CountActivePulseRequests(ctx, ident.ID, admin, e.nowRFC3339())
	if err != nil {
		return DashboardMetrics{}, err
	}

	m := DashboardMetrics{
		AverageHealthScore:  averageHealthScore(objectives),
		TotalObjectives:     len(objectives),
		CompletedObjectives: countByStatus(objectives, domain.StatusCompleted),
		BlockedObjectives:   countByStatus(objectives, domain.StatusBlocked),
		ActivePulseRequests: active,
	}
	if e.Cache != nil {
		e.Cache.Set(key, m, e.cacheTTL())
	}
	return m, nil
}
