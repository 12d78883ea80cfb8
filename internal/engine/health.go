package engine

import (
	"context"
	"math"

	"github.com/Foxnet360/acrux.life/internal/domain"
)

// healthScoreFromRatings maps the mean of 1-5 sentiment ratings onto the
// 0-100 scale: all 1s map to 0, all 5s to 100, a mean of 3 to 50.
func healthScoreFromRatings(ratings []int) int {
	total := 0
	for _, r := range ratings {
		total += r
	}
	mean := float64(total) / float64(len(ratings))
	return domain.ClampScore(int(math.Round((mean - 1) / 4 * 100)))
}

// RecalculateHealth recomputes an objective's health score from every pulse
// response linked through its pulse requests and persists it. With zero
// responses the current score is left untouched. The objective's cache
// entries are invalidated so a later read never serves the stale score
// beyond one TTL window.
func (e Engine) RecalculateHealth(ctx context.Context, objectiveID string) error {
	responses, err := e.Repo.ListObjectiveResponses(ctx, objectiveID)
	if err != nil {
		return err
	}
	if len(responses) == 0 {
		return nil
	}
	ratings := make([]int, len(responses))
	for i, resp := range responses {
		ratings[i] = resp.Rating
	}
	score := healthScoreFromRatings(ratings)
	if err := e.Repo.UpdateObjectiveHealthScore(ctx, objectiveID, score, e.nowRFC3339()); err != nil {
		return err
	}
	e.invalidateObjective(objectiveID)
	return nil
}
