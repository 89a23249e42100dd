package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideRoute(t *testing.T) {
	assert.Equal(t, RouteNeedsIngestion, DecideRoute(true))
	assert.Equal(t, RouteDirectRetrieval, DecideRoute(false))
}

func TestRoute_PlanNeverRepeatsAndEndsWithReasoning(t *testing.T) {
	for _, r := range []Route{RouteNeedsIngestion, RouteDirectRetrieval} {
		plan := r.Plan()
		seen := map[Stage]bool{}
		for _, s := range plan {
			assert.False(t, seen[s], "stage %s repeated", s)
			seen[s] = true
		}
		assert.Equal(t, []Stage{StageRetrieval, StageReasoning}, plan[len(plan)-2:])
	}
}

func TestRoute_JSON(t *testing.T) {
	out, err := json.Marshal(map[string]Route{"route": RouteNeedsIngestion})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"route":"needs_ingestion"}`, string(out))
}
