package planner

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"fleetroute/internal/model"
)

func input(caps []int) model.Input {
	return model.Input{
		Names: []string{"Depot", "Airoli", "Dadar"},
		Distance: [][]int64{
			{0, 1200, 3400},
			{1300, 0, 2100},
			{3300, 2000, 0},
		},
		Time: [][]int64{
			{0, 300, 700},
			{310, 0, 450},
			{690, 440, 0},
		},
		Demands:    []int{0, 37, 60},
		Capacities: caps,
	}
}

var fast = model.SolverOptions{TimeBudgetMs: 300, MaxIterations: 50, Seed: 5}

func newPlanner(buf *bytes.Buffer) *Planner {
	return New(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestRunSolved(t *testing.T) {
	var logs bytes.Buffer
	res, err := newPlanner(&logs).Run(context.Background(), input([]int{20, 20, 20, 30, 30}), fast)
	require.NoError(t, err)

	assert.Equal(t, model.PlanStatusSolved, res.Plan.Status)
	assert.Equal(t, 6, res.Plan.VirtualUnits)
	assert.Equal(t, 5, res.Plan.Vehicles)
	require.NotNil(t, res.Plan.Report)
	assert.Equal(t, int64(97), res.Plan.Report.Totals.Load)
	assert.Len(t, res.Plan.Report.Routes, 5)
	assert.Contains(t, logs.String(), "plan solved")
	assert.Contains(t, logs.String(), "units=6")
}

func TestRunNoSolution(t *testing.T) {
	var logs bytes.Buffer
	res, err := newPlanner(&logs).Run(context.Background(), input([]int{20, 20, 30}), fast)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatusNoSolution, res.Plan.Status)
	assert.Nil(t, res.Plan.Report)
	assert.Contains(t, logs.String(), "no solution")
}

func TestRunInvalidInput(t *testing.T) {
	p := New(nil)
	in := input([]int{20})
	in.Demands = []int{0, 37}
	_, err := p.Run(context.Background(), in, fast)
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)

	_, err = p.Run(context.Background(), input([]int{20}), model.SolverOptions{Strategy: "SWEEP"})
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)

	_, err = p.Run(context.Background(), input([]int{0, 20}), fast)
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
}

func TestResultMetrics(t *testing.T) {
	opts := fast
	opts.MaxIterations = 120
	res, err := New(nil).Run(context.Background(), input([]int{20, 20, 20, 30, 30}), opts)
	require.NoError(t, err)
	res.Plan.ID = "p1"
	res.Plan.TenantID = "t_demo"

	pm := res.PlanMetrics()
	assert.Equal(t, "p1", pm.PlanID)
	assert.Equal(t, "PATH_CHEAPEST_ARC", pm.Strategy)
	assert.Equal(t, res.Metrics.Iterations, pm.Iterations)
	assert.Equal(t, res.Plan.Report.Objective, pm.BestCost)
	assert.Len(t, res.WeightSnapshots(), res.Metrics.Iterations/50)
}
