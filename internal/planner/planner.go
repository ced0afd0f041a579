// Package planner runs one planning pass: validate, decompose, build the
// model, search, assemble.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/problem"
	"fleetroute/internal/report"
	"fleetroute/internal/routing"
)

// Result is a finished run. Plan.Report is nil when Plan.Status is
// model.PlanStatusNoSolution.
type Result struct {
	Plan    model.Plan
	Metrics opt.Metrics
}

type Planner struct {
	log *slog.Logger
	now func() time.Time
}

func New(log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{log: log, now: time.Now}
}

// Run plans in. It returns an error wrapping model.ErrInvalidConfiguration
// for bad input; a search without a feasible assignment is a successful run
// with status no_solution.
func (p *Planner) Run(ctx context.Context, in model.Input, opts model.SolverOptions) (Result, error) {
	start := p.now()
	cfg, err := routing.ConfigFromOptions(opts)
	if err != nil {
		return Result{}, fmt.Errorf("plan: %w", err)
	}
	pm, err := problem.Build(in)
	if err != nil {
		return Result{}, fmt.Errorf("plan: %w", err)
	}
	split := pm.Split()
	p.log.Debug("decomposed demand", "op", "plan", "locations", split.Locations(), "units", pm.NumUnits(), "bound", split.Bound, "vehicles", pm.NumVehicles())

	res := Result{Plan: model.Plan{
		VirtualUnits: pm.NumUnits(),
		Vehicles:     pm.NumVehicles(),
		CreatedAt:    start.UTC().Format(time.RFC3339),
	}}
	asg, mx, err := routing.Solve(ctx, pm, cfg)
	res.Metrics = mx
	res.Plan.SolveMs = p.now().Sub(start).Milliseconds()
	if errors.Is(err, model.ErrNoSolution) {
		res.Plan.Status = model.PlanStatusNoSolution
		p.log.Info("no solution", "op", "plan", "units", pm.NumUnits(), "strategy", cfg.Strategy.String(), "dur", res.Plan.SolveMs)
		return res, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("plan: %w", err)
	}

	rep, err := report.Assemble(asg, pm)
	if err != nil {
		return Result{}, fmt.Errorf("plan: %w", err)
	}
	res.Plan.Status = model.PlanStatusSolved
	res.Plan.Report = &rep
	p.log.Info("plan solved", "op", "plan", "units", pm.NumUnits(), "objective", rep.Objective,
		"vehicles_used", rep.Totals.VehiclesUsed, "iterations", mx.Iterations, "dur", res.Plan.SolveMs)
	return res, nil
}

// PlanMetrics flattens the search metrics for storage.
func (r Result) PlanMetrics() model.PlanMetrics {
	mx := r.Metrics
	return model.PlanMetrics{
		PlanID:                r.Plan.ID,
		TenantID:              r.Plan.TenantID,
		PlanDate:              r.Plan.PlanDate,
		Strategy:              mx.Strategy,
		Iterations:            mx.Iterations,
		Improvements:          mx.Improvements,
		AcceptedWorse:         mx.AcceptedWorse,
		RepairFailures:        mx.RepairFailures,
		FirstCost:             mx.FirstCost,
		BestCost:              mx.BestCost,
		RemovalSelects:        mx.RemovalSelects,
		InsertSelects:         mx.InsertSelects,
		FinalRemovalWeights:   mx.FinalRemovalWeights,
		FinalInsertionWeights: mx.FinalInsertionWeights,
		ElapsedMs:             mx.Elapsed.Milliseconds(),
	}
}

func (r Result) WeightSnapshots() []model.WeightSnapshot {
	out := make([]model.WeightSnapshot, len(r.Metrics.Snapshots))
	for i, s := range r.Metrics.Snapshots {
		out[i] = model.WeightSnapshot{Iteration: s.Iteration, Removal: s.Removal, Insertion: s.Insertion}
	}
	return out
}
