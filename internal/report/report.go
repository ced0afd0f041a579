// Package report turns an engine assignment back into physical routes.
package report

import (
	"fmt"

	"fleetroute/internal/model"
	"fleetroute/internal/problem"
	"fleetroute/internal/routing"
)

// Assignment is the part of an engine result the assembler reads.
// *opt.Assignment satisfies it.
type Assignment interface {
	ObjectiveValue() int64
	NumVehicles() int
	IsVehicleUsed(v int) bool
	Start(v int) int
	IsEnd(v, pos int) bool
	Next(v, pos int) (int, bool)
	CumulValue(dimension string, v, pos int) (int64, error)
}

// Assemble walks every vehicle's route and builds the report. Distance is
// summed from pm, load and time are read from the terminal cumuls. Unused
// vehicles get a zero row. The total load must equal pm's total demand.
func Assemble(asg Assignment, pm *problem.Model) (model.Report, error) {
	if asg.NumVehicles() != pm.NumVehicles() {
		return model.Report{}, fmt.Errorf("report: %d routes for %d vehicles: %w", asg.NumVehicles(), pm.NumVehicles(), model.ErrInvariantViolated)
	}
	rep := model.Report{Objective: asg.ObjectiveValue(), Routes: make([]model.RouteSummary, 0, asg.NumVehicles())}
	for v := 0; v < asg.NumVehicles(); v++ {
		rs := model.RouteSummary{VehicleID: v, Capacity: int(pm.Capacity(v))}
		if !asg.IsVehicleUsed(v) {
			depot := model.Stop{VirtualIndex: routing.Depot, LocationIndex: pm.PhysicalIndex(routing.Depot), Name: pm.LocationName(routing.Depot)}
			rs.Stops = []model.Stop{depot, depot}
			rep.Routes = append(rep.Routes, rs)
			continue
		}
		rs.Used = true
		if err := walk(asg, pm, v, &rs); err != nil {
			return model.Report{}, err
		}
		rep.Routes = append(rep.Routes, rs)

		rep.Totals.DistanceMeters += rs.DistanceMeters
		rep.Totals.Load += rs.Load
		rep.Totals.TimeSeconds += rs.TimeSeconds
		rep.Totals.VehiclesUsed++
	}
	rep.Totals.DistanceKm = rep.Totals.DistanceMeters / 1000
	rep.Totals.TimeMinutes = rep.Totals.TimeSeconds / 60

	if want := pm.TotalDemand(); rep.Totals.Load != want {
		return model.Report{}, fmt.Errorf("report: delivered %d of %d units: %w", rep.Totals.Load, want, model.ErrInvariantViolated)
	}
	return rep, nil
}

func walk(asg Assignment, pm *problem.Model, v int, rs *model.RouteSummary) error {
	pos := 0
	node := asg.Start(v)
	for {
		load, err := asg.CumulValue(routing.CapacityDimension, v, pos)
		if err != nil {
			return fmt.Errorf("report: vehicle %d: %w", v, err)
		}
		at, err := asg.CumulValue(routing.TimeDimension, v, pos)
		if err != nil {
			return fmt.Errorf("report: vehicle %d: %w", v, err)
		}
		rs.Stops = append(rs.Stops, model.Stop{
			VirtualIndex:  node,
			LocationIndex: pm.PhysicalIndex(node),
			Name:          pm.LocationName(node),
			Load:          load,
			Time:          at,
		})
		if asg.IsEnd(v, pos) {
			rs.Load = load
			rs.TimeSeconds = at
			break
		}
		next, ok := asg.Next(v, pos)
		if !ok {
			return fmt.Errorf("report: vehicle %d: route broken at position %d: %w", v, pos, model.ErrInvariantViolated)
		}
		rs.DistanceMeters += pm.DistanceBetween(node, next)
		node = next
		pos++
	}
	if rs.Load > int64(rs.Capacity) {
		return fmt.Errorf("report: vehicle %d: load %d over capacity %d: %w", v, rs.Load, rs.Capacity, model.ErrInvariantViolated)
	}
	rs.DistanceKm = rs.DistanceMeters / 1000
	rs.TimeMinutes = rs.TimeSeconds / 60
	return nil
}
