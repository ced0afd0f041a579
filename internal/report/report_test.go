package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/model"
	"fleetroute/internal/problem"
	"fleetroute/internal/routing"
)

// fakeAssignment replays fixed routes and derives cumuls from pm.
type fakeAssignment struct {
	pm     *problem.Model
	routes [][]int
}

func (f fakeAssignment) ObjectiveValue() int64   { return 42 }
func (f fakeAssignment) NumVehicles() int        { return len(f.routes) }
func (f fakeAssignment) IsVehicleUsed(v int) bool { return len(f.routes[v]) > 2 }
func (f fakeAssignment) Start(v int) int          { return f.routes[v][0] }
func (f fakeAssignment) IsEnd(v, pos int) bool    { return pos == len(f.routes[v])-1 }

func (f fakeAssignment) Next(v, pos int) (int, bool) {
	if pos+1 >= len(f.routes[v]) {
		return 0, false
	}
	return f.routes[v][pos+1], true
}

func (f fakeAssignment) CumulValue(dim string, v, pos int) (int64, error) {
	r := f.routes[v]
	var c int64
	for i := 1; i <= pos; i++ {
		switch dim {
		case routing.CapacityDimension:
			c += f.pm.DemandAt(r[i-1])
		case routing.TimeDimension:
			c += f.pm.TimeBetween(r[i-1], r[i])
		}
	}
	return c, nil
}

func sampleModel(t *testing.T, caps []int) *problem.Model {
	t.Helper()
	pm, err := problem.Build(model.Input{
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
	})
	require.NoError(t, err)
	return pm
}

func TestAssembleFixedRoutes(t *testing.T) {
	pm := sampleModel(t, []int{20, 40, 40, 30})
	// units: 1,2 Airoli (20,17); 3,4,5 Dadar (20 each)
	asg := fakeAssignment{pm: pm, routes: [][]int{
		{0, 1, 0},
		{0, 2, 3, 0},
		{0, 4, 5, 0},
		{0, 0},
	}}
	rep, err := Assemble(asg, pm)
	require.NoError(t, err)
	require.Len(t, rep.Routes, 4)

	r1 := rep.Routes[1]
	assert.True(t, r1.Used)
	assert.Equal(t, int64(1200+2100+3300), r1.DistanceMeters)
	assert.Equal(t, int64(6), r1.DistanceKm)
	assert.Equal(t, int64(37), r1.Load)
	assert.Equal(t, int64(300+450+690), r1.TimeSeconds)
	assert.Equal(t, int64(24), r1.TimeMinutes)
	assert.Equal(t, 40, r1.Capacity)
	names := []string{}
	for _, s := range r1.Stops {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Depot", "Airoli", "Dadar", "Depot"}, names)
	assert.Equal(t, int64(17), r1.Stops[2].Load)

	r2 := rep.Routes[2]
	assert.Equal(t, int64(3400+0+3300), r2.DistanceMeters)

	idle := rep.Routes[3]
	assert.False(t, idle.Used)
	assert.Zero(t, idle.DistanceMeters)
	assert.Zero(t, idle.Load)
	assert.Equal(t, 30, idle.Capacity)

	assert.Equal(t, int64(97), rep.Totals.Load)
	assert.Equal(t, 3, rep.Totals.VehiclesUsed)
	assert.Equal(t, int64(42), rep.Objective)
	assert.Equal(t, r1.DistanceMeters+r2.DistanceMeters+rep.Routes[0].DistanceMeters, rep.Totals.DistanceMeters)
}

func TestAssembleDetectsLostUnits(t *testing.T) {
	pm := sampleModel(t, []int{20, 40, 40, 30})
	asg := fakeAssignment{pm: pm, routes: [][]int{
		{0, 1, 0},
		{0, 2, 3, 0},
		{0, 4, 0},
		{0, 0},
	}}
	_, err := Assemble(asg, pm)
	assert.ErrorIs(t, err, model.ErrInvariantViolated)
}

func TestAssembleSolvedPlanConservesLoad(t *testing.T) {
	pm := sampleModel(t, []int{20, 20, 20, 30, 30, 30})
	cfg := routing.DefaultConfig()
	cfg.TimeLimit = 300 * time.Millisecond
	cfg.MaxIterations = 50
	cfg.Seed = 3
	asg, _, err := routing.Solve(context.Background(), pm, cfg)
	require.NoError(t, err)

	rep, err := Assemble(asg, pm)
	require.NoError(t, err)
	assert.Equal(t, pm.TotalDemand(), rep.Totals.Load)
	assert.Equal(t, asg.ObjectiveValue(), rep.Totals.DistanceMeters)
	for _, r := range rep.Routes {
		assert.LessOrEqual(t, r.Load, int64(r.Capacity))
	}
}

func TestWriteCSV(t *testing.T) {
	rep := model.Report{Routes: []model.RouteSummary{
		{VehicleID: 0, Used: true, DistanceMeters: 6600, TimeSeconds: 1440, Capacity: 40, Load: 37},
		{VehicleID: 1, Capacity: 30},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rep))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Distance", "Time", "Capacity", "Load"},
		{"6", "24", "40", "37"},
		{"0", "0", "30", "0"},
	}, rows)
}

func TestWriteText(t *testing.T) {
	pm := sampleModel(t, []int{20, 40, 40, 30})
	asg := fakeAssignment{pm: pm, routes: [][]int{
		{0, 1, 0},
		{0, 2, 3, 0},
		{0, 4, 5, 0},
		{0, 0},
	}}
	rep, err := Assemble(asg, pm)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, rep))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Objective: 42\n"))
	assert.Contains(t, out, "Route for vehicle 1:\n Depot Load(0) ->  Airoli Load(0) ->  Dadar Load(17) ->  Depot Load(37)\n")
	assert.Contains(t, out, "Is vehicle 3 used? - false\n")
	assert.Contains(t, out, "Time for the route: 1440s, 24mins\n")
	assert.Contains(t, out, "Total Load of all routes: 97\n")
}
