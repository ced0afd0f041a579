package model

// Core domain types shared by the planner, the store and the API.

// Location is a physical delivery point. Index 0 is the depot.
type Location struct {
    Index  int    `json:"index" yaml:"index"`
    Name   string `json:"name" yaml:"name"`
    Demand int    `json:"demand" yaml:"demand"`
}

// Input is everything a planning run needs. Names, matrix rows and demands
// share the same physical indexing; Capacities lists the fleet in vehicle order.
type Input struct {
    Names      []string  `json:"names" yaml:"names"`
    Distance   [][]int64 `json:"distance" yaml:"distance"`
    Time       [][]int64 `json:"time" yaml:"time"`
    Demands    []int     `json:"demands" yaml:"demands"`
    Capacities []int     `json:"capacities" yaml:"capacities"`
}

// SolverOptions tunes the route search engine for one run.
type SolverOptions struct {
    TimeBudgetMs     int       `json:"timeBudgetMs,omitempty" yaml:"timeBudgetMs"`
    Horizon          int64     `json:"horizon,omitempty" yaml:"horizon"`
    Strategy         string    `json:"strategy,omitempty" yaml:"strategy"`
    Seed             int64     `json:"seed,omitempty" yaml:"seed"`
    MaxIterations    int       `json:"maxIterations,omitempty" yaml:"maxIterations"`
    InitTemp         float64   `json:"initTemp,omitempty" yaml:"initTemp"`
    Cooling          float64   `json:"cooling,omitempty" yaml:"cooling"`
    RemovalWeights   []float64 `json:"removalWeights,omitempty" yaml:"removalWeights"`
    InsertionWeights []float64 `json:"insertionWeights,omitempty" yaml:"insertionWeights"`
}

// PlanRequest is the body of POST /v1/plans.
type PlanRequest struct {
    TenantID string        `json:"tenantId"`
    PlanDate string        `json:"planDate,omitempty"`
    Input    Input         `json:"input"`
    Solver   SolverOptions `json:"solver,omitempty"`
}

// Stop is one visit on a route, already translated to its physical location.
type Stop struct {
    VirtualIndex  int    `json:"virtualIndex"`
    LocationIndex int    `json:"locationIndex"`
    Name          string `json:"name"`
    Load          int64  `json:"load"`
    Time          int64  `json:"time"`
}

// RouteSummary is one row of the report.
type RouteSummary struct {
    VehicleID       int    `json:"vehicleId"`
    Used            bool   `json:"used"`
    DistanceMeters  int64  `json:"distanceM"`
    DistanceKm      int64  `json:"distanceKm"`
    TimeSeconds     int64  `json:"timeSec"`
    TimeMinutes     int64  `json:"timeMin"`
    Capacity        int    `json:"capacity"`
    Load            int64  `json:"load"`
    Stops           []Stop `json:"stops,omitempty"`
}

// Totals aggregates all route summaries.
type Totals struct {
    DistanceMeters int64   `json:"distanceM"`
    DistanceKm     int64   `json:"distanceKm"`
    Load           int64   `json:"load"`
    TimeSeconds    int64   `json:"timeSec"`
    TimeMinutes    int64   `json:"timeMin"`
    VehiclesUsed   int     `json:"vehiclesUsed"`
}

// Report is the assembled output of a solved run.
type Report struct {
    Objective int64          `json:"objective"`
    Routes    []RouteSummary `json:"routes"`
    Totals    Totals         `json:"totals"`
}

// Plan statuses.
const (
    PlanStatusRunning    = "running"
    PlanStatusSolved     = "solved"
    PlanStatusNoSolution = "no_solution"
    PlanStatusFailed     = "failed"
)

// Plan is a stored planning run. Report is nil when no solution was found.
type Plan struct {
    ID           string  `json:"id"`
    TenantID     string  `json:"tenantId"`
    PlanDate     string  `json:"planDate,omitempty"`
    Status       string  `json:"status"`
    VirtualUnits int     `json:"virtualUnits"`
    Vehicles     int     `json:"vehicles"`
    SolveMs      int64   `json:"solveMs"`
    CreatedAt    string  `json:"createdAt"`
    Error        string  `json:"error,omitempty"`
    Report       *Report `json:"report,omitempty"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

// PlanMetrics records how the search behaved on one plan.
type PlanMetrics struct {
    PlanID                string     `json:"planId"`
    TenantID              string     `json:"tenantId"`
    PlanDate              string     `json:"planDate,omitempty"`
    Strategy              string     `json:"strategy"`
    Iterations            int        `json:"iterations"`
    Improvements          int        `json:"improvements"`
    AcceptedWorse         int        `json:"acceptedWorse"`
    RepairFailures        int        `json:"repairFailures"`
    FirstCost             int64      `json:"firstCost"`
    BestCost              int64      `json:"bestCost"`
    RemovalSelects        [2]int     `json:"removalSelects"`
    InsertSelects         [2]int     `json:"insertSelects"`
    FinalRemovalWeights   [2]float64 `json:"finalRemovalWeights"`
    FinalInsertionWeights [2]float64 `json:"finalInsertionWeights"`
    ElapsedMs             int64      `json:"elapsedMs"`
}

// WeightSnapshot is the operator weights at one search iteration.
type WeightSnapshot struct {
    Iteration int        `json:"iteration"`
    Removal   [2]float64 `json:"removal"`
    Insertion [2]float64 `json:"insertion"`
}
