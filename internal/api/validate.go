package api

import (
    "fmt"
    "net/url"
    "strings"

    "fleetroute/internal/model"
    "fleetroute/internal/opt"
    "fleetroute/internal/webhooks"
)

// maxPlanBudgetMs caps the search time a single request may ask for.
const maxPlanBudgetMs = 120000

func validateSolverOptions(o *model.SolverOptions) error {
    if _, err := opt.ParseStrategy(o.Strategy); err != nil {
        return err
    }
    if o.TimeBudgetMs < 0 || o.TimeBudgetMs > maxPlanBudgetMs {
        return fmt.Errorf("timeBudgetMs must be in [0,%d]", maxPlanBudgetMs)
    }
    if o.Horizon < 0 {
        return fmt.Errorf("horizon must be >= 0")
    }
    if o.MaxIterations < 0 {
        return fmt.Errorf("maxIterations must be >= 0")
    }
    if o.InitTemp < 0 {
        return fmt.Errorf("initTemp must be >= 0")
    }
    if o.Cooling != 0 && (o.Cooling <= 0 || o.Cooling >= 1) {
        return fmt.Errorf("cooling must be in (0,1)")
    }
    if len(o.RemovalWeights) > 0 && len(o.RemovalWeights) != 2 {
        return fmt.Errorf("removalWeights must have length 2")
    }
    if len(o.InsertionWeights) > 0 && len(o.InsertionWeights) != 2 {
        return fmt.Errorf("insertionWeights must have length 2")
    }
    for _, w := range append(append([]float64{}, o.RemovalWeights...), o.InsertionWeights...) {
        if w < 0 { return fmt.Errorf("operator weights must be >= 0") }
    }
    return nil
}

func validatePlanRequest(req *model.PlanRequest) error {
    if len(req.Input.Names) == 0 {
        return fmt.Errorf("input.names must not be empty")
    }
    if req.PlanDate != "" && len(req.PlanDate) != len("2006-01-02") {
        return fmt.Errorf("planDate must be YYYY-MM-DD")
    }
    return validateSolverOptions(&req.Solver)
}

var knownEvents = map[string]struct{}{
    webhooks.EventPlanCompleted:  {},
    webhooks.EventPlanNoSolution: {},
}

func validateSubscription(req *model.SubscriptionRequest) error {
    u, err := url.Parse(req.URL)
    if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
        return fmt.Errorf("url must be an absolute http(s) URL")
    }
    if len(req.Events) == 0 {
        return fmt.Errorf("events must not be empty")
    }
    for _, e := range req.Events {
        if _, ok := knownEvents[strings.TrimSpace(e)]; !ok {
            return fmt.Errorf("unknown event %q", e)
        }
    }
    return nil
}
