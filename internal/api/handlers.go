package api

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"

    "fleetroute/internal/buildinfo"
    "fleetroute/internal/metrics"
    "fleetroute/internal/model"
    "fleetroute/internal/report"
)

func parseLimit(r *http.Request) int {
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { limit = n }
    }
    return limit
}

// PlansHandler handles POST/GET /v1/plans
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.principal(w, r)
    if !ok { return }
    switch r.Method {
    case http.MethodPost:
        if !p.CanPlan() { writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin required", r.URL.Path); return }
        if s.Limiter != nil && !s.Limiter.Allow() {
            metrics.RateLimited.Inc()
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "plan rate limit exceeded", r.URL.Path)
            return
        }
        var req model.PlanRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validatePlanRequest(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
            return
        }
        if len(req.Input.Capacities) == 0 { req.Input.Capacities = s.Cfg.Fleet.Capacities() }
        opts, err := s.effectiveOptions(r.Context(), p.Tenant, req.Solver)
        if err != nil { writeError(w, r, "Load optimizer config failed", err); return }

        plan := model.Plan{
            ID:        uuid.New().String(),
            TenantID:  p.Tenant,
            PlanDate:  req.PlanDate,
            Status:    model.PlanStatusRunning,
            Vehicles:  len(req.Input.Capacities),
            CreatedAt: time.Now().UTC().Format(time.RFC3339),
        }
        if v := r.URL.Query().Get("async"); strings.EqualFold(v, "true") || v == "1" {
            saved, err := s.Store.SavePlan(r.Context(), plan)
            if err != nil { writeError(w, r, "Save plan failed", err); return }
            s.runs.Add(1)
            go func() {
                defer s.runs.Done()
                _, _ = s.runPlan(context.WithoutCancel(r.Context()), saved, req.Input, opts)
            }()
            writeJSON(w, http.StatusAccepted, saved)
            return
        }
        done, err := s.runPlan(r.Context(), plan, req.Input, opts)
        if err != nil { writeError(w, r, "Plan failed", err); return }
        writeJSON(w, http.StatusOK, done)
    case http.MethodGet:
        items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), parseLimit(r))
        if err != nil { writeError(w, r, "List plans failed", err); return }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// runPlan solves one plan and records everything downstream of it: the
// stored plan, its search metrics, broker events, webhooks and Prometheus
// counters. The returned plan is final (solved, no_solution or failed).
func (s *Server) runPlan(ctx context.Context, plan model.Plan, in model.Input, opts model.SolverOptions) (model.Plan, error) {
    publishPlan(s.Broker, plan.TenantID, plan.ID, SSEEvent{Type: EventPlanStarted, Data: map[string]any{"planId": plan.ID}})
    res, err := s.Planner.Run(ctx, in, opts)
    if err != nil {
        plan.Status = model.PlanStatusFailed
        plan.Error = err.Error()
        metrics.Plans.WithLabelValues("error").Inc()
        if _, serr := s.Store.SavePlan(ctx, plan); serr != nil {
            s.Log.Error("save failed plan", "plan", plan.ID, "err", serr)
        }
        publishPlan(s.Broker, plan.TenantID, plan.ID, SSEEvent{Type: EventPlanFailed, Data: map[string]any{"planId": plan.ID, "error": plan.Error}})
        return plan, err
    }

    res.Plan.ID, res.Plan.TenantID, res.Plan.PlanDate = plan.ID, plan.TenantID, plan.PlanDate
    res.Plan.CreatedAt = plan.CreatedAt
    saved, err := s.Store.SavePlan(ctx, res.Plan)
    if err != nil { return res.Plan, fmt.Errorf("save plan: %w", err) }
    if err := s.Store.SavePlanMetrics(ctx, res.PlanMetrics()); err != nil {
        s.Log.Warn("save plan metrics", "plan", saved.ID, "err", err)
    }
    if snaps := res.WeightSnapshots(); len(snaps) > 0 {
        if err := s.Store.SavePlanMetricsWeights(ctx, saved.TenantID, saved.ID, snaps); err != nil {
            s.Log.Warn("save weight snapshots", "plan", saved.ID, "err", err)
        }
    }

    metrics.Plans.WithLabelValues(saved.Status).Inc()
    metrics.SolveDuration.WithLabelValues(res.Metrics.Strategy).Observe(res.Metrics.Elapsed.Seconds())
    metrics.VirtualUnits.Observe(float64(saved.VirtualUnits))

    evt := SSEEvent{Type: EventPlanCompleted, Data: map[string]any{"planId": saved.ID, "status": saved.Status}}
    if saved.Status == model.PlanStatusNoSolution { evt.Type = EventPlanNoSolution }
    if saved.Report != nil {
        evt.Data["objective"] = saved.Report.Objective
        evt.Data["vehiclesUsed"] = saved.Report.Totals.VehiclesUsed
    }
    publishPlan(s.Broker, saved.TenantID, saved.ID, evt)
    if _, err := s.Pub.EmitPlan(ctx, saved); err != nil {
        s.Log.Warn("emit plan webhook", "plan", saved.ID, "err", err)
    }
    return saved, nil
}

// effectiveOptions layers request options over the tenant's stored
// optimizer config over the service defaults.
func (s *Server) effectiveOptions(ctx context.Context, tenant string, req model.SolverOptions) (model.SolverOptions, error) {
    out := s.Cfg.Solver
    tc, err := s.Store.GetOptimizerConfig(ctx, tenant)
    if err != nil { return out, err }
    if tc != nil { out = mergeOptions(out, *tc) }
    return mergeOptions(out, req), nil
}

func mergeOptions(base, over model.SolverOptions) model.SolverOptions {
    if over.TimeBudgetMs != 0 { base.TimeBudgetMs = over.TimeBudgetMs }
    if over.Horizon != 0 { base.Horizon = over.Horizon }
    if over.Strategy != "" { base.Strategy = over.Strategy }
    if over.Seed != 0 { base.Seed = over.Seed }
    if over.MaxIterations != 0 { base.MaxIterations = over.MaxIterations }
    if over.InitTemp != 0 { base.InitTemp = over.InitTemp }
    if over.Cooling != 0 { base.Cooling = over.Cooling }
    if len(over.RemovalWeights) > 0 { base.RemovalWeights = over.RemovalWeights }
    if len(over.InsertionWeights) > 0 { base.InsertionWeights = over.InsertionWeights }
    return base
}

// PlanByIDHandler handles GET /v1/plans/{id}, /v1/plans/{id}/summary.csv and
// /v1/plans/{id}/events/stream
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.principal(w, r)
    if !ok { return }
    parts := strings.Split(rest, "/")
    id := parts[0]
    plan, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
    if err != nil { writeError(w, r, "Plan not found", err); return }
    switch {
    case len(parts) == 1:
        writeJSON(w, http.StatusOK, plan)
    case len(parts) == 2 && parts[1] == "summary.csv":
        if plan.Report == nil {
            writeProblem(w, http.StatusConflict, "No report", "plan status is "+plan.Status, r.URL.Path)
            return
        }
        w.Header().Set("Content-Type", "text/csv")
        w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "plan-"+plan.ID+".csv"))
        if err := report.WriteCSV(w, *plan.Report); err != nil {
            s.Log.Warn("write summary csv", "plan", plan.ID, "err", err)
        }
    case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
        s.streamPlanEvents(w, r, plan)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    }
}

func (s *Server) streamPlanEvents(w http.ResponseWriter, r *http.Request, plan model.Plan) {
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(plan.ID)
    defer s.Broker.Unsubscribe(plan.ID, ch)
    // re-read after subscribing so a run finishing in between is not missed
    if cur, err := s.Store.GetPlan(r.Context(), plan.TenantID, plan.ID); err == nil { plan = cur }
    writeEvent := func(typ string, data any) {
        b, _ := json.Marshal(data)
        fmt.Fprintf(w, "event: %s\n", typ)
        fmt.Fprintf(w, "data: %s\n\n", string(b))
        flusher.Flush()
    }
    // current state first, so late subscribers see finished plans
    writeEvent("plan.status", map[string]any{"planId": plan.ID, "status": plan.Status})
    if plan.Status != model.PlanStatusRunning { return }
    heartbeat := time.NewTicker(15 * time.Second)
    defer heartbeat.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            writeEvent(evt.Type, evt.Data)
            if evt.Type != EventPlanStarted { return }
        case <-heartbeat.C:
            writeEvent("heartbeat", map[string]any{"planId": plan.ID, "ts": time.Now().UTC().Format(time.RFC3339)})
        }
    }
}

// OptimizerConfigHandler handles GET/PUT /v1/optimizer/config
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.principal(w, r)
    if !ok { return }
    switch r.Method {
    case http.MethodGet:
        tc, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
        if err != nil { writeError(w, r, "Load optimizer config failed", err); return }
        eff := s.Cfg.Solver
        if tc != nil { eff = mergeOptions(eff, *tc) }
        writeJSON(w, http.StatusOK, map[string]any{"defaults": s.Cfg.Solver, "tenant": tc, "effective": eff})
    case http.MethodPut:
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var body struct{ Config *model.SolverOptions `json:"config"` }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if err := validateSolverOptions(body.Config); err != nil { writeProblem(w, 400, "Invalid optimizer config", err.Error(), r.URL.Path); return }
        if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, *body.Config); err != nil { writeError(w, r, "Save failed", err); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.requireAdmin(w, r)
    if !ok { return }
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSubscription(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
            return
        }
        req.TenantID = p.Tenant
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil { writeError(w, r, "Create subscription failed", err); return }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), parseLimit(r))
        if err != nil { writeError(w, r, "List subscriptions failed", err); return }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p, ok := s.requireAdmin(w, r)
    if !ok { return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeError(w, r, "Delete subscription failed", err); return }
    w.WriteHeader(204)
}

// Admin plan metrics, filtered by planDate and strategy. With planId the
// operator weight snapshots of that plan are returned instead.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    p, ok := s.requireAdmin(w, r)
    if !ok { return }
    q := r.URL.Query()
    if planID := q.Get("planId"); planID != "" {
        items, err := s.Store.ListPlanMetricsWeights(r.Context(), p.Tenant, planID)
        if err != nil { writeError(w, r, "Metrics weights failed", err); return }
        writeJSON(w, 200, map[string]any{"planId": planID, "items": items})
        return
    }
    items, err := s.Store.ListPlanMetrics(r.Context(), p.Tenant, q.Get("planDate"), q.Get("strategy"))
    if err != nil { writeError(w, r, "Plan metrics failed", err); return }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    p, ok := s.requireAdmin(w, r)
    if !ok { return }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), parseLimit(r))
    if err != nil { writeError(w, r, "List deliveries failed", err); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p, ok := s.requireAdmin(w, r)
    if !ok { return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeError(w, r, "Retry delivery failed", err); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Admin: webhook DLQ list
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    p, ok := s.requireAdmin(w, r)
    if !ok { return }
    items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), parseLimit(r))
    if err != nil { writeError(w, r, "List DLQ failed", err); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    if err := s.Store.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
