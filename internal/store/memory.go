package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"
    "fleetroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu     sync.Mutex
    plans  map[string]model.Plan                 // id -> plan
    byTen  map[string][]string                   // tenant -> plan ids, oldest first
    subs   map[string][]model.Subscription       // tenant -> subscriptions
    // Webhooks queue state
    deliveries map[string]*memDelivery           // id -> delivery state
    deliveriesByTenant map[string][]string       // tenant -> delivery ids
    dlq    map[string][]map[string]any           // tenant -> dead-lettered deliveries
    planMx map[string][]model.PlanMetrics        // tenant -> metrics
    weights map[string][]model.WeightSnapshot    // plan id -> snapshots
    optCfg map[string]model.SolverOptions        // tenant -> config
}

func NewMemory() *Memory {
    return &Memory{
        plans: map[string]model.Plan{},
        byTen: map[string][]string{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dlq: map[string][]map[string]any{},
        planMx: map[string][]model.PlanMetrics{},
        weights: map[string][]model.WeightSnapshot{},
        optCfg: map[string]model.SolverOptions{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Plans
func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if plan.ID == "" { plan.ID = uuid.New().String() }
    if plan.CreatedAt == "" { plan.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    if _, exists := m.plans[plan.ID]; !exists {
        m.byTen[plan.TenantID] = append(m.byTen[plan.TenantID], plan.ID)
    }
    m.plans[plan.ID] = plan
    return plan, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.plans[planID]
    if !ok || p.TenantID != tenantID { return model.Plan{}, ErrNotFound }
    return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Plan, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.byTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Plan{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        p := m.plans[ids[i]]
        if status == "" || p.Status == status { out = append(out, p) }
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

// Subscriptions
func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events { if e == eventType { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription(nil), list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    if len(out) == len(arr) { return ErrNotFound }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.iterDeliveryIDs() {
        d := m.deliveries[id]
        if d == nil { continue }
        if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
    } else {
        d.Status = "retry"
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = "failed"
    d.LastError = lastError
    m.dlq[d.TenantID] = append(m.dlq[d.TenantID], map[string]any{
        "id": uuid.New().String(), "deliveryId": id, "eventType": d.EventType, "url": d.URL,
        "lastError": lastError, "attempts": d.Attempts, "responseCode": responseCode, "latencyMs": latencyMs,
    })
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids { if id == cursor { start = i + 1; break } }
    }
    if limit <= 0 { limit = 100 }
    next := ""
    for i := start; i < len(ids); i++ {
        d := m.deliveries[ids[i]]
        if d == nil { continue }
        if status != "" && d.Status != status { continue }
        if len(out) == limit { next = out[len(out)-1]["id"].(string); break }
        item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
        if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
        if d.LastError != "" { item["lastError"] = d.LastError }
        if d.ResponseCode != 0 { item["responseCode"] = d.ResponseCode }
        out = append(out, item)
    }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil || d.TenantID != tenantID { return ErrNotFound }
    d.Status = "pending"
    d.NextAttemptAt = time.Now()
    return nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.dlq[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i]["id"] == cursor { start = i + 1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    out := append([]map[string]any{}, list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1]["id"].(string) }
    return out, next, nil
}

// Search metrics
func (m *Memory) SavePlanMetrics(ctx context.Context, mx model.PlanMetrics) error {
    m.mu.Lock(); defer m.mu.Unlock()
    items := m.planMx[mx.TenantID]
    for i := range items {
        if items[i].PlanID == mx.PlanID { items[i] = mx; return nil }
    }
    m.planMx[mx.TenantID] = append(items, mx)
    return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, planDate, strategy string) ([]model.PlanMetrics, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.PlanMetrics{}
    for _, it := range m.planMx[tenantID] {
        if planDate != "" && it.PlanDate != planDate { continue }
        if strategy != "" && it.Strategy != strategy { continue }
        out = append(out, it)
    }
    return out, nil
}

func (m *Memory) SavePlanMetricsWeights(ctx context.Context, tenantID, planID string, snaps []model.WeightSnapshot) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.weights[tenantID+"/"+planID] = append([]model.WeightSnapshot(nil), snaps...)
    return nil
}

func (m *Memory) ListPlanMetricsWeights(ctx context.Context, tenantID, planID string) ([]model.WeightSnapshot, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return append([]model.WeightSnapshot{}, m.weights[tenantID+"/"+planID]...), nil
}

// Optimizer config
func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (*model.SolverOptions, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cfg, ok := m.optCfg[tenantID]; ok { return &cfg, nil }
    return nil, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.SolverOptions) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.optCfg[tenantID] = cfg
    return nil
}

// helper: iterate delivery IDs by tenant order
func (m *Memory) iterDeliveryIDs() []string {
    ids := []string{}
    for _, lst := range m.deliveriesByTenant {
        ids = append(ids, lst...)
    }
    return ids
}
