package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "embed"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "io/fs"
    "sort"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "fleetroute/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema files in name order, skipping those
// already recorded in schema_migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
    if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`); err != nil {
        return fmt.Errorf("migrate: %w", err)
    }
    names, err := fs.Glob(migrations, "migrations/*.sql")
    if err != nil { return err }
    sort.Strings(names)
    for _, name := range names {
        var done bool
        if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name=$1)`, name).Scan(&done); err != nil {
            return fmt.Errorf("migrate %s: %w", name, err)
        }
        if done { continue }
        body, err := migrations.ReadFile(name)
        if err != nil { return err }
        tx, err := p.db.BeginTx(ctx, nil)
        if err != nil { return err }
        if _, err := tx.ExecContext(ctx, string(body)); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("migrate %s: %w", name, err)
        }
        if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("migrate %s: %w", name, err)
        }
        if err := tx.Commit(); err != nil { return err }
    }
    return nil
}

// Plans
func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
    if plan.ID == "" { plan.ID = uuid.New().String() }
    created := time.Now().UTC()
    if plan.CreatedAt != "" {
        if t, err := time.Parse(time.RFC3339, plan.CreatedAt); err == nil { created = t }
    }
    plan.CreatedAt = created.Format(time.RFC3339)
    var rep any
    if plan.Report != nil {
        b, err := json.Marshal(plan.Report)
        if err != nil { return model.Plan{}, err }
        rep = b
    }
    _, err := p.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, plan_date, status, virtual_units, vehicles, solve_ms, error, report, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, virtual_units=EXCLUDED.virtual_units, vehicles=EXCLUDED.vehicles, solve_ms=EXCLUDED.solve_ms, error=EXCLUDED.error, report=EXCLUDED.report`,
        plan.ID, plan.TenantID, nullIfEmpty(plan.PlanDate), plan.Status, plan.VirtualUnits, plan.Vehicles, plan.SolveMs, nullIfEmpty(plan.Error), rep, created)
    if err != nil { return model.Plan{}, err }
    return plan, nil
}

const planColumns = `id::text, tenant_id, COALESCE(plan_date,''), status, virtual_units, vehicles, solve_ms, COALESCE(error,''), report, created_at`

func scanPlan(sc interface{ Scan(...any) error }) (model.Plan, error) {
    var pl model.Plan
    var rep []byte
    var created time.Time
    if err := sc.Scan(&pl.ID, &pl.TenantID, &pl.PlanDate, &pl.Status, &pl.VirtualUnits, &pl.Vehicles, &pl.SolveMs, &pl.Error, &rep, &created); err != nil {
        return model.Plan{}, err
    }
    pl.CreatedAt = created.UTC().Format(time.RFC3339)
    if len(rep) > 0 {
        var r model.Report
        if err := json.Unmarshal(rep, &r); err != nil { return model.Plan{}, fmt.Errorf("plan %s: report: %w", pl.ID, err) }
        pl.Report = &r
    }
    return pl, nil
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
    if _, err := uuid.Parse(planID); err != nil { return model.Plan{}, ErrNotFound }
    row := p.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, planID)
    pl, err := scanPlan(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Plan{}, ErrNotFound }
    return pl, err
}

func (p *Postgres) ListPlans(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Plan, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans
        WHERE tenant_id=$1 AND ($2='' OR status=$2) AND ($3='' OR id::text > $3) ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Plan{}
    var last string
    for rows.Next() {
        pl, err := scanPlan(rows)
        if err != nil { return nil, "", err }
        out = append(out, pl)
        last = pl.ID
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

// Subscriptions
func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, nullIfEmpty(req.Secret))
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    ev, _ := json.Marshal([]string{eventType})
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, string(ev))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions
        WHERE tenant_id=$1 AND ($2='' OR id::text > $2) ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    if _, err := uuid.Parse(id); err != nil { return ErrNotFound }
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`,
            nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

// FailWebhookDelivery marks the delivery failed and copies it to the
// dead-letter table in one transaction.
func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    res, err := tx.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, response_code=$3, latency_ms=$4, updated_at=now() WHERE id=$1`,
        id, nullIfEmpty(lastError), responseCode, latencyMs)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    _, err = tx.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, attempts, last_error, response_code, latency_ms)
        SELECT $2, tenant_id, id, event_type, url, secret, payload, attempts, last_error, response_code, latency_ms FROM webhook_deliveries WHERE id=$1`, id, uuid.New().String())
    if err != nil { return err }
    return tx.Commit()
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, status, attempts, url, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0)
        FROM webhook_deliveries WHERE tenant_id=$1 AND ($2='' OR status=$2) AND ($3='' OR id::text > $3) ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, et, st, url, lastErr string
        var attempts, code int
        var next time.Time
        if err := rows.Scan(&id, &et, &st, &attempts, &url, &next, &lastErr, &code); err != nil { return nil, "", err }
        item := map[string]any{"id": id, "eventType": et, "status": st, "attempts": attempts, "url": url, "nextAttemptAt": next}
        if lastErr != "" { item["lastError"] = lastErr }
        if code != 0 { item["responseCode"] = code }
        out = append(out, item)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    if _, err := uuid.Parse(id); err != nil { return ErrNotFound }
    res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(delivery_id::text,''), event_type, url, COALESCE(last_error,''), attempts, created_at, COALESCE(response_code,0), COALESCE(latency_ms,0)
        FROM webhook_dlq WHERE tenant_id=$1 AND ($2='' OR id::text > $2) ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, delID, et, url, errStr string
        var attempts, code, latency int
        var created time.Time
        if err := rows.Scan(&id, &delID, &et, &url, &errStr, &attempts, &created, &code, &latency); err != nil { return nil, "", err }
        out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": et, "url": url, "lastError": errStr, "attempts": attempts, "createdAt": created, "responseCode": code, "latencyMs": latency})
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

// Search metrics
func (p *Postgres) SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error {
    b, err := json.Marshal(m)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO plan_metrics (plan_id, tenant_id, plan_date, strategy, metrics) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (plan_id) DO UPDATE SET strategy=EXCLUDED.strategy, metrics=EXCLUDED.metrics, created_at=now()`,
        m.PlanID, m.TenantID, nullIfEmpty(m.PlanDate), m.Strategy, b)
    return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, tenantID, planDate, strategy string) ([]model.PlanMetrics, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT metrics FROM plan_metrics
        WHERE tenant_id=$1 AND ($2='' OR plan_date=$2) AND ($3='' OR strategy=$3) ORDER BY created_at`, tenantID, planDate, strategy)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.PlanMetrics{}
    for rows.Next() {
        var b []byte
        if err := rows.Scan(&b); err != nil { return nil, err }
        var m model.PlanMetrics
        if err := json.Unmarshal(b, &m); err != nil { return nil, err }
        out = append(out, m)
    }
    return out, rows.Err()
}

func (p *Postgres) SavePlanMetricsWeights(ctx context.Context, tenantID, planID string, snaps []model.WeightSnapshot) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    if _, err := tx.ExecContext(ctx, `DELETE FROM plan_metrics_weights WHERE tenant_id=$1 AND plan_id=$2`, tenantID, planID); err != nil { return err }
    for _, s := range snaps {
        rem, _ := json.Marshal(s.Removal)
        ins, _ := json.Marshal(s.Insertion)
        if _, err := tx.ExecContext(ctx, `INSERT INTO plan_metrics_weights (plan_id, tenant_id, iteration, removal, insertion) VALUES ($1,$2,$3,$4,$5)`,
            planID, tenantID, s.Iteration, rem, ins); err != nil { return err }
    }
    return tx.Commit()
}

func (p *Postgres) ListPlanMetricsWeights(ctx context.Context, tenantID, planID string) ([]model.WeightSnapshot, error) {
    if _, err := uuid.Parse(planID); err != nil { return []model.WeightSnapshot{}, nil }
    rows, err := p.db.QueryContext(ctx, `SELECT iteration, removal, insertion FROM plan_metrics_weights WHERE tenant_id=$1 AND plan_id=$2 ORDER BY iteration`, tenantID, planID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.WeightSnapshot{}
    for rows.Next() {
        var s model.WeightSnapshot
        var rem, ins []byte
        if err := rows.Scan(&s.Iteration, &rem, &ins); err != nil { return nil, err }
        _ = json.Unmarshal(rem, &s.Removal)
        _ = json.Unmarshal(ins, &s.Insertion)
        out = append(out, s)
    }
    return out, rows.Err()
}

// Optimizer config
func (p *Postgres) GetOptimizerConfig(ctx context.Context, tenantID string) (*model.SolverOptions, error) {
    var b []byte
    err := p.db.QueryRowContext(ctx, `SELECT config FROM optimizer_config WHERE tenant_id=$1`, tenantID).Scan(&b)
    if errors.Is(err, sql.ErrNoRows) { return nil, nil }
    if err != nil { return nil, err }
    var cfg model.SolverOptions
    if err := json.Unmarshal(b, &cfg); err != nil { return nil, err }
    return &cfg, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.SolverOptions) error {
    b, err := json.Marshal(cfg)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO optimizer_config (tenant_id, config, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=EXCLUDED.config, updated_at=now()`, tenantID, b)
    return err
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
