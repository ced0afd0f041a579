package store

import (
    "context"
    "errors"
    "time"

    "fleetroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Plans
    SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error)
    GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error)
    ListPlans(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Plan, string, error)

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
    ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error)

    // Search metrics
    SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error
    ListPlanMetrics(ctx context.Context, tenantID, planDate, strategy string) ([]model.PlanMetrics, error)
    SavePlanMetricsWeights(ctx context.Context, tenantID, planID string, snaps []model.WeightSnapshot) error
    ListPlanMetricsWeights(ctx context.Context, tenantID, planID string) ([]model.WeightSnapshot, error)

    // Optimizer config per tenant
    GetOptimizerConfig(ctx context.Context, tenantID string) (*model.SolverOptions, error)
    SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.SolverOptions) error

    Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")
