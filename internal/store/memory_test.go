package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/model"
)

var _ Store = (*Memory)(nil)
var _ Store = (*Postgres)(nil)

func TestMemoryPlans(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.SavePlan(ctx, model.Plan{TenantID: "t1", Status: model.PlanStatusSolved, Report: &model.Report{Objective: 7}})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.NotEmpty(t, a.CreatedAt)
	b, err := m.SavePlan(ctx, model.Plan{TenantID: "t1", Status: model.PlanStatusNoSolution})
	require.NoError(t, err)
	_, err = m.SavePlan(ctx, model.Plan{TenantID: "t2", Status: model.PlanStatusSolved})
	require.NoError(t, err)

	got, err := m.GetPlan(ctx, "t1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Report.Objective)
	_, err = m.GetPlan(ctx, "t2", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	all, next, err := m.ListPlans(ctx, "t1", "", "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Empty(t, next)

	page, next, err := m.ListPlans(ctx, "t1", "", "", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, a.ID, next)
	page, _, err = m.ListPlans(ctx, "t1", "", next, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, b.ID, page[0].ID)

	none, _, err := m.ListPlans(ctx, "t1", model.PlanStatusNoSolution, "", 10)
	require.NoError(t, err)
	require.Len(t, none, 1)
	assert.Equal(t, b.ID, none[0].ID)
}

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s, err := m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://hook", Events: []string{"plan.completed"}})
	require.NoError(t, err)

	hits, err := m.GetSubscriptionsForEvent(ctx, "t1", "plan.completed")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	hits, err = m.GetSubscriptionsForEvent(ctx, "t1", "plan.no_solution")
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, m.DeleteSubscription(ctx, "t1", s.ID))
	assert.ErrorIs(t, m.DeleteSubscription(ctx, "t1", s.ID), ErrNotFound)
}

func TestMemoryWebhookQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.EnqueueWebhook(ctx, "t1", "sub", "plan.completed", "http://hook", "s3cr3t", []byte(`{"id":"e1"}`))
	require.NoError(t, err)

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, id, due[0].ID)

	later := time.Now().Add(time.Hour)
	require.NoError(t, m.MarkWebhookDelivery(ctx, id, false, &later, "HTTP 500", 500, 12))
	due, err = m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, m.RetryWebhookDelivery(ctx, "t1", id))
	due, err = m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)

	require.NoError(t, m.FailWebhookDelivery(ctx, id, "gave up", 500, 10))
	items, _, err := m.ListWebhookDeliveries(ctx, "t1", "failed", "", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0]["attempts"])

	dlq, _, err := m.ListWebhookDLQ(ctx, "t1", "", 10)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.Equal(t, id, dlq[0]["deliveryId"])
}

func TestMemoryMetricsAndConfig(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SavePlanMetrics(ctx, model.PlanMetrics{PlanID: "p1", TenantID: "t1", PlanDate: "2026-10-19", Strategy: "PATH_CHEAPEST_ARC", Iterations: 3}))
	require.NoError(t, m.SavePlanMetrics(ctx, model.PlanMetrics{PlanID: "p1", TenantID: "t1", PlanDate: "2026-10-19", Strategy: "PATH_CHEAPEST_ARC", Iterations: 9}))
	require.NoError(t, m.SavePlanMetrics(ctx, model.PlanMetrics{PlanID: "p2", TenantID: "t1", Strategy: "PARALLEL_CHEAPEST_INSERTION"}))

	items, err := m.ListPlanMetrics(ctx, "t1", "2026-10-19", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 9, items[0].Iterations)
	items, err = m.ListPlanMetrics(ctx, "t1", "", "PARALLEL_CHEAPEST_INSERTION")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	snaps := []model.WeightSnapshot{{Iteration: 50, Removal: [2]float64{1.1, 0.9}}}
	require.NoError(t, m.SavePlanMetricsWeights(ctx, "t1", "p1", snaps))
	got, err := m.ListPlanMetricsWeights(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, snaps, got)

	cfg, err := m.GetOptimizerConfig(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, cfg)
	require.NoError(t, m.SaveOptimizerConfig(ctx, "t1", model.SolverOptions{TimeBudgetMs: 500}))
	cfg, err = m.GetOptimizerConfig(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 500, cfg.TimeBudgetMs)
}
