package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"fleetroute/internal/model"
	"fleetroute/internal/store"
)

// Event types delivered to subscribers.
const (
	EventPlanCompleted  = "plan.completed"
	EventPlanNoSolution = "plan.no_solution"
)

// EventFor maps a plan status to its webhook event type.
func EventFor(status string) string {
	if status == model.PlanStatusNoSolution {
		return EventPlanNoSolution
	}
	return EventPlanCompleted
}

type Publisher struct {
	Store store.Store
	Log   *slog.Logger
}

func NewPublisher(s store.Store, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{Store: s, Log: log}
}

// Emit queues an event for every subscription of the tenant to eventType
// and returns how many deliveries were queued.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) (int, error) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		return 0, fmt.Errorf("emit %s: %w", eventType, err)
	}
	if len(subs) == 0 {
		return 0, nil
	}
	payload := map[string]any{
		"id":       "evt_" + uuid.New().String(),
		"type":     eventType,
		"tenantId": tenantID,
		"ts":       time.Now().UTC().Format(time.RFC3339),
		"data":     data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("emit %s: %w", eventType, err)
	}
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			p.Log.Warn("enqueue webhook", "op", "emit", "event", eventType, "subscription", s.ID, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

// EmitPlan sends the plan's outcome event. The payload carries the plan
// header and totals, not the full route listing.
func (p *Publisher) EmitPlan(ctx context.Context, plan model.Plan) (int, error) {
	data := map[string]any{
		"planId":       plan.ID,
		"planDate":     plan.PlanDate,
		"status":       plan.Status,
		"virtualUnits": plan.VirtualUnits,
		"vehicles":     plan.Vehicles,
		"solveMs":      plan.SolveMs,
	}
	if plan.Report != nil {
		data["objective"] = plan.Report.Objective
		data["totals"] = plan.Report.Totals
	}
	return p.Emit(ctx, plan.TenantID, EventFor(plan.Status), data)
}
