//go:build postgres_integration

package store

import (
    "os"
    "testing"

    "fleetroute/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    defer p.Close()
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.Migrate(t.Context()); err != nil { t.Fatalf("Migrate: %v", err) }

    saved, err := p.SavePlan(t.Context(), model.Plan{TenantID: "t_it", Status: model.PlanStatusNoSolution, VirtualUnits: 3, Vehicles: 1})
    if err != nil { t.Fatalf("SavePlan: %v", err) }
    got, err := p.GetPlan(t.Context(), "t_it", saved.ID)
    if err != nil { t.Fatalf("GetPlan: %v", err) }
    if got.Status != model.PlanStatusNoSolution || got.Report != nil { t.Fatalf("unexpected plan %+v", got) }
    if _, _, err := p.ListPlans(t.Context(), "t_it", "", "", 1); err != nil { t.Fatalf("ListPlans: %v", err) }
}
