package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    pid := "p1"
    ch := b.Subscribe(pid)

    evt := SSEEvent{Type: EventPlanStarted, Data: map[string]any{"x": 1}}
    b.Publish(pid, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["x"].(int) != 1 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(pid, ch)
    if _, ok := <-ch; ok { t.Fatal("channel should be closed after unsubscribe") }
    // second unsubscribe is a no-op
    b.Unsubscribe(pid, ch)
}

func TestPublishPlanFansOutToTenant(t *testing.T) {
    b := NewBroker()
    planCh := b.Subscribe("p1")
    tenCh := b.Subscribe(tenantTopic("t1"))
    other := b.Subscribe(tenantTopic("t2"))
    defer b.Unsubscribe("p1", planCh)
    defer b.Unsubscribe(tenantTopic("t1"), tenCh)
    defer b.Unsubscribe(tenantTopic("t2"), other)

    publishPlan(b, "t1", "p1", SSEEvent{Type: EventPlanCompleted})
    for _, ch := range []chan SSEEvent{planCh, tenCh} {
        select {
        case got := <-ch:
            if got.Type != EventPlanCompleted { t.Fatalf("got %s", got.Type) }
        case <-time.After(200 * time.Millisecond):
            t.Fatal("timeout waiting for event")
        }
    }
    select {
    case got := <-other:
        t.Fatalf("other tenant received %+v", got)
    default:
    }
}
