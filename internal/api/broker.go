package api

import (
    "sync"
)

// Plan lifecycle events fanned out to SSE and websocket subscribers.
const (
    EventPlanStarted    = "plan.started"
    EventPlanCompleted  = "plan.completed"
    EventPlanNoSolution = "plan.no_solution"
    EventPlanFailed     = "plan.failed"
)

type SSEEvent struct {
    Type string         `json:"type"`
    Data map[string]any `json:"data"`
}

// tenantTopic is the topic carrying every plan event of one tenant.
func tenantTopic(tenantID string) string { return "tenant:" + tenantID }

type EventBroker interface {
    Subscribe(topic string) chan SSEEvent
    Unsubscribe(topic string, ch chan SSEEvent)
    Publish(topic string, evt SSEEvent)
}

// Broker is the in-process EventBroker. Slow subscribers drop events.
type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan SSEEvent]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[topic] == nil { b.subs[topic] = map[chan SSEEvent]struct{}{} }
    b.subs[topic][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan SSEEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[topic]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, topic) }
    close(ch)
}

func (b *Broker) Publish(topic string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[topic]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}

// publishPlan sends evt on the plan's own topic and on its tenant topic.
func publishPlan(b EventBroker, tenantID, planID string, evt SSEEvent) {
    if b == nil { return }
    b.Publish(planID, evt)
    b.Publish(tenantTopic(tenantID), evt)
}
