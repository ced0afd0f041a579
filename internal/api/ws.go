package api

import (
    "net/http"
    "sync"
    "time"

    "github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
    Type  string          `json:"type"`
    Topic string          `json:"topic,omitempty"`
    Event *SSEEvent       `json:"event,omitempty"`
    Error string          `json:"error,omitempty"`
}

const (
    wsPongWait   = 60 * time.Second
    wsPingPeriod = 20 * time.Second
)

// PlanEventsWSHandler handles /v1/plans/events/ws. Without ?planId= it
// streams every plan event of the caller's tenant.
func (s *Server) PlanEventsWSHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.principal(w, r)
    if !ok { return }
    topic := tenantTopic(p.Tenant)
    if pid := r.URL.Query().Get("planId"); pid != "" {
        if _, err := s.Store.GetPlan(r.Context(), p.Tenant, pid); err != nil { writeError(w, r, "Plan not found", err); return }
        topic = pid
    }
    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()

    // gorilla allows one concurrent writer
    var wmu sync.Mutex
    write := func(v any) error {
        wmu.Lock()
        defer wmu.Unlock()
        _ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
        return conn.WriteJSON(v)
    }
    ping := func() error {
        wmu.Lock()
        defer wmu.Unlock()
        return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
    }

    ch := s.Broker.Subscribe(topic)
    defer s.Broker.Unsubscribe(topic, ch)
    if err := write(wsMessage{Type: "connection_ack", Topic: topic}); err != nil { return }

    conn.SetReadLimit(1 << 16)
    _ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
    conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })

    // Read loop: answer client pings, stop on close or error.
    closed := make(chan struct{})
    go func() {
        defer close(closed)
        for {
            var msg wsMessage
            if err := conn.ReadJSON(&msg); err != nil { return }
            switch msg.Type {
            case "ping":
                _ = write(wsMessage{Type: "pong"})
            default:
                _ = write(wsMessage{Type: "error", Error: "unsupported message " + msg.Type})
            }
        }
    }()

    ticker := time.NewTicker(wsPingPeriod)
    defer ticker.Stop()
    for {
        select {
        case <-closed:
            return
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            if err := write(wsMessage{Type: "next", Topic: topic, Event: &evt}); err != nil { return }
        case <-ticker.C:
            if err := ping(); err != nil { return }
        }
    }
}
