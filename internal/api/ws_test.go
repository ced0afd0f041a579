package api

import (
    "bytes"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
)

func TestPlanEventsWebSocket(t *testing.T) {
    s := newTestServer(t, testConfig())
    ts := httptest.NewServer(s.Routes())
    defer ts.Close()

    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_test")
    conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/plans/events/ws", hdr)
    if err != nil { t.Fatalf("dial: %v", err) }
    defer conn.Close()
    if resp.StatusCode != http.StatusSwitchingProtocols { t.Fatalf("handshake: %d", resp.StatusCode) }
    _ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

    var ack wsMessage
    if err := conn.ReadJSON(&ack); err != nil { t.Fatalf("read ack: %v", err) }
    if ack.Type != "connection_ack" || ack.Topic != tenantTopic("t_test") { t.Fatalf("ack: %+v", ack) }

    if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil { t.Fatal(err) }
    var pong wsMessage
    if err := conn.ReadJSON(&pong); err != nil || pong.Type != "pong" { t.Fatalf("pong: %+v %v", pong, err) }

    req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/plans", bytes.NewReader(planBody([]int{20, 20, 30})))
    req.Header.Set("X-Tenant-Id", "t_test")
    res, err := http.DefaultClient.Do(req)
    if err != nil { t.Fatal(err) }
    res.Body.Close()
    if res.StatusCode != 200 { t.Fatalf("plan: %d", res.StatusCode) }

    var types []string
    for len(types) < 2 {
        var msg wsMessage
        if err := conn.ReadJSON(&msg); err != nil { t.Fatalf("read event: %v", err) }
        if msg.Type != "next" || msg.Event == nil { continue }
        types = append(types, msg.Event.Type)
    }
    if types[0] != EventPlanStarted || types[1] != EventPlanNoSolution { t.Fatalf("events: %v", types) }
}

func TestPlanEventsWebSocketUnknownPlan(t *testing.T) {
    s := newTestServer(t, testConfig())
    rr := do(s, http.MethodGet, "/v1/plans/events/ws?planId=missing", "admin", nil)
    if rr.Code != http.StatusNotFound { t.Fatalf("unknown plan: %d", rr.Code) }
}
