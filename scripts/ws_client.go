// Package main runs a demo WebSocket client for plan events.
//
// Usage: go run ./scripts [plan-request.json]
//
// With a request file the client submits it as an async plan after
// connecting, then prints events until the plan finishes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Event *struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	} `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/plans/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			if m.Event == nil {
				log.Printf("WS <- %s %s%s", m.Type, m.Topic, m.Error)
				continue
			}
			b, _ := json.Marshal(m.Event.Data)
			log.Printf("WS <- %s: %s", m.Event.Type, b)
			if m.Event.Type != "plan.started" {
				return
			}
		}
	}()

	if len(os.Args) > 1 {
		body, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Fatal(err)
		}
		req, _ := http.NewRequest(http.MethodPost, base+"/v1/plans?async=true", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-Id", "t_demo")
		req.Header.Set("X-Role", "admin")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		var plan struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&plan)
		_ = resp.Body.Close()
		log.Printf("Plan %s: %s (HTTP %d)", plan.ID, plan.Status, resp.StatusCode)
	}

	select {
	case <-time.After(2 * time.Minute):
	case <-done:
	}
}
