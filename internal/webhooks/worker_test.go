package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fleetroute/internal/model"
	"fleetroute/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get(EventTypeHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := NewWorker(rs, 3, nil)
	w.HTTP = srv.Client()
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", EventPlanCompleted, srv.URL, "secret", []byte(`{"id":"evt1"}`))
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce(context.Background())

	if gotType != EventPlanCompleted {
		t.Fatalf("event type header = %q", gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := NewWorker(rs, 2, nil)
	w.HTTP = srv.Client()
	id, _ := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", EventPlanNoSolution, srv.URL, "", []byte(`{}`))

	w.processOnce(context.Background())
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].LastErr != "HTTP 500" {
		t.Fatalf("expected one failed mark, got %+v", rs.marks)
	}

	// pull the retry forward instead of waiting out the backoff
	if err := rs.RetryWebhookDelivery(context.Background(), "t1", id); err != nil {
		t.Fatal(err)
	}
	w.processOnce(context.Background())
	if len(rs.fails) != 1 || rs.fails[0].Code != 500 {
		t.Fatalf("expected dead-letter, got %+v", rs.fails)
	}
}

func TestNextBackoff(t *testing.T) {
	if got := nextBackoff(0); got != time.Second {
		t.Fatalf("attempt 0: %v", got)
	}
	if got := nextBackoff(3); got != 8*time.Second {
		t.Fatalf("attempt 3: %v", got)
	}
	if got := nextBackoff(40); got != time.Hour {
		t.Fatalf("cap: %v", got)
	}
}

func TestPublisherEmitPlan(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if _, err := st.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://a", Events: []string{EventPlanNoSolution}}); err != nil {
		t.Fatal(err)
	}
	p := NewPublisher(st, nil)

	n, err := p.EmitPlan(ctx, model.Plan{ID: "p1", TenantID: "t1", Status: model.PlanStatusSolved, Report: &model.Report{}})
	if err != nil || n != 0 {
		t.Fatalf("solved plan: n=%d err=%v", n, err)
	}
	n, err = p.EmitPlan(ctx, model.Plan{ID: "p2", TenantID: "t1", Status: model.PlanStatusNoSolution})
	if err != nil || n != 1 {
		t.Fatalf("no_solution plan: n=%d err=%v", n, err)
	}
	due, _ := st.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].EventType != EventPlanNoSolution {
		t.Fatalf("unexpected queue %+v", due)
	}
}
