package webhooks

import (
    "bytes"
    "context"
    "fmt"
    "net/http"
    "strconv"
    "time"

    "golang.org/x/exp/slog"

    "fleetroute/internal/metrics"
    "fleetroute/internal/store"
)

// Worker polls the store for due deliveries and POSTs them.
type Worker struct {
    Store       store.Store
    HTTP        *http.Client
    Log         *slog.Logger
    MaxAttempts int
    Interval    time.Duration
    BatchSize   int
}

func NewWorker(s store.Store, maxAttempts int, log *slog.Logger) *Worker {
    if maxAttempts <= 0 { maxAttempts = 10 }
    if log == nil { log = slog.Default() }
    return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Log: log, MaxAttempts: maxAttempts, Interval: time.Second, BatchSize: 50}
}

// Run processes due deliveries every Interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
    ticker := time.NewTicker(w.Interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            w.processOnce(ctx)
        }
    }
}

func (w *Worker) processOnce(parent context.Context) {
    ctx, cancel := context.WithTimeout(parent, 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, w.BatchSize)
    if err != nil {
        w.Log.Error("fetch due deliveries", "op", "webhooks", "err", err)
        return
    }
    for _, it := range items {
        w.deliver(ctx, it)
    }
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
    if err != nil {
        _ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
        metrics.WebhookDeliveries.WithLabelValues(it.EventType, "failed").Inc()
        return
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set(EventTypeHeader, it.EventType)
    if it.Secret != "" {
        req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
    }
    start := time.Now()
    resp, err := w.HTTP.Do(req)
    latency := int(time.Since(start).Milliseconds())
    code := 0
    success := false
    lastErr := ""
    if err != nil {
        lastErr = err.Error()
    } else {
        code = resp.StatusCode
        _ = resp.Body.Close()
        success = code >= 200 && code < 300
        if !success { lastErr = "HTTP " + strconv.Itoa(code) }
    }

    status := "delivered"
    switch {
    case success:
        err = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
    case it.Attempts+1 >= w.MaxAttempts:
        status = "failed"
        err = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
        w.Log.Warn("webhook dead-lettered", "op", "webhooks", "id", it.ID, "event", it.EventType, "attempts", it.Attempts+1, "err", lastErr)
    default:
        status = "retry"
        next := time.Now().Add(nextBackoff(it.Attempts))
        err = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
    }
    if err != nil {
        w.Log.Error("record delivery", "op", "webhooks", "id", it.ID, "err", fmt.Errorf("%s: %w", status, err))
    }
    metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
    metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 12 { attempts = 12 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
