package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // Plans counts finished planning runs by status (solved, no_solution, error)
    Plans = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "fleetroute_plans_total", Help: "Planning runs by outcome."},
        []string{"status"},
    )
    // SolveDuration records wall time spent in the route search
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "fleetroute_solve_duration_seconds", Help: "Route search duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60}},
        []string{"strategy"},
    )
    // VirtualUnits tracks the size of decomposed problems
    VirtualUnits = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "fleetroute_virtual_units", Help: "Virtual demand units per plan.", Buckets: prometheus.ExponentialBuckets(4, 2, 10)},
    )
    // RateLimited counts plan requests rejected by the limiter
    RateLimited = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "fleetroute_plans_rate_limited_total", Help: "Plan requests rejected by the rate limiter."},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(Plans)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(VirtualUnits)
        Registry.MustRegister(RateLimited)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
