package api

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "fleetroute/internal/metrics"
)

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        labels := []string{r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status)}
        metrics.HTTPRequests.WithLabelValues(labels...).Inc()
        metrics.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
    })
}

// routeLabel collapses ids so the path label stays low-cardinality.
func routeLabel(path string) string {
    parts := strings.Split(strings.Trim(path, "/"), "/")
    for i, p := range parts {
        if i == 0 { continue }
        switch parts[i-1] {
        case "plans", "subscriptions", "webhook-deliveries":
            if p != "events" { parts[i] = "{id}" }
        }
    }
    return "/" + strings.Join(parts, "/")
}
