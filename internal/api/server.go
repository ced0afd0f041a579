package api

import (
    "bufio"
    "context"
    "errors"
    "net"
    "net/http"
    "strings"
    "sync"
    "time"

    "golang.org/x/exp/slog"
    "golang.org/x/time/rate"

    "fleetroute/internal/auth"
    "fleetroute/internal/config"
    "fleetroute/internal/metrics"
    "fleetroute/internal/planner"
    "fleetroute/internal/store"
    "fleetroute/internal/webhooks"

    "github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
    Store   store.Store
    Planner *planner.Planner
    Pub     *webhooks.Publisher
    Auth    *auth.Verifier
    Broker  EventBroker
    Limiter *rate.Limiter
    Log     *slog.Logger
    Cfg     config.Config

    closers []func() error
    runs    sync.WaitGroup // async plan runs
}

// NewServer wires the server from cfg. Without a database URL the in-memory
// store is used; without a Redis URL events stay in process.
func NewServer(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
    if log == nil { log = slog.Default() }
    s := &Server{Cfg: cfg, Log: log}
    if strings.TrimSpace(cfg.Server.DatabaseURL) == "" {
        s.Store = store.NewMemory()
    } else {
        pg, err := store.NewPostgres(cfg.Server.DatabaseURL)
        if err != nil { return nil, err }
        if err := pg.Migrate(ctx); err != nil {
            _ = pg.Close()
            return nil, err
        }
        s.Store = pg
        s.closers = append(s.closers, pg.Close)
    }
    if cfg.Server.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.Server.RedisURL)
        if err != nil {
            log.Warn("redis broker unavailable, using in-memory broker", "err", err)
            s.Broker = NewBroker()
        } else {
            s.Broker = rb
            s.closers = append(s.closers, rb.Close)
        }
    } else {
        s.Broker = NewBroker()
    }
    if cfg.Server.RateLimit > 0 {
        burst := cfg.Server.RateBurst
        if burst <= 0 { burst = 1 }
        s.Limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), burst)
    }
    s.Planner = planner.New(log)
    s.Pub = webhooks.NewPublisher(s.Store, log)
    s.Auth = auth.NewVerifier(cfg.Server.AuthMode, []byte(cfg.Server.AuthSecret))
    return s, nil
}

// Wait blocks until every async plan run has finished.
func (s *Server) Wait() { s.runs.Wait() }

// Close waits for async runs, then releases the store and broker
// connections.
func (s *Server) Close() error {
    s.Wait()
    var first error
    for _, c := range s.closers {
        if err := c(); err != nil && first == nil { first = err }
    }
    return first
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Cfg.Server.WebhookMaxAttempts, s.Log)
}

// Routes returns the full HTTP surface wrapped in logging and metrics.
func (s *Server) Routes() http.Handler {
    mux := http.NewServeMux()

    // Plans
    mux.HandleFunc("/v1/plans", s.PlansHandler)
    mux.HandleFunc("/v1/plans/events/ws", s.PlanEventsWSHandler)
    mux.HandleFunc("/v1/plans/", s.PlanByIDHandler) // includes /summary.csv, /events/stream

    // Optimizer config
    mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)

    // Admin
    mux.HandleFunc("/v1/admin/plan-metrics", s.PlanMetricsHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq", s.WebhookDLQHandler)

    // Health and metrics
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    return s.logMiddleware(metricsMiddleware(mux))
}

type statusRecorder struct {
    http.ResponseWriter
    status int
    bytes  int
}

func (r *statusRecorder) Write(b []byte) (int, error) {
    n, err := r.ResponseWriter.Write(b)
    r.bytes += n
    return n, err
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the middleware.
func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("hijack not supported") }
    r.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        s.Log.Info("http", "op", "access", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path,
            "status", rec.status, "bytes", rec.bytes, "dur", time.Since(start))
    })
}
