package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "golang.org/x/exp/slog"

    "fleetroute/internal/api"
    "fleetroute/internal/buildinfo"
    "fleetroute/internal/config"
    "fleetroute/internal/metrics"
)

func main() {
    cfgPath := flag.String("config", os.Getenv("FLEETROUTE_CONFIG"), "path to YAML config")
    version := flag.Bool("version", false, "print version and exit")
    flag.Parse()
    if *version {
        fmt.Println(buildinfo.String())
        return
    }

    // .env is optional
    _ = godotenv.Load()

    cfg, err := config.Load(*cfgPath)
    if err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(2)
    }
    log := cfg.Log.NewLogger(os.Stderr)
    slog.SetDefault(log)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    metrics.RegisterDefault()
    srv, err := api.NewServer(ctx, cfg, log)
    if err != nil {
        log.Error("failed to init server", "err", err)
        os.Exit(1)
    }
    defer func() { _ = srv.Close() }()

    // Start webhook worker
    go srv.NewWebhookWorker().Run(ctx)

    httpSrv := &http.Server{
        Addr:              cfg.Server.Addr,
        Handler:           srv.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }
    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = httpSrv.Shutdown(shutdownCtx)
    }()

    log.Info("API listening", "addr", cfg.Server.Addr, "version", buildinfo.Version)
    if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        log.Error("server error", "err", err)
        os.Exit(1)
    }
    log.Info("API stopped")
}
