// Command fleetroute plans one batch run from files: it loads the location
// sheet and matrices, solves, prints the route report and writes the
// per-vehicle summary CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"

	"fleetroute/internal/buildinfo"
	"fleetroute/internal/config"
	"fleetroute/internal/dataset"
	"fleetroute/internal/model"
	"fleetroute/internal/planner"
	"fleetroute/internal/report"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("FLEETROUTE_CONFIG"), "path to YAML config")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *version {
		fmt.Println(buildinfo.String())
		return
	}
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := cfg.Log.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, out io.Writer) error {
	var src dataset.Source = dataset.Files{
		SheetPath:    cfg.Data.Locations,
		DistancePath: cfg.Data.Distance,
		TimePath:     cfg.Data.Time,
		Capacities:   cfg.Fleet.Capacities(),
	}
	in, err := src.Load()
	if err != nil {
		return err
	}
	log.Debug("input loaded", "source", src.Name(), "locations", len(in.Names), "vehicles", len(in.Capacities))

	res, err := planner.New(log).Run(ctx, in, cfg.Solver)
	if err != nil {
		return err
	}
	if res.Plan.Status == model.PlanStatusNoSolution {
		fmt.Fprintln(out, "No solution!")
		return nil
	}
	if err := report.WriteText(out, *res.Plan.Report); err != nil {
		return err
	}
	if cfg.Output.CSV == "" {
		return nil
	}
	f, err := os.Create(cfg.Output.CSV)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, *res.Plan.Report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
