package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/batch-weighing/internal/infra/backup"
	httpx "github.com/Spok95/batch-weighing/internal/infra/http"
	"github.com/Spok95/batch-weighing/internal/infra/listeners"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scale listeners, backups and the operator bot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	reg := listeners.NewRegistry(log)
	defer func() { _ = reg.Close() }()
	if cfg.Listeners.UDPAddr != "" {
		if _, err := reg.Start(ctx, listeners.KindUDP, cfg.Listeners.UDPAddr); err != nil {
			return err
		}
	}
	for _, addr := range cfg.Listeners.TCPAddrs {
		if _, err := reg.Start(ctx, listeners.KindTCP, addr); err != nil {
			return err
		}
	}

	deps := httpx.Deps{
		Catalog:   a.catalog,
		Processes: a.processes,
		Archive:   a.archive,
		Packaging: a.packaging,
		Listeners: reg,
		Log:       log,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = a.metrics
	}
	srv := httpx.New(cfg.HTTP.Addr, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server started", "addr", cfg.HTTP.Addr)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	var job *backup.Job
	if cfg.Backup.Enabled {
		if job, err = a.backupJob(ctx, cfg); err != nil {
			return err
		}
		sched := backup.NewScheduler(job, backup.DefaultSchedule(cfg.Location()), log)
		g.Go(func() error { return sched.Run(gctx) })
	}
	if b := a.operatorBot(cfg, job); b != nil {
		g.Go(func() error { return b.Run(gctx, cfg.Telegram.PollTimeout) })
	}

	err = g.Wait()
	log.Info("graceful shutdown complete")
	return err
}
