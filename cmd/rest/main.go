package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"rent360-scheduling-be/internal/bootstrap"
	"rent360-scheduling-be/internal/config"
	"rent360-scheduling-be/internal/server"
	"rent360-scheduling-be/internal/tracer"
	"rent360-scheduling-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Telemetry)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	gormDB, err := database.Open(database.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.Connection,
	})
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if cfg.Database.Driver == database.DriverSQLite {
		if err := database.AutoMigrate(gormDB); err != nil {
			log.Panicf("Unable to migrate SQLite schema: %v", err)
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	srv := server.New(cfg, container)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Run server, relay and sweep together; the first failure stops all.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.RelayService.Run(gctx)
	})

	g.Go(func() error {
		if err := container.SweepService.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		container.SweepService.Stop(stopCtx)
		return nil
	})

	g.Go(func() error {
		return srv.Run()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Shutdown with error: %v", err)
	}
	log.Println("Server stopped")
}
