package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/wfunc/tabletop/broadcast"
	"github.com/wfunc/tabletop/config"
	"github.com/wfunc/tabletop/events"
	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/monitor"
	"github.com/wfunc/tabletop/persistence"
	"github.com/wfunc/tabletop/room"
	"github.com/wfunc/tabletop/rpc"
	"github.com/wfunc/tabletop/server"
	"github.com/wfunc/tabletop/services"
	"github.com/wfunc/tabletop/session"
	"github.com/wfunc/tabletop/timer"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	// Initialize storage
	store, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s store: %v", cfg.Database.Driver, err)
	}
	defer store.Close()
	logger.Log.Infof("Storage ready (driver %s).", cfg.Database.Driver)

	bus, err := events.Open(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	metrics := monitor.NewMetrics("tabletop")
	registry := room.NewRegistry(store, broadcast.NewFanout(metrics), timer.Real{}, room.OptionsFromConfig(cfg.Room), metrics)
	roomService := services.NewRoomService(store, registry, bus)
	if err := bus.Subscribe(roomService.HandleRoomEvent); err != nil {
		logger.Log.Fatalf("Failed to subscribe to room events: %v", err)
	}

	httpServer := server.New(cfg.Server, cfg.Room.SendBuffer, registry, session.NewManager(), roomService, metrics)
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(rpcServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down...")

		rpcServer.SetServing(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		rpcServer.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Log.Errorf("Server stopped with error: %v", err)
		return
	}
	logger.Log.Info("Server stopped.")
}
