package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"massa-api/api"
	"massa-api/config"
	"massa-api/db"
	"massa-api/graph"
	"massa-api/handlers"
	"massa-api/logger"
	"massa-api/mempool"
	"massa-api/metrics"
	"massa-api/peers"
	"massa-api/query"
	"massa-api/repository"
	"massa-api/routers"
	"massa-api/rpc"
	"massa-api/staking"
	"massa-api/submission"
	"massa-api/timeslots"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "massa-api",
		Short:         "Public JSON-RPC API of a multi-threaded block DAG node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config/config.yaml", "path to config file")
	cmd.Flags().String("log-level", "", "log level override (debug, info, warn, error)")
	_ = v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting node API server...")

	clock, err := timeslots.NewClock(cfg.Consensus.GenesisTimestamp, cfg.Consensus.SlotDuration,
		cfg.Consensus.ThreadCount, cfg.Consensus.PeriodsPerCycle)
	if err != nil {
		return fmt.Errorf("consensus config: %w", err)
	}

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		return fmt.Errorf("open leveldb: %w", err)
	}
	defer ldb.Close()
	repo := repository.NewLevelRepository(ldb)

	store := graph.NewStore(clock, repo, graph.Options{
		Staleness:  cfg.Query.SnapshotStaleness,
		MaxCliques: cfg.Query.MaxCliques,
	})
	if err := store.Load(); err != nil {
		return err
	}
	stakers := staking.NewRegistry(clock, repo)
	if err := stakers.Load(); err != nil {
		return err
	}
	pool := mempool.NewPool(cfg.Mempool.MaxOperations)
	monitor := peers.NewMonitor(cfg.Network.Peers, cfg.Network.ProbeInterval, cfg.Network.DialTimeout)

	service := api.NewService(
		query.NewEngine(store, pool, stakers, monitor),
		submission.NewGateway(pool),
	)
	h := handlers.NewHandler(rpc.NewDispatcher(service), store, pool, stakers)

	r := mux.NewRouter()
	routers.RegisterRoutes(r, h, metrics.NewRegistry(), cfg.Ingest.Enabled)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if len(cfg.Network.Peers) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.Run(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Logger.Info("Server running",
		zap.String("addr", srv.Addr),
		zap.Bool("ingest", cfg.Ingest.Enabled),
		zap.Strings("methods", h.RPC.Methods()))

	select {
	case err := <-serveErr:
		stop()
		wg.Wait()
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Logger.Info("Shutdown signal received, exiting...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Warn("Graceful shutdown failed", zap.Error(err))
	}
	wg.Wait()
	return nil
}
