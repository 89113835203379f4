// BIL Node - proof-of-work chain ledger and mining workers
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bil-network/bil-node/internal/api"
	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/ledger"
	"github.com/bil-network/bil-node/internal/newrelic"
	"github.com/bil-network/bil-node/internal/notify"
	"github.com/bil-network/bil-node/internal/profiling"
	"github.com/bil-network/bil-node/internal/spawner"
	"github.com/bil-network/bil-node/internal/storage"
	"github.com/bil-network/bil-node/internal/upstream"
	"github.com/bil-network/bil-node/internal/util"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("BIL Node v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := util.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	util.Infof("BIL Node v%s starting as %s", version, cfg.Node.ID)

	// Connect to Redis
	redis, err := storage.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		util.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Upstream token ledger client
	token := upstream.NewClient(cfg.Upstream.URL, cfg.Upstream.Timeout)

	// Webhook notifier
	notifier := notify.NewNotifier(&cfg.Notify, cfg.Node.Name)

	// New Relic APM if enabled
	nrAgent := newrelic.NewAgent(&cfg.NewRelic)
	if cfg.NewRelic.Enabled {
		if err := nrAgent.Start(); err != nil {
			util.Errorf("Failed to start New Relic agent: %v", err)
		}
	}

	// pprof profiling server if enabled
	var pprofServer *profiling.Server
	if cfg.Profiling.Enabled {
		pprofServer = profiling.NewServer(&cfg.Profiling)
		if err := pprofServer.Start(); err != nil {
			util.Errorf("Failed to start pprof server: %v", err)
		}
	}

	// Ledger plus its worker factory
	chainLedger := ledger.New(cfg, redis, token, notifier, nrAgent)
	workerFactory := spawner.NewFactory(cfg, chainLedger)
	chainLedger.SetWorkerFactory(workerFactory)

	// API server
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, chainLedger)
		chainLedger.SetEventFunc(apiServer.PublishEvent)
	}

	if err := chainLedger.Start(); err != nil {
		util.Fatalf("Failed to start ledger: %v", err)
	}

	if apiServer != nil {
		if err := apiServer.Start(); err != nil {
			util.Fatalf("Failed to start API server: %v", err)
		}
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	util.Info("Node started successfully. Press Ctrl+C to stop.")

	<-sigChan
	util.Info("Shutting down...")

	// Graceful shutdown
	if apiServer != nil {
		apiServer.Stop()
	}
	workerFactory.StopAll()
	chainLedger.Stop()
	if pprofServer != nil {
		pprofServer.Stop()
	}
	nrAgent.Stop()

	util.Info("Node stopped")
}
