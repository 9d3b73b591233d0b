package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cuemby/raftcore/examples/kvstore"
	"github.com/cuemby/raftcore/pkg/adminapi"
	"github.com/cuemby/raftcore/pkg/clock"
	"github.com/cuemby/raftcore/pkg/config"
	"github.com/cuemby/raftcore/pkg/log"
	"github.com/cuemby/raftcore/pkg/metrics"
	"github.com/cuemby/raftcore/pkg/raft"
	"github.com/cuemby/raftcore/pkg/storage/filestore"
	"github.com/cuemby/raftcore/pkg/transport/grpctransport"
	"github.com/cuemby/raftcore/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "raftd",
	Short:   "raftd runs a single node of a raftcore cluster",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("raftd version %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve --config CONFIG",
	Short: "Start this node and participate in consensus",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			return fmt.Errorf("--config is required")
		}
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")

		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON, Output: os.Stderr})
		metrics.SetVersion(Version)

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		backend, err := filestore.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}

		loaded, err := backend.Load()
		if err != nil {
			return fmt.Errorf("load storage state: %w", err)
		}
		if loaded.Snapshot == nil && len(loaded.Entries) == 0 {
			if len(cfg.Bootstrap) == 0 {
				return fmt.Errorf("data directory is empty and config has no bootstrap list")
			}
			if err := backend.Bootstrap(bootstrapConfiguration(cfg.Bootstrap)); err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
		}

		fsm, err := kvstore.Open(filepath.Join(cfg.DataDir, "kv.db"))
		if err != nil {
			return fmt.Errorf("open kvstore: %w", err)
		}
		defer fsm.Close()

		tr, err := grpctransport.New(cfg.BindAddress, grpctransport.WithLogger(log.Component("transport")))
		if err != nil {
			return fmt.Errorf("start transport: %w", err)
		}

		server := raft.NewServer(raft.Options{
			ID:        cfg.NodeID,
			Address:   cfg.BindAddress,
			Backend:   backend,
			Transport: tr,
			FSM:       fsm,
			Clock:     clock.NewSystemClock(),
			Engine:    cfg.Engine,
		})

		collector := metrics.NewCollector(server)
		collector.Start()
		metrics.RegisterComponent("raft", true, "started")
		metrics.RegisterComponent("storage", true, "ready")
		metrics.RegisterComponent("transport", true, "ready")

		metricsAddr := cfg.MetricsAddr
		if metricsAddr == "" {
			metricsAddr = "127.0.0.1:9090"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		mux.Handle("/v1/", adminapi.Handler(server))
		httpServer := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("metrics server error")
			}
		}()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Logger.Info().Msg("shutting down")
		case err := <-errCh:
			if err != nil {
				log.Logger.Error().Err(err).Msg("server exited")
			}
		}

		collector.Stop()
		_ = httpServer.Close()
		if err := server.Close(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to the node's YAML config file")
}

func bootstrapConfiguration(servers []config.BootstrapServer) wire.Configuration {
	cfg := wire.Configuration{Servers: make([]wire.Server, 0, len(servers))}
	for _, s := range servers {
		role := wire.Voter
		switch s.Role {
		case "standby":
			role = wire.Standby
		case "spare":
			role = wire.Spare
		}
		cfg.Servers = append(cfg.Servers, wire.Server{ID: s.ID, Address: s.Address, Role: role})
	}
	return cfg
}
