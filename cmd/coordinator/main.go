// Command coordinator runs the layer-2 aggregator: it accepts wallet
// websocket connections, runs the round-production loop, and appends
// finalised transfer blocks to a file-backed settlement store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/synnergy-labs/rollupnet/core"
	"github.com/synnergy-labs/rollupnet/pkg/config"
	"github.com/synnergy-labs/rollupnet/transport"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "coordinator",
		Short: "run the rollup coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.LoadCoordinatorConfig(configFile)
	if err != nil {
		return err
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	core.SetSettlementLogger(log)
	core.SetAggregatorLogger(log)
	transport.SetServerLogger(log)

	view, err := core.NewFileSettlementStore(cfg.SettlementPath)
	if err != nil {
		return fmt.Errorf("open settlement store: %w", err)
	}

	srv := transport.NewServerState(view, cfg.CollectInterval, cfg.SignWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWebSocket)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("coordinator listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	cancel()
	return httpServer.Shutdown(context.Background())
}
