package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DomeLiquid/federation/chain"
	"github.com/DomeLiquid/federation/config"
	"github.com/DomeLiquid/federation/content"
	"github.com/DomeLiquid/federation/contract"
	"github.com/DomeLiquid/federation/federation"
	"github.com/DomeLiquid/federation/handler"
	"github.com/DomeLiquid/federation/inventory"
	"github.com/DomeLiquid/federation/minting"
	"github.com/DomeLiquid/federation/store"
	"github.com/DomeLiquid/federation/transaction"
	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	// pending polls get this long to settle before the store closes
	drainTimeout = 30 * time.Second
)

func contextWithConfig(cmd *cobra.Command, cfg *config.Config) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commonRun()
			if err := serve(configFromCommand(cmd), logger); err != nil {
				logger.Error().Err(err).Msg("serve")
				return err
			}
			return nil
		},
	}
}

func serve(cfg *config.Config, logger *zerolog.Logger) error {
	clk := clock.New()
	settings := config.NewProvider(configFile, cfg)

	st, err := store.New(cfg.DatabasePath, store.WithClock(clk), store.WithLog(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	catalog, err := content.Open(cfg.ContentCatalogPath, logger)
	if err != nil {
		return err
	}

	chainId, err := cfg.ParseChain()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	chainClient := chain.NewClient(cfg.ChainApiUrl,
		chain.WithChain(chainId),
		chain.WithCredentials(cfg.ChainAuthUrl, cfg.ChainClientId, cfg.ChainClientSecret),
		chain.WithClock(clk),
		chain.WithLog(logger),
		chain.WithRegisterer(registry),
	)
	resolver := contract.NewResolver(chainClient, settings, clk, logger)
	builder := inventory.NewBuilder(chainClient, resolver, st, logger)
	sink := inventory.NewSink(cfg.InventoryUrl, cfg.InventoryToken, logger)
	manager := transaction.NewManager(st, chainClient, builder, sink, settings, clk, logger, registry)
	minter := minting.NewService(resolver, st, chainClient, catalog, manager, clk, logger)
	svc := federation.NewService(manager, minter, builder, resolver, chainClient, settings, logger)

	settings.Subscribe(func(*config.Config) {
		if err := catalog.Reload(); err != nil {
			logger.Error().Err(err).Msg("reload content catalog")
		}
	})

	if !globalFlags.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           handler.New(svc, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Str("chain", string(chainId)).Msg("listening")
		serveErr <- server.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	for {
		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "listen")
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				if err := settings.Reload(); err != nil {
					logger.Error().Err(err).Msg("reload config")
					continue
				}
				logger.Info().Msg("config reloaded")
				continue
			}

			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := server.Shutdown(ctx)
			cancel()

			ctx, cancel = context.WithTimeout(context.Background(), drainTimeout)
			if drainErr := manager.Drain(ctx); drainErr != nil {
				logger.Warn().Err(drainErr).Msg("polls still running, their records stay pending")
			}
			cancel()
			return err
		}
	}
}

func purgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired transaction records",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := commonRun()
			cfg := configFromCommand(cmd)
			st, err := store.New(cfg.DatabasePath, store.WithLog(logger), store.WithPurgeInterval(0))
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().Int64("purged", n).Msg("expired transactions purged")
			return nil
		},
	}
}
