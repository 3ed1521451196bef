package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namikmesic/requrl/internal/config"
	"github.com/namikmesic/requrl/internal/jetstream"
	"github.com/namikmesic/requrl/internal/processor"
	"github.com/namikmesic/requrl/internal/proxy"
	"github.com/namikmesic/requrl/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the resolution API and upstream proxy",
		Long: `Run the resolution API and upstream proxy.

Configuration is read from the environment (PORT, LOG_LEVEL, DATABASE_URL,
NATS_STORE_DIR, UPSTREAM_URL, UPSTREAM_API_KEY, MAX_BATCH_SIZE and the
WRITER_* settings).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	setupLogger(cfg.LogLevel)

	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := storage.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	natsServer, err := jetstream.NewServer(cfg.NATSStoreDir)
	if err != nil {
		return fmt.Errorf("start embedded NATS: %w", err)
	}
	defer natsServer.Shutdown()

	nc, err := natsServer.Connect()
	if err != nil {
		return fmt.Errorf("connect to embedded NATS: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream context: %w", err)
	}
	if err := jetstream.EnsureStream(js); err != nil {
		return fmt.Errorf("create JetStream stream: %w", err)
	}

	writer := storage.NewBatchWriter(pool, storage.WriterConfig{
		BufferSize:    cfg.WriterBufferSize,
		BatchSize:     cfg.WriterBatchSize,
		FlushInterval: time.Duration(cfg.WriterFlushMs) * time.Millisecond,
	})
	defer writer.Shutdown()
	proc := processor.New(writer)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		proc.StartConsumer(consumerCtx, js)
	}()

	handler := proxy.NewHandler(cfg, storage.NewResolutions(pool), js)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("upstream", cfg.UpstreamURL).
			Msg("requrl started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	consumerCancel()
	<-consumerDone
	if err := nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("nats drain")
	}
	log.Info().Msg("shutdown complete")
	return nil
}
