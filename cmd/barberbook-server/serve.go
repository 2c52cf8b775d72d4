package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"barberbook/internal/auth"
	"barberbook/internal/cache"
	"barberbook/internal/config"
	"barberbook/internal/notify"
	"barberbook/internal/service/booking"
	"barberbook/internal/telemetry"
	grpcTransport "barberbook/internal/transport/grpc"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC booking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending database migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger, migrate bool) error {
	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("shop_timezone", cfg.ShopLocation.String()),
		slog.String("log_level", cfg.LogLevel),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracing setup failed", slog.Any("err", err))
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", slog.Any("err", err))
		}
	}()
	if cfg.OTelEnabled {
		log.Info("tracing enabled", slog.String("otlp_endpoint", cfg.OTelEndpoint))
	}

	repo, closeStore, err := openStore(ctx, cfg, log, migrate)
	if err != nil {
		return err
	}
	defer closeStore()

	svcOpts := []booking.Option{
		booking.WithLocation(cfg.ShopLocation),
		booking.WithLogger(log),
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err))
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		svcOpts = append(svcOpts, booking.WithConfigCache(cache.NewShopConfigCache(rdb, cfg.RedisConfigTTL)))
		log.Info("shop config cache enabled", slog.Duration("ttl", cfg.RedisConfigTTL))
	}

	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.FCMCredentialsFile != "" {
		fcm, err := notify.NewFCMSender(ctx, cfg.FCMCredentialsFile)
		if err != nil {
			log.Error("fcm setup failed", slog.Any("err", err))
			return err
		}
		sender = fcm
		log.Info("push notifications enabled")
	} else {
		log.Warn("fcm credentials not set; notifications are only logged")
	}
	dispatcher := notify.NewDispatcher(sender, cfg.NotifyTimeout, log)
	svcOpts = append(svcOpts, booking.WithNotifier(dispatcher))

	authn, err := auth.New(cfg.OperatorPasswordHash, cfg.OperatorTokenSecret, cfg.OperatorTokenTTL)
	if err != nil {
		return err
	}
	if !authn.Enabled() {
		log.Warn("operator password not set; operator RPCs will be refused")
	}

	svc := booking.NewService(repo, svcOpts...)
	grpcServer, healthServer := grpcTransport.NewServer(
		grpcTransport.NewBookingServer(svc, authn, log),
		grpcTransport.ServerOptions{
			RequestTimeout: cfg.GRPCRequestTimeout,
			Verifier:       authn,
			Limiter:        grpcTransport.NewPeerLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
			Log:            log,
		},
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()

	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc server stopped with error", slog.Any("err", err))
			return err
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		log.Warn("pending notifications dropped", slog.Any("err", err))
	}
	return nil
}

func shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
