package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/improvement"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/metrics"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/simd"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/telemetry"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/utils"
)

func (a *app) buildServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the run service (HTTP and gRPC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	cmd.Flags().String("grpc-addr", ":50051", "gRPC listen address")
	_ = a.v.BindPFlag("http_addr", cmd.Flags().Lookup("http-addr"))
	_ = a.v.BindPFlag("grpc_addr", cmd.Flags().Lookup("grpc-addr"))

	return cmd
}

// buildService wires the run store, executor and servers from settings.
// The returned cleanup releases redis and MQTT connections.
func (a *app) buildService(ctx context.Context) (*simd.HTTPServer, *simd.SimulationGRPCServer, *simd.RunExecutor, func(), error) {
	s := a.settings

	store, closeStore, err := a.stepCache(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cleanup := []func(){closeStore}
	release := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	exporter := metrics.NewExporter()
	notifier := simd.NewNotifierWithRetry(s.Callback.MaxRetries,
		utils.NewBackoff(time.Second, 30*time.Second, 2, true), s.Callback.Timeout)

	opts := []simd.ExecutorOption{
		simd.WithExporter(exporter),
		simd.WithNotifier(notifier),
		simd.WithExecutorLogger(logger.Default),
	}
	if store != nil {
		opts = append(opts, simd.WithStepCache(store))
	}
	if s.MQTT.Broker != "" {
		pub, err := telemetry.Dial(a.mqttOptions(), logger.Default)
		if err != nil {
			release()
			return nil, nil, nil, nil, err
		}
		cleanup = append(cleanup, pub.Close)
		opts = append(opts, simd.WithRunObserver(pub))
		logger.Info("publishing telemetry", "broker", s.MQTT.Broker, "topic_prefix", s.MQTT.TopicPrefix)
	}

	runs := simd.NewRunStore()
	executor := simd.NewRunExecutor(runs, opts...)
	httpAPI := simd.NewHTTPServer(runs, executor, exporter).WithOptimizer(improvement.NewRunner(logger.Default))
	return httpAPI, simd.NewSimulationGRPCServer(runs, executor), executor, release, nil
}

func (a *app) serve(ctx context.Context) error {
	s := a.settings

	httpAPI, grpcAPI, executor, release, err := a.buildService(ctx)
	if err != nil {
		return err
	}
	defer release()

	// TODO: Configure gRPC server security (e.g., TLS, authentication, rate limiting)
	// before using this service in a production environment.
	grpcServer := grpc.NewServer()
	grpcAPI.Register(grpcServer)

	grpcLis, err := net.Listen("tcp", s.GRPCAddr)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              s.HTTPAddr,
		Handler:           httpAPI.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		logger.Info("gRPC server listening", "addr", s.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", s.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Error("run shutdown error", "error", err)
	}
	return nil
}
