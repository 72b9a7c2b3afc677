// Command mediasession serves a browser page that receives a synthetic VP8
// stream over WebRTC. Each POST /make_session answers one offer and starts
// an independent session.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pion/logging"
	"github.com/pion/mediasession"
	"github.com/pion/mediasession/pkg/codec/vpx"
	"github.com/pion/mediasession/pkg/driver/videotest"
	"github.com/pion/mediasession/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	loggerFactory := logging.NewDefaultLoggerFactory()
	if os.Getenv("DEBUG") != "" {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	}
	log := loggerFactory.NewLogger("main")

	if err := run(loggerFactory, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(loggerFactory logging.LoggerFactory, log logging.LeveledLogger) error {
	opts, err := optionsFromEnv()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := metrics.New()
	if err := observer.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts = append(opts,
		mediasession.WithCompressor(vpx.NewVP8),
		mediasession.WithLoggerFactory(loggerFactory),
		mediasession.WithObserver(mediasession.NewLoggingObserver(loggerFactory.NewLogger("session"))),
		mediasession.WithObserver(observer),
	)
	factory, err := mediasession.NewFactory(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := envOr("HTTP_ADDR", "0.0.0.0:8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(factory.Accept, registry, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func optionsFromEnv() ([]mediasession.Option, error) {
	var opts []mediasession.Option

	width, err := envInt("FRAME_WIDTH", mediasession.DefaultWidth)
	if err != nil {
		return nil, err
	}
	height, err := envInt("FRAME_HEIGHT", mediasession.DefaultHeight)
	if err != nil {
		return nil, err
	}
	opts = append(opts, mediasession.WithFrameSize(width, height))

	bitRate, err := envInt("BITRATE", mediasession.DefaultBitRate)
	if err != nil {
		return nil, err
	}
	opts = append(opts, mediasession.WithBitRate(bitRate))

	if v := os.Getenv("HOST_IP"); v != "" {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("HOST_IP: %w", err)
		}
		opts = append(opts, mediasession.WithHostAddress(addr))
	}

	switch source := envOr("SOURCE", "solid"); source {
	case "solid":
	case "bars":
		opts = append(opts, mediasession.WithFrameSource(func(w, h int) (mediasession.FrameSource, error) {
			return videotest.NewColorBars(w, h), nil
		}))
	default:
		return nil, fmt.Errorf("SOURCE: unknown frame source %q", source)
	}
	return opts, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
