package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rgoulter/bhtlink/internal/bht"
	"github.com/rgoulter/bhtlink/internal/config"
	"github.com/rgoulter/bhtlink/internal/link"
	"github.com/rgoulter/bhtlink/internal/recorder"
	"github.com/rgoulter/bhtlink/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "/etc/bhtlink/config.yaml", "Path to config file")
	device := flag.String("device", "", "Override the bound RFCOMM tty device (e.g. /dev/rfcomm0)")
	logLevel := flag.String("log-level", "", "Override log level (debug, info, warn, error)")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)
	if *device != "" {
		cfg.Link.Device = *device
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := telemetry.Initialize(cfg.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "bhtlink: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer telemetry.Sync()
	log := telemetry.Logger()
	log.Info("bhtlink starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	address, err := resolveAddress(ctx, cfg.Link.Address, log)
	if err != nil {
		log.Fatal("device discovery failed", zap.Error(err))
	}

	engineCfg := link.Config{
		Address:          address,
		Port:             cfg.Link.Port,
		LifesignInterval: cfg.Link.LifesignDuration(),
		Reconnect:        cfg.Link.Reconnect,
	}
	dial := func(string, int) (link.Transport, error) {
		return link.OpenRFCOMM(link.RFCOMMConfig{Device: cfg.Link.Device})
	}

	engine := link.NewEngine(engineCfg, dial, log, nil)
	facade := bht.New(engine, log, cfg.Facade.TimeoutDuration())

	rec := recorder.New(recorder.Config{
		Enabled:    cfg.Recorder.Enabled,
		Path:       cfg.Recorder.Path,
		MaxRows:    cfg.Recorder.MaxRows,
		IntervalMs: cfg.Recorder.IntervalMs,
	}, log)
	defer rec.Close()

	if err := facade.ToggleGeneral(ctx, rec.Handler("general")); err != nil {
		log.Warn("failed to enable general data stream", zap.Error(err))
	}
	if err := facade.ToggleSummary(ctx, rec.Handler("summary"), 1); err != nil {
		log.Warn("failed to enable summary data stream", zap.Error(err))
	}
	facade.ToggleEvents(rec.Handler("event"))

	go func() {
		infos, err := facade.Infos(ctx)
		if err != nil {
			log.Warn("failed to retrieve device info", zap.Error(err))
			return
		}
		log.Info("device info", zap.Any("infos", infos))
	}()

	go engine.Run(ctx)

	<-ctx.Done()
	log.Info("shutting down link engine")
	engine.Stop()
	log.Info("shutdown complete")
}

// resolveAddress returns the configured address unchanged, or performs
// device discovery (with an outer exponential backoff distinct from the
// link engine's own fixed 1s reconnect backoff) when none was configured.
func resolveAddress(ctx context.Context, configured string, log *zap.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	discoverer := link.NewDiscoverer(link.DefaultDiscoveryConfig(), log)
	delay := time.Second
	const maxDelay = 60 * time.Second
	const maxAttempts = 10

	for attempt := 1; ; attempt++ {
		dev, err := discoverer.Find(ctx)
		if err == nil {
			return dev.Address, nil
		}
		if attempt >= maxAttempts {
			return "", fmt.Errorf("bhtlink: giving up discovery after %d attempts: %w", attempt, err)
		}
		log.Warn("discovery attempt failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
