package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerlink/econetd/internal/econet/device"
	"github.com/boilerlink/econetd/internal/logging"
	"github.com/boilerlink/econetd/internal/observability"
	"github.com/boilerlink/econetd/internal/poll"
	"github.com/boilerlink/econetd/internal/regmap"
	"github.com/boilerlink/econetd/internal/server"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to econetd config file")
	flag.Parse()

	logging.ConfigureRuntime()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "econetd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	regs, err := regmap.Load(cfg.RegisterMap)
	if err != nil {
		return err
	}
	log.Info().Str("path", cfg.RegisterMap).Int("registers", regs.Len()).
		Msg("register map loaded")

	dev := device.New(device.Config{
		Addr:     cfg.DeviceAddr,
		Username: cfg.Username,
		Password: cfg.Password,
		Dest:     cfg.DeviceDest,
		Src:      cfg.DeviceSrc,
		Timeout:  cfg.TxTimeout,
	}, regs, observability.Component("device"))

	coord := poll.New(poll.Config{TTL: cfg.CacheTTL}, dev, regs, observability.Component("poll"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.ListenAddr, coord, regs, cfg.CORSOrigins)
	srv.RegisterRoutes()
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: srv.HTTPRouter()}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http listening")
		serveErr <- httpSrv.ListenAndServe()
	}()

	go pollLoop(ctx, coord, cfg.PollInterval)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// pollLoop runs one cycle immediately, then on every tick until the
// context is cancelled.
func pollLoop(ctx context.Context, coord *poll.Coordinator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap := coord.PollCycle(ctx)
		log.Debug().Int("registers", len(snap)).Msg("poll cycle complete")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
