package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"transcode-patrol/internal/config"
	"transcode-patrol/internal/mediaserver"
	"transcode-patrol/internal/patrol"
	"transcode-patrol/internal/sysinfo"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config file")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "transcode-patrol").
		Logger()

	// 1. Load and validate configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	pol, err := cfg.Policy()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid policy configuration")
	}

	// 2. Nothing to patrol means nothing to do
	servers := cfg.EnabledServers()
	if len(servers) == 0 {
		logger.Fatal().Msg("no enabled servers configured, exiting")
	}

	// 3. Log where we are running, so deployments are distinguishable
	hostCtx, cancelHost := context.WithTimeout(context.Background(), 3*time.Second)
	if host, err := sysinfo.Collect(hostCtx); err == nil {
		logger.Info().
			Str("hostname", host.Hostname).
			Str("os", host.OS).
			Str("cpu", host.CPUModel).
			Int("cores", host.LogicalCores).
			Float64("memory_gb", host.TotalMemoryGB).
			Msg("host info")
	} else {
		logger.Debug().Err(err).Msg("could not read host info")
	}
	cancelHost()

	// 4. One client + patrol per enabled server
	patrols := make([]*patrol.ServerPatrol, 0, len(servers))
	for _, server := range servers {
		client := mediaserver.NewClient(server, cfg.RequestTimeout())
		patrols = append(patrols, patrol.NewServerPatrol(server, client, cfg.RequestTimeout(), logger))
	}

	// 5. Run until interrupted; the cycle in flight finishes first
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Int("servers", len(patrols)).
		Str("resolution_policy", cfg.ResolutionPolicy).
		Bool("kill_streams", cfg.KillStreams).
		Bool("check_audio", cfg.CheckAudio).
		Dur("interval", cfg.CheckInterval()).
		Msg("starting transcode patrol")

	scheduler := patrol.NewScheduler(patrol.NewPatrol(patrols, logger), pol, cfg.CheckInterval(), logger)
	scheduler.Run(ctx)

	logger.Info().Msg("shutdown complete")
}
