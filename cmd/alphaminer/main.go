package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"alphaminer/internal/ai"
	"alphaminer/internal/brain"
	"alphaminer/internal/checkpoint"
	"alphaminer/internal/config"
	"alphaminer/internal/logging"
	"alphaminer/internal/miner"
	"alphaminer/internal/monitor"
	"alphaminer/internal/pipeline"
	"alphaminer/internal/server"
	"alphaminer/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to the configuration file")
		envPath    = flag.String("env", "", "path to a .env file with credentials")
		resume     = flag.Bool("resume", false, "resume from the last checkpoint")
	)
	flag.Parse()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			log.Fatalf("Failed to load env file %s: %v", *envPath, err)
		}
	} else {
		// Best effort: a missing default .env is fine
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	if err := run(cfg, *resume); err != nil {
		logging.WithError(err).Error("Mining session failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, resume bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brainClient, err := brain.NewClient(&brain.Config{
		BaseURL:        cfg.Platform.BaseURL,
		Email:          cfg.Platform.Email,
		Password:       cfg.Platform.Password,
		Region:         cfg.Platform.Region,
		Universe:       cfg.Platform.Universe,
		Delay:          cfg.Platform.Delay,
		InstrumentType: cfg.Platform.InstrumentType,
		Timeout:        cfg.Platform.Timeout,
		RequestsPerSec: cfg.Platform.RateLimit.RequestsPerSec,
		Burst:          cfg.Platform.RateLimit.Burst,
		Decay:          cfg.Simulation.Decay,
		Neutralization: cfg.Simulation.Neutralization,
		Truncation:     cfg.Simulation.Truncation,
		Pasteurization: cfg.Simulation.Pasteurization,
		UnitHandling:   cfg.Simulation.UnitHandling,
		NanHandling:    cfg.Simulation.NanHandling,
		Language:       cfg.Simulation.Language,
	})
	if err != nil {
		return err
	}

	if err := brainClient.Authenticate(ctx); err != nil {
		return err
	}

	aiClient, err := ai.NewClient(&ai.Config{
		APIURL:      cfg.AI.APIURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		return err
	}

	store, err := checkpoint.NewStore(cfg.Checkpoint)
	if err != nil {
		return err
	}

	sink, cleanup, err := buildSink(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(registry)

	m, err := miner.NewMiner(
		miner.Config{
			MaxIterations: cfg.Mining.MaxIterations,
			MinSharpe:     cfg.Mining.MinSharpe,
			MaxFactors:    cfg.Mining.MaxFactors,
			SaveInterval:  cfg.Mining.SaveInterval,
		},
		pipeline.NewCatalogSelector(brainClient, aiClient),
		pipeline.NewFactorGenerator(brainClient, aiClient),
		pipeline.NewSimulationEvaluator(brainClient),
		miner.WithSink(sink),
		miner.WithCheckpointStore(store),
		miner.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	if resume {
		session, err := store.Load(ctx)
		if err != nil {
			return err
		}
		if session != nil {
			m.Restore(session)
		} else {
			logging.Info("No checkpoint found, starting a fresh session")
		}
	}

	if cfg.Mining.CheckpointSchedule != "" {
		scheduler, err := miner.NewScheduler(m, cfg.Mining.CheckpointSchedule)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if cfg.Server.Enabled {
		statusServer := server.NewServer(cfg.Server, cfg.App.Env, m, registry)
		go func() {
			if err := statusServer.Start(ctx); err != nil {
				logging.WithError(err).Error("Status server stopped")
			}
		}()
	}

	accepted, err := m.Mine(ctx)
	logging.WithFields(logrus.Fields{
		"accepted": len(accepted),
	}).Info("Mining run finished")
	return err
}

// buildSink assembles the factor persistence chain: always a JSON export,
// plus the database repository when enabled
func buildSink(cfg *config.Config) (miner.FactorSink, func(), error) {
	exporter, err := storage.NewExporter(cfg.Storage.ExportDir)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Storage.Postgres.Enabled {
		return exporter, func() {}, nil
	}

	repo, err := storage.NewRepository(cfg.Storage.Postgres)
	if err != nil {
		logging.WithError(err).Warn("Factor repository unavailable, exporting to file only")
		return exporter, func() {}, nil
	}

	sink := storage.NewCompositeSink(exporter, repo)
	return sink, func() { repo.Close() }, nil
}
