// Command train fits the embedding model on the catalog and writes the
// artifact the model strategy loads.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cine-match/catalog"
	"cine-match/config"
	"cine-match/logging"
	"cine-match/nn"
	"cine-match/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	var (
		catalogPath = flag.String("catalog", cfg.Catalog.Path, "Catalog CSV path or URL")
		outPath     = flag.String("out", cfg.Model.Path, "Where to write the trained model")
		epochs      = flag.Int("epochs", cfg.Model.Epochs, "Maximum training epochs")
	)
	flag.Parse()

	titles, err := catalog.Open(*catalogPath, scraper.NewFetcher())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trainCfg := nn.Config{
		EmbeddingDim:    cfg.Model.EmbeddingDim,
		Hidden1:         cfg.Model.Hidden1,
		Hidden2:         cfg.Model.Hidden2,
		Dropout:         cfg.Model.Dropout,
		Epochs:          *epochs,
		BatchSize:       cfg.Model.BatchSize,
		ValidationSplit: cfg.Model.ValidationSplit,
		Patience:        cfg.Model.Patience,
		LearningRate:    cfg.Model.LearningRate,
		Seed:            cfg.Model.Seed,
	}
	logging.Info().Int("titles", len(titles)).Int("epochs", trainCfg.Epochs).Msg("Training model")

	model, history, err := nn.Fit(ctx, titles, trainCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Training failed")
	}

	if n := len(history.Epochs); n > 0 {
		last := history.Epochs[n-1]
		logging.Info().
			Int("epochs", n).
			Bool("stopped_early", history.StoppedEarly).
			Float64("loss", last.Loss).
			Float64("accuracy", last.Accuracy).
			Msg("Training finished")
	}

	if err := model.Save(*outPath); err != nil {
		logging.Fatal().Err(err).Msg("Failed to save model")
	}
	logging.Info().Str("path", *outPath).Msg("Model saved")
}
