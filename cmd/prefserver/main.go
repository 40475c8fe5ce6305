// Command prefserver runs the preference API: the questionnaire posts raw
// answers here and the recommender polls for their keywords.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cine-match/config"
	"cine-match/llm"
	"cine-match/logging"
	"cine-match/prefserver"
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

	configs := llm.ConfigsFrom(cfg.LLM)
	if len(configs) == 0 {
		logging.Warn().Msg("No LLM API key configured, keywords will be extracted locally")
	}
	extractor := llm.NewExtractor(llm.NewManager(), configs)
	srv := prefserver.New(extractor).HTTPServer(cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Int("models", len(configs)).Msg("Preference API listening")
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Preference API failed")
		}
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
