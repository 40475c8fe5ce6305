package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"cine-match/apiclient"
	"cine-match/catalog"
	"cine-match/config"
	"cine-match/logging"
	"cine-match/metrics"
	"cine-match/notifier"
	"cine-match/recommender"
	"cine-match/scheduler"
	"cine-match/scraper"
	"cine-match/storage"
)

func main() {
	testEmail := flag.Bool("test-email", false, "Send a test email with the configured SMTP settings and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if *testEmail {
		if err := sendTestEmail(cfg.Email); err != nil {
			logging.Fatal().Err(err).Msg("Test email failed")
		}
		return
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Cine Match stopped")
	}
	logging.Info().Msg("Application exiting")
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("mode", cfg.Poll.RunMode).
		Str("strategy", cfg.Poll.Strategy).
		Str("api", cfg.API.BaseURL).
		Msg("Starting Cine Match")

	sqliteStorage := storage.NewSQLiteStorage(cfg.Storage.DataPath)
	if err := sqliteStorage.Initialize(); err != nil {
		return err
	}
	defer sqliteStorage.Close()

	ranker, err := newRanker(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics.Addr)
		defer shutdown(srv)
	}

	jobCfg := scheduler.RecommendJobConfig{
		API: apiclient.New(apiclient.Config{
			BaseURL:             cfg.API.BaseURL,
			ResponsesPath:       cfg.API.ResponsesPath,
			RecommendationsPath: cfg.API.RecommendationsPath,
			Timeout:             cfg.API.Timeout,
		}),
		Ranker: ranker,
		Store:  sqliteStorage,
	}
	if n := newNotifier(cfg.Email); n != nil {
		jobCfg.Notifier = n
	}

	switch cfg.Poll.RunMode {
	case config.RunModeScheduler:
		jobCfg.SkipServed = true
		job := scheduler.NewRecommendJob(jobCfg)

		sched := scheduler.NewScheduler()
		if err := sched.AddIntervalJob(cfg.Poll.Interval, job); err != nil {
			return err
		}
		sched.Start()
		logging.Info().Dur("interval", cfg.Poll.Interval).Msg("Scheduler started. Press Ctrl+C to exit")

		<-ctx.Done()
		logging.Info().Msg("Shutting down")
		sched.Stop()

	default:
		job := scheduler.NewRecommendJob(jobCfg)
		err := scheduler.PollUntilServed(ctx, job, cfg.Poll.Interval, cfg.Poll.MaxAttempts)
		if errors.Is(err, context.Canceled) {
			logging.Info().Msg("Interrupted before recommendations were served")
			return nil
		}
		if err != nil {
			return err
		}
	}

	displayDatabaseStats(sqliteStorage)
	return nil
}

func newRanker(cfg *config.Config) (recommender.Ranker, error) {
	if cfg.Poll.Strategy == config.StrategyModel {
		r, err := recommender.LoadModelRanker(cfg.Model.Path, cfg.Model.TopK)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("path", cfg.Model.Path).Msg("Loaded recommendation model")
		return r, nil
	}

	titles, err := catalog.Open(cfg.Catalog.Path, scraper.NewFetcher())
	if err != nil {
		return nil, err
	}
	r, err := recommender.NewContentRanker(titles, recommender.ContentOptions{
		NumResults:       cfg.Similarity.NumResults,
		RuntimeWindow:    cfg.Similarity.RuntimeWindow,
		SimilarityWeight: cfg.Similarity.SimilarityWeight,
		PopularityWeight: cfg.Similarity.PopularityWeight,
	})
	if err != nil {
		return nil, err
	}
	logging.Info().Int("titles", r.Size()).Str("catalog", cfg.Catalog.Path).Msg("Loaded catalog")
	return r, nil
}

// newNotifier returns nil when email is not configured.
func newNotifier(cfg config.EmailConfig) *notifier.EmailNotifier {
	if !cfg.Enabled() {
		logging.Debug().Msg("Email notifications disabled: missing configuration")
		return nil
	}
	n, err := notifier.NewEmailNotifier(toEmailConfig(cfg))
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to create email notifier")
		return nil
	}
	logging.Info().Str("recipient", cfg.RecipientEmail).Msg("Email notifications enabled")
	return n
}

func toEmailConfig(cfg config.EmailConfig) notifier.EmailConfig {
	return notifier.EmailConfig{
		SMTPHost:       cfg.SMTPHost,
		SMTPPort:       cfg.SMTPPort,
		SenderEmail:    cfg.SenderEmail,
		SenderPassword: cfg.SenderPassword,
		RecipientEmail: cfg.RecipientEmail,
	}
}

func sendTestEmail(cfg config.EmailConfig) error {
	logging.Info().
		Str("host", cfg.SMTPHost).
		Int("port", cfg.SMTPPort).
		Str("sender", cfg.SenderEmail).
		Str("password", notifier.MaskSecret(cfg.SenderPassword)).
		Str("recipient", cfg.RecipientEmail).
		Msg("Sending test email")
	if !cfg.Enabled() {
		return errors.New("EMAIL_SMTP_HOST and EMAIL_RECIPIENT must be set")
	}
	n, err := notifier.NewEmailNotifier(toEmailConfig(cfg))
	if err != nil {
		return err
	}
	return n.SendTest()
}

func startMetricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Metrics server shutdown")
	}
}

// displayDatabaseStats logs counts and the most recent runs.
func displayDatabaseStats(db storage.StorageInterface) {
	stats, err := db.GetStats()
	if err != nil {
		logging.Warn().Err(err).Msg("Error getting database stats")
		return
	}
	logging.Info().
		Int("runs", stats["total"]).
		Int("similarity", stats["similarity"]).
		Int("model", stats["model"]).
		Int("items", stats["items"]).
		Msg("Database statistics")

	runs, err := db.GetRecentRuns(5)
	if err != nil {
		logging.Warn().Err(err).Msg("Error getting recent runs")
		return
	}
	for _, r := range runs {
		logging.Info().
			Str("id", r.ID).
			Str("strategy", r.Strategy).
			Str("type", r.Preferences.Type).
			Str("genres", r.Preferences.Genres).
			Int("items", len(r.Items)).
			Time("served_at", r.CreatedAt).
			Msg("Recent run")
	}
}
