package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cine-match/display"
	"cine-match/logging"
	"cine-match/metrics"
	"cine-match/preferences"
	"cine-match/recommender"
	"cine-match/storage"
)

// Outcomes that mean "nothing to do yet". The poll loop retries on them.
var (
	ErrNoAnswers         = errors.New("no answers available")
	ErrNoRecommendations = errors.New("no recommendations found")
	ErrAlreadyServed     = errors.New("answers already served")
)

// AnswerAPI is the preference API as seen by the job.
type AnswerAPI interface {
	GetAnswers(ctx context.Context) ([]preferences.Answer, error)
	PostRecommendations(ctx context.Context, records []any) (any, error)
}

type RunStore interface {
	SaveRun(run *storage.Run) error
	HasFingerprint(fingerprint string) (bool, error)
}

type RunNotifier interface {
	NotifyRun(run *storage.Run) error
}

// RecommendJobConfig wires a RecommendJob. Store and Notifier are optional.
type RecommendJobConfig struct {
	API      AnswerAPI
	Ranker   recommender.Ranker
	Store    RunStore
	Notifier RunNotifier
	// Output receives the console table, os.Stdout when nil.
	Output io.Writer
	// SkipServed rejects answer sets whose fingerprint is already stored.
	SkipServed bool
}

// RecommendJob fetches answers, ranks titles and posts the result back.
type RecommendJob struct {
	api        AnswerAPI
	ranker     recommender.Ranker
	store      RunStore
	notifier   RunNotifier
	out        io.Writer
	skipServed bool
}

func NewRecommendJob(cfg RecommendJobConfig) *RecommendJob {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &RecommendJob{
		api:        cfg.API,
		ranker:     cfg.Ranker,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		out:        out,
		skipServed: cfg.SkipServed,
	}
}

func (j *RecommendJob) Name() string {
	return "recommend_" + j.ranker.Strategy()
}

// Run serves one answer set. It returns nil only after the recommendations
// were posted.
func (j *RecommendJob) Run(ctx context.Context) error {
	answers, err := j.api.GetAnswers(ctx)
	if err != nil {
		metrics.PollAttempts.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch answers: %w", err)
	}
	if len(answers) == 0 {
		metrics.PollAttempts.WithLabelValues("no_answers").Inc()
		return ErrNoAnswers
	}

	fingerprint := preferences.Fingerprint(answers)
	if j.skipServed && j.store != nil {
		served, err := j.store.HasFingerprint(fingerprint)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to look up served answers")
		} else if served {
			metrics.PollAttempts.WithLabelValues("already_served").Inc()
			return ErrAlreadyServed
		}
	}

	prefs := preferences.Transform(answers)
	logging.Info().
		Int("answers", len(answers)).
		Str("type", prefs.Type).
		Str("genres", prefs.Genres).
		Str("country", prefs.ProductionCountries).
		Int("runtime", prefs.Runtime).
		Msg("Transformed preferences")

	strategy := j.ranker.Strategy()
	start := time.Now()
	batch, err := j.ranker.Recommend(ctx, prefs)
	metrics.ObserveRank(strategy, start)
	if err != nil {
		metrics.PollAttempts.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to rank titles: %w", err)
	}
	if batch.Empty() {
		metrics.PollAttempts.WithLabelValues("no_recommendations").Inc()
		return ErrNoRecommendations
	}

	display.PrintBatch(j.out, batch, prefs.Type)

	reply, err := j.api.PostRecommendations(ctx, batch.Records())
	if err != nil {
		metrics.PollAttempts.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to post recommendations: %w", err)
	}
	metrics.PollAttempts.WithLabelValues("served").Inc()
	metrics.RecommendationsServed.WithLabelValues(strategy).Add(float64(len(batch.Items)))
	logging.Info().Int("items", len(batch.Items)).Interface("response", reply).Msg("Recommendations sent")

	run := newRun(batch, prefs, fingerprint)
	if j.store != nil {
		if err := j.store.SaveRun(run); err != nil {
			logging.Error().Err(err).Msg("Failed to persist run")
		}
	}
	if j.notifier != nil {
		if err := j.notifier.NotifyRun(run); err != nil {
			logging.Warn().Err(err).Msg("Failed to send run notification")
		}
	}
	return nil
}

func newRun(batch *recommender.Batch, prefs preferences.Preferences, fingerprint string) *storage.Run {
	run := &storage.Run{
		Strategy:    batch.Strategy,
		Preferences: prefs,
		Fingerprint: fingerprint,
		Items:       make([]storage.RunItem, len(batch.Items)),
	}
	for i, it := range batch.Items {
		run.Items[i] = storage.RunItem{
			Rank:                it.Rank,
			Title:               it.Title,
			Type:                it.Type,
			Runtime:             it.Runtime,
			Genres:              it.Genres,
			ProductionCountries: it.ProductionCountries,
			IMDBScore:           it.IMDBScore,
			AgeCertification:    it.AgeCertification,
			Score:               it.Score,
		}
	}
	return run
}
