package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"cine-match/logging"
)

// DefaultPollInterval is the delay between attempts.
const DefaultPollInterval = 5 * time.Second

// PollUntilServed runs job until it succeeds, waiting interval after every
// failure. maxAttempts of 0 polls until ctx is done.
func PollUntilServed(ctx context.Context, job Job, interval time.Duration, maxAttempts uint64) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	backoff := retry.NewConstant(interval)
	if maxAttempts > 0 {
		backoff = retry.WithMaxRetries(maxAttempts-1, backoff)
	}

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := job.Run(ctx)
		if err == nil {
			logging.Info().Str("job", job.Name()).Int("attempt", attempt).Msg("Job served")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case errors.Is(err, ErrNoAnswers):
			logging.Info().Int("attempt", attempt).Msg("No data received from API, waiting for the next attempt")
		case errors.Is(err, ErrNoRecommendations):
			logging.Info().Int("attempt", attempt).Msg("No recommendations found for the current preferences")
		case errors.Is(err, ErrAlreadyServed):
			logging.Debug().Int("attempt", attempt).Msg("Answers already served")
		default:
			logging.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", interval).Msg("Poll attempt failed")
		}
		return retry.RetryableError(err)
	})
}
