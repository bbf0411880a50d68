// Package retry runs operations again after transient failures.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/rs/zerolog/log"
)

// Policy configures how often and how fast an operation is retried.
type Policy struct {
	MaxAttempts int           // Total number of attempts, at least 1
	Backoff     time.Duration // Delay before the second attempt
	Multiplier  float64       // Factor applied to the delay after each attempt
}

// DefaultPolicy makes three attempts, waiting one and then two seconds.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Backoff:     time.Second,
	Multiplier:  2,
}

// IsTransient is the default retryable predicate. Concurrent modifications and
// general database errors are transient, everything else is final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, models.ErrConcurrentModification) || errors.Is(err, models.ErrGeneral)
}

// Do calls fn until it succeeds, returns an error that is not retryable, the
// attempts are used up or ctx is done. It returns the last error of fn.
func Do(ctx context.Context, policy Policy, retryable func(error) bool, fn func(context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	if retryable == nil {
		retryable = IsTransient
	}

	delay := policy.Backoff
	var err error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !retryable(err) || attempt == policy.MaxAttempts {
			return err
		}

		log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after transient error")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}

		if policy.Multiplier > 1 {
			delay = time.Duration(float64(delay) * policy.Multiplier)
		}
	}

	return err
}
