package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"

	"github.com/rickstaa/get-stargazers-info/pkg/logger"
)

// ErrRateLimitExhausted wraps the last rate limit error once retries run out
var ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

// GraphQLRateLimitError is returned when the GraphQL API answers with a
// RATE_LIMITED error instead of data.
type GraphQLRateLimitError struct {
	Message string
	Reset   time.Time
}

func (e *GraphQLRateLimitError) Error() string {
	return fmt.Sprintf("graphql rate limit exceeded: %s", e.Message)
}

// Throttle retries GitHub calls that hit the primary or secondary rate limit
type Throttle struct {
	MaxRetries int
	// SecondaryWait is used when a secondary limit response carries no Retry-After
	SecondaryWait time.Duration
	// MaxPrimaryWait caps the wait for a primary limit reset
	MaxPrimaryWait time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	log   *logrus.Entry
}

// NewThrottle creates a Throttle with the given bounded retry policy
func NewThrottle(maxRetries int, secondaryWait, maxPrimaryWait time.Duration) *Throttle {
	return &Throttle{
		MaxRetries:     maxRetries,
		SecondaryWait:  secondaryWait,
		MaxPrimaryWait: maxPrimaryWait,
		sleep:          sleepContext,
		now:            time.Now,
		log:            logger.WithField("component", "throttle"),
	}
}

// Do runs fn, waiting and retrying on rate limit errors up to MaxRetries times
func (t *Throttle) Do(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		wait, kind, limited := t.classify(err)
		if !limited {
			return err
		}

		entry := t.log.WithFields(logrus.Fields{"request": op, "limit": kind, "attempt": attempt + 1})
		if attempt >= t.MaxRetries {
			entry.Warn("Rate limit retries exhausted")
			return fmt.Errorf("%s: %w: %w", op, ErrRateLimitExhausted, err)
		}

		entry.Warnf("Request quota exhausted, retrying after %s", wait)
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// classify reports how long to wait for err and which limit it belongs to
func (t *Throttle) classify(err error) (time.Duration, string, bool) {
	var primary *github.RateLimitError
	if errors.As(err, &primary) {
		return t.untilReset(primary.Rate.Reset.Time), "primary", true
	}

	var graphQL *GraphQLRateLimitError
	if errors.As(err, &graphQL) {
		return t.untilReset(graphQL.Reset), "primary", true
	}

	var secondary *github.AbuseRateLimitError
	if errors.As(err, &secondary) {
		if secondary.RetryAfter != nil && *secondary.RetryAfter > 0 {
			return *secondary.RetryAfter, "secondary", true
		}
		return t.SecondaryWait, "secondary", true
	}

	return 0, "", false
}

func (t *Throttle) untilReset(reset time.Time) time.Duration {
	// One extra second so the window has really rolled over
	wait := reset.Sub(t.now()) + time.Second
	if wait < time.Second {
		wait = time.Second
	}
	if t.MaxPrimaryWait > 0 && wait > t.MaxPrimaryWait {
		wait = t.MaxPrimaryWait
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
