// Package startup contains helpers for boot-time probes against external
// services that may not be reachable yet.
package startup

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// RetryConfig configures the exponential backoff retry behavior.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultRetryConfig returns sensible defaults for network retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 5 * time.Second,
		MaxDelay:     5 * time.Minute,
		MaxAttempts:  5,
	}
}

// connectionFailures are substrings of wrapped syscall errors that the
// typed checks below miss.
var connectionFailures = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"no route to host",
	"host is down",
	"network is unreachable",
	"i/o timeout",
	"temporary failure in name resolution",
	"dial tcp",
	"dial udp",
}

// IsNetworkError reports whether an error looks like network
// unavailability rather than a real application failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range connectionFailures {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// WithRetry runs fn under exponential backoff, retrying network errors
// only. Any other error fails immediately.
func WithRetry(ctx context.Context, name string, cfg RetryConfig, fn func() error, logger *zerolog.Logger) error {
	backoff := retry.NewExponential(cfg.InitialDelay)
	backoff = retry.WithCappedDuration(cfg.MaxDelay, backoff)
	if cfg.MaxAttempts > 0 {
		backoff = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), backoff)
	}

	attempt := 0
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		attempt++
		err := fn()
		switch {
		case err == nil:
			if attempt > 1 {
				logger.Info().Str("operation", name).Int("attempt", attempt).
					Msg("operation succeeded after retry")
			}
			return nil
		case IsNetworkError(err):
			logger.Warn().Err(err).Str("operation", name).Int("attempt", attempt).
				Int("maxAttempts", cfg.MaxAttempts).Msg("network error, will retry")
			return retry.RetryableError(err)
		default:
			logger.Error().Err(err).Str("operation", name).Msg("non-network error, not retrying")
			return err
		}
	})
	if err != nil {
		logger.Error().Err(err).Str("operation", name).Int("attempts", attempt).
			Msg("operation failed after all retries")
	}
	return err
}
