package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/retry"
)

var dbBackoff = retry.BackoffConfig{
	InitialDelay: time.Duration(constants.DefaultBackoffInitialMs) * time.Millisecond,
	MaxDelay:     time.Duration(constants.DefaultBackoffMaxSec) * time.Second,
	Multiplier:   2.0,
	MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
}

// withRetry runs operation until it succeeds, fails with an error that is
// not worth retrying, or runs out of attempts.
func withRetry(ctx context.Context, operationName string, operation func() error) error {
	attempts := 0
	err := retry.NewBackoff(dbBackoff).RetryWithPredicate(ctx, func() error {
		attempts++
		return operation()
	}, isRetryableDBError)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	case !isRetryableDBError(err):
		return fmt.Errorf("%s failed (non-retryable): %w", operationName, err)
	default:
		return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, err)
	}
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	msg := err.Error()
	for _, transient := range []string{
		"database is locked",
		"disk I/O error",
		"no such host",
		"connection refused",
		"connection reset by peer",
		"too many clients already",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}
