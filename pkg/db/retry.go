package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const txRetryAttempts = 3

// WithTxRetry runs fn in a transaction and retries serialization or
// deadlock failures with jittered backoff, up to three attempts total.
// Read-modify-write updates (rollup counters, session transitions) go
// through here so the optimistic-conflict behavior is explicit instead
// of being left to the store.
func (c *Client) WithTxRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithJitter(25*time.Millisecond,
		retry.WithMaxRetries(txRetryAttempts-1, retry.NewExponential(50*time.Millisecond)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.WithTx(ctx, fn)
		if err != nil && isRetryableTxError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// 40001 serialization_failure, 40P01 deadlock_detected; sqlite reports
	// contention as a busy/locked database.
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40p01") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
