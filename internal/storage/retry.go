package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	everrors "github.com/ducminhle1904/strategy-evolver/internal/errors"
	"github.com/ducminhle1904/strategy-evolver/internal/monitoring"
	"github.com/ducminhle1904/strategy-evolver/pkg/config"
)

// RetryConfig defines the retry policy for store calls
type RetryConfig struct {
	MaxRetries int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Factor     float64
	Jitter     bool
}

// DefaultRetryConfig returns the default retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		MinDelay:   200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Factor:     2,
		Jitter:     true,
	}
}

// RetryConfigFrom applies the configured retry budget and backoff bounds to the default policy
func RetryConfigFrom(cfg config.PersistenceConfig) RetryConfig {
	rc := DefaultRetryConfig()
	rc.MaxRetries = cfg.MaxRetries
	if cfg.InitialBackoff > 0 {
		rc.MinDelay = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		rc.MaxDelay = cfg.MaxBackoff
	}
	return rc
}

// RetryingStore retries failed calls of the wrapped store with exponential backoff.
// Once the retries are exhausted the call fails with a PERSISTENCE error.
type RetryingStore struct {
	inner  DocumentStore
	config RetryConfig
	logger logrus.FieldLogger
}

// NewRetryingStore wraps inner with the retry policy
func NewRetryingStore(inner DocumentStore, config RetryConfig, logger logrus.FieldLogger) *RetryingStore {
	if config.Factor <= 1 {
		config.Factor = 2
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RetryingStore{
		inner:  inner,
		config: config,
		logger: logger.WithField("component", "store"),
	}
}

func (s *RetryingStore) Put(ctx context.Context, collection, id string, doc []byte) error {
	return s.execute(ctx, "Put", collection, id, func() error {
		return s.inner.Put(ctx, collection, id, doc)
	})
}

func (s *RetryingStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var out []byte
	err := s.execute(ctx, "Get", collection, id, func() error {
		var err error
		out, err = s.inner.Get(ctx, collection, id)
		return err
	})
	return out, err
}

func (s *RetryingStore) List(ctx context.Context, collection string) ([][]byte, error) {
	var out [][]byte
	err := s.execute(ctx, "List", collection, "", func() error {
		var err error
		out, err = s.inner.List(ctx, collection)
		return err
	})
	return out, err
}

// Close closes the wrapped store
func (s *RetryingStore) Close() error {
	return s.inner.Close()
}

// execute runs fn until it succeeds, the error is not worth retrying, or the retries run out
func (s *RetryingStore) execute(ctx context.Context, operation, collection, id string, fn func() error) error {
	b := &backoff.Backoff{
		Min:    s.config.MinDelay,
		Max:    s.config.MaxDelay,
		Factor: s.config.Factor,
		Jitter: s.config.Jitter,
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				s.logger.WithFields(logrus.Fields{
					"operation":  operation,
					"collection": collection,
					"attempts":   attempt + 1,
				}).Info("Store operation succeeded after retry")
			}
			return nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err

		if attempt == s.config.MaxRetries {
			break
		}

		delay := b.Duration()
		monitoring.RecordPersistenceRetry()
		s.logger.WithFields(logrus.Fields{
			"operation":  operation,
			"collection": collection,
			"id":         id,
			"attempt":    attempt + 1,
			"delay":      delay,
		}).WithError(err).Warn("Store operation failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return everrors.NewPersistenceError("store", operation, lastErr).
		WithContext("collection", collection).
		WithContext("id", id).
		WithContext("attempts", s.config.MaxRetries+1).
		WithRetryable(false)
}
