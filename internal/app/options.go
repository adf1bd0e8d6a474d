package service

import (
	"time"

	"github.com/fununcle/perfectcircle/internal/adapters/repository"
	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/session"
	"github.com/fununcle/perfectcircle/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued attempts.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the attempt ID cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the default in-memory best score store. The service
// closes it on Stop.
func WithStore(name string, store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.storeName = name
		}
	}
}

// WithScorerOptions tunes the circularity scorer.
func WithScorerOptions(opts ...circularity.Option) Option {
	return func(s *Service) {
		s.scorerOpts = append(s.scorerOpts, opts...)
	}
}

// WithSessionOptions tunes every drawing session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Service) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithSessionTTL sets how long an untouched session is kept.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}
