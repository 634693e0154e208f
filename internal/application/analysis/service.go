// Package analysis implements the application service for similarity
// analysis results: ingestion from the fingerprinting engine, read paths,
// statistics, and invalidation when a compound's structure changes.
package analysis

import (
	"context"
	"time"

	"github.com/pharmaref/pharmaref/internal/domain/analysis"
	"github.com/pharmaref/pharmaref/internal/domain/compound"
	"github.com/pharmaref/pharmaref/internal/infrastructure/database/redis"
	"github.com/pharmaref/pharmaref/internal/infrastructure/messaging/kafka"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

const (
	statisticsCacheKey = "similarities:statistics"
	statisticsCacheTTL = 5 * time.Minute

	// Applied when the caller omits or garbles the parameters.
	DefaultMinScore = 0.7
	DefaultLimit    = 10
)

// EventPublisher is the messaging contract the service needs.  Satisfied by
// kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// InvalidateResult reports an invalidation pass.
type InvalidateResult struct {
	CompoundID       int64 `json:"compound_id"`
	InvalidatedCount int64 `json:"invalidated_count"`
}

// Service coordinates similarity analysis use cases.
type Service struct {
	analyses  analysis.Repository
	compounds compound.Repository
	cache     redis.Cache
	publisher EventPublisher
	logger    logging.Logger
}

// NewService wires an analysis Service.
func NewService(
	analyses analysis.Repository,
	compounds compound.Repository,
	cache redis.Cache,
	publisher EventPublisher,
	logger logging.Logger,
) *Service {
	return &Service{
		analyses:  analyses,
		compounds: compounds,
		cache:     cache,
		publisher: publisher,
		logger:    logger.Named("analysis-service"),
	}
}

// Create validates and persists one analysis row.  Both referenced compounds
// must exist; a repeated (target, similar) pair is a conflict.
func (s *Service) Create(ctx context.Context, a *analysis.SimilarityAnalysis) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.FingerprintMethod == "" {
		a.FingerprintMethod = analysis.DefaultFingerprintMethod
	}
	if a.SimilarityMetric == "" {
		a.SimilarityMetric = analysis.DefaultSimilarityMetric
	}
	now := time.Now().UTC()
	if a.AnalysisDate.IsZero() {
		a.AnalysisDate = now
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	if err := s.analyses.Save(ctx, a); err != nil {
		return err
	}

	s.invalidateStatistics(ctx)
	return nil
}

// BulkCreate persists a batch of analysis rows, typically one engine run.
func (s *Service) BulkCreate(ctx context.Context, analyses []*analysis.SimilarityAnalysis) (int, error) {
	if len(analyses) == 0 {
		return 0, errors.InvalidParam("analyses batch is empty")
	}
	now := time.Now().UTC()
	for _, a := range analyses {
		if err := a.Validate(); err != nil {
			return 0, err
		}
		if a.FingerprintMethod == "" {
			a.FingerprintMethod = analysis.DefaultFingerprintMethod
		}
		if a.SimilarityMetric == "" {
			a.SimilarityMetric = analysis.DefaultSimilarityMetric
		}
		if a.AnalysisDate.IsZero() {
			a.AnalysisDate = now
		}
		a.CreatedAt = now
		a.UpdatedAt = now
	}

	if err := s.analyses.BatchSave(ctx, analyses); err != nil {
		return 0, err
	}

	s.invalidateStatistics(ctx)
	return len(analyses), nil
}

// Get returns one analysis row.
func (s *Service) Get(ctx context.Context, id int64) (*analysis.SimilarityAnalysis, error) {
	return s.analyses.FindByID(ctx, id)
}

// Delete removes one analysis row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.analyses.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateStatistics(ctx)
	return nil
}

// List returns one page of analyses matching the filter.
func (s *Service) List(ctx context.Context, filter analysis.Filter) ([]*analysis.SimilarityAnalysis, int64, error) {
	return s.analyses.List(ctx, filter)
}

// Statistics returns the cached aggregate snapshot.
func (s *Service) Statistics(ctx context.Context) (*analysis.Statistics, error) {
	var stats analysis.Statistics
	err := s.cache.GetOrSet(ctx, statisticsCacheKey, &stats, statisticsCacheTTL,
		func(ctx context.Context) (interface{}, error) {
			return s.analyses.Statistics(ctx)
		})
	if err != nil {
		s.logger.Warn("Statistics cache unavailable, falling back to repository", logging.Err(err))
		return s.analyses.Statistics(ctx)
	}
	return &stats, nil
}

// SimilarCompounds returns the current neighbors of a compound.  Out-of-range
// parameters fall back to the defaults rather than failing.
func (s *Service) SimilarCompounds(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error) {
	if _, err := s.compounds.FindByID(ctx, compoundID); err != nil {
		return nil, err
	}
	if minScore < 0 || minScore > 1 {
		minScore = DefaultMinScore
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.analyses.SimilarTo(ctx, compoundID, minScore, limit)
}

// Invalidate marks every current analysis touching the compound as stale.
// It is idempotent; a second call reports zero rows.
func (s *Service) Invalidate(ctx context.Context, compoundID int64) (*InvalidateResult, error) {
	if _, err := s.compounds.FindByID(ctx, compoundID); err != nil {
		return nil, err
	}

	count, err := s.analyses.Invalidate(ctx, compoundID)
	if err != nil {
		return nil, err
	}

	s.invalidateStatistics(ctx)
	s.publishInvalidated(ctx, compoundID, count)

	return &InvalidateResult{CompoundID: compoundID, InvalidatedCount: count}, nil
}

func (s *Service) invalidateStatistics(ctx context.Context) {
	if err := s.cache.Delete(ctx, statisticsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate statistics cache", logging.Err(err))
	}
}

func (s *Service) publishInvalidated(ctx context.Context, compoundID, count int64) {
	envelope, err := kafka.NewEventEnvelope(kafka.TopicSimilarityInvalidated, "pharmaref-api",
		&kafka.SimilarityInvalidatedPayload{
			CompoundID:       compoundID,
			InvalidatedCount: count,
			Reason:           "structure_changed",
			InvalidatedAt:    time.Now().UTC(),
		})
	if err != nil {
		s.logger.Error("Failed to build event envelope", logging.Err(err))
		return
	}
	msg, err := envelope.ToMessage(kafka.TopicSimilarityInvalidated)
	if err != nil {
		s.logger.Error("Failed to build event message", logging.Err(err))
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("Failed to publish event",
			logging.String("topic", kafka.TopicSimilarityInvalidated), logging.Err(err))
	}
}
