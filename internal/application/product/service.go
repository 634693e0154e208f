// Package product implements the application services for drug products and
// their ingredient mappings.
package product

import (
	"context"
	"time"

	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/database/redis"
	"github.com/pharmaref/pharmaref/internal/infrastructure/messaging/kafka"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

const (
	statisticsCacheKey = "products:statistics"
	statisticsCacheTTL = 5 * time.Minute

	listPreviewLimit = 3
)

// EventPublisher is the messaging contract the service needs.  Satisfied by
// kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// Summary is one row of the product listing: the product plus a short
// preview of its main active ingredients.
type Summary struct {
	*product.Product
	MainIngredients []product.IngredientRef
}

// Detail is the full product view including every ingredient row.
type Detail struct {
	*product.Product
	Ingredients []*product.ProductIngredient
}

// UpdateRequest carries a partial product update.  Nil fields are left
// untouched.
type UpdateRequest struct {
	ProductName   *string
	Manufacturer  *string
	IsCombination *bool
	Source        *string
	PermitDate    *time.Time
}

// Service coordinates product use cases.
type Service struct {
	products    product.Repository
	ingredients product.IngredientRepository
	cache       redis.Cache
	publisher   EventPublisher
	logger      logging.Logger
}

// NewService wires a product Service.
func NewService(
	products product.Repository,
	ingredients product.IngredientRepository,
	cache redis.Cache,
	publisher EventPublisher,
	logger logging.Logger,
) *Service {
	return &Service{
		products:    products,
		ingredients: ingredients,
		cache:       cache,
		publisher:   publisher,
		logger:      logger.Named("product-service"),
	}
}

// Create validates and persists a new product together with its ingredient
// rows.
func (s *Service) Create(ctx context.Context, p *product.Product, ingredients []*product.ProductIngredient) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Source == "" {
		p.Source = product.DefaultSource
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.products.Save(ctx, p); err != nil {
		return err
	}

	for _, i := range ingredients {
		i.ProductID = p.ID
		if i.IngredientType == "" {
			i.IngredientType = product.IngredientActive
		}
		if i.NormalizationStatus == "" {
			i.NormalizationStatus = product.NormalizationPending
		}
		i.CreatedAt = now
		i.UpdatedAt = now
		if err := i.Validate(); err != nil {
			return err
		}
	}
	if len(ingredients) > 0 {
		if err := s.ingredients.BatchSave(ctx, ingredients); err != nil {
			return err
		}
	}

	s.invalidateStatistics(ctx)
	s.publishIngested(ctx, p)
	return nil
}

// Get returns the product detail with every ingredient row, main actives
// first.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ingredients, err := s.ingredients.ByProduct(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	return &Detail{Product: p, Ingredients: ingredients}, nil
}

// Update applies a partial update to the product.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*product.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ProductName != nil {
		p.ProductName = *req.ProductName
	}
	if req.Manufacturer != nil {
		p.Manufacturer = *req.Manufacturer
	}
	if req.IsCombination != nil {
		p.IsCombination = *req.IsCombination
	}
	if req.Source != nil {
		p.Source = *req.Source
	}
	if req.PermitDate != nil {
		p.PermitDate = req.PermitDate
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}

	s.invalidateStatistics(ctx)
	return p, nil
}

// Delete removes the product and, through the schema cascade, all of its
// ingredient rows.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateStatistics(ctx)
	return nil
}

// List returns one page of products with main-ingredient previews.
func (s *Service) List(ctx context.Context, filter product.Filter) ([]Summary, int64, error) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	previews, err := s.ingredients.MainIngredientPreviews(ctx, ids, listPreviewLimit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]Summary, len(products))
	for i, p := range products {
		summaries[i] = Summary{Product: p, MainIngredients: previews[p.ID]}
	}
	return summaries, total, nil
}

// Search returns products whose name contains q.
func (s *Service) Search(ctx context.Context, q string, page, pageSize int) ([]*product.Product, int64, error) {
	if q == "" {
		return nil, 0, errors.New(errors.ErrCodeSearchQueryInvalid, "search query must not be empty")
	}
	return s.products.SearchByName(ctx, q, page, pageSize)
}

// Statistics returns the cached aggregate snapshot.
func (s *Service) Statistics(ctx context.Context) (*product.Statistics, error) {
	var stats product.Statistics
	err := s.cache.GetOrSet(ctx, statisticsCacheKey, &stats, statisticsCacheTTL,
		func(ctx context.Context) (interface{}, error) {
			return s.products.Statistics(ctx)
		})
	if err != nil {
		s.logger.Warn("Statistics cache unavailable, falling back to repository", logging.Err(err))
		return s.products.Statistics(ctx)
	}
	return &stats, nil
}

func (s *Service) invalidateStatistics(ctx context.Context) {
	if err := s.cache.Delete(ctx, statisticsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate statistics cache", logging.Err(err))
	}
}

func (s *Service) publishIngested(ctx context.Context, p *product.Product) {
	envelope, err := kafka.NewEventEnvelope(kafka.TopicProductIngested, "pharmaref-api",
		&kafka.ProductIngestedPayload{
			ProductID:    p.ID,
			PermitNumber: p.PermitNumber,
			Source:       p.Source,
			IngestedAt:   time.Now().UTC(),
		})
	if err != nil {
		s.logger.Error("Failed to build event envelope", logging.Err(err))
		return
	}
	msg, err := envelope.ToMessage(kafka.TopicProductIngested)
	if err != nil {
		s.logger.Error("Failed to build event message", logging.Err(err))
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("Failed to publish event",
			logging.String("topic", kafka.TopicProductIngested), logging.Err(err))
	}
}

// IngredientService coordinates ingredient-level use cases, mainly for
// normalization curation.
type IngredientService struct {
	ingredients product.IngredientRepository
	logger      logging.Logger
}

// NewIngredientService wires an IngredientService.
func NewIngredientService(ingredients product.IngredientRepository, logger logging.Logger) *IngredientService {
	return &IngredientService{
		ingredients: ingredients,
		logger:      logger.Named("ingredient-service"),
	}
}

// List returns one page of ingredient rows matching the filter.
func (s *IngredientService) List(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error) {
	return s.ingredients.List(ctx, filter)
}

// Get returns one ingredient row.
func (s *IngredientService) Get(ctx context.Context, id int64) (*product.ProductIngredient, error) {
	return s.ingredients.FindByID(ctx, id)
}

// Update applies a curated change to an ingredient row, typically a manual
// compound mapping.
func (s *IngredientService) Update(ctx context.Context, i *product.ProductIngredient) error {
	if err := i.Validate(); err != nil {
		return err
	}
	i.UpdatedAt = time.Now().UTC()
	return s.ingredients.Update(ctx, i)
}

// FailedNormalizationReport is the curation view of unresolved ingredient
// names.
type FailedNormalizationReport struct {
	TotalFailed       int64                         `json:"total_failed"`
	FailedIngredients []product.FailedNormalization `json:"failed_ingredients"`
}

// FailedNormalizations returns the grouped report of names the pipeline
// could not resolve.  TotalFailed counts distinct raw names, not rows.
func (s *IngredientService) FailedNormalizations(ctx context.Context) (*FailedNormalizationReport, error) {
	failures, err := s.ingredients.FailedNormalizations(ctx)
	if err != nil {
		return nil, err
	}
	return &FailedNormalizationReport{
		TotalFailed:       int64(len(failures)),
		FailedIngredients: failures,
	}, nil
}
