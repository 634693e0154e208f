// Package compound implements the application service for the compound
// registry: CRUD, filtered listing, statistics, tiered search, and the
// product/similarity views of a compound.
package compound

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pharmaref/pharmaref/internal/domain/analysis"
	"github.com/pharmaref/pharmaref/internal/domain/compound"
	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/database/redis"
	"github.com/pharmaref/pharmaref/internal/infrastructure/messaging/kafka"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

const (
	statisticsCacheKey = "compounds:statistics"
	statisticsCacheTTL = 5 * time.Minute

	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// EventPublisher is the messaging contract the service needs.  Satisfied by
// kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// Summary is one row of the compound listing: the compound plus how many
// products carry it as a main active ingredient.
type Summary struct {
	*compound.Compound
	ProductCount int64
}

// Detail is the full compound view served by the detail endpoint.
type Detail struct {
	*compound.Compound
	Products        []product.ProductRef
	SimilarityCount int64
}

// UpdateRequest carries a partial update.  Nil fields are left untouched.
type UpdateRequest struct {
	StandardName     *string
	IUPACName        *string
	CID              *int64
	MolecularFormula *string
	MolecularWeight  *float64
	SMILES           *string
	InChI            *string
	InChIKey         *string
	IsValid          *bool
	ValidationError  *string
}

// SearchRequest carries a compound search query.
type SearchRequest struct {
	Query string
	Type  compound.SearchType
	Limit int
}

// Service coordinates compound use cases across the repository, cache and
// event stream.
type Service struct {
	compounds    compound.Repository
	ingredients  product.IngredientRepository
	similarities analysis.Repository
	cache        redis.Cache
	publisher    EventPublisher
	logger       logging.Logger
}

// NewService wires a compound Service.
func NewService(
	compounds compound.Repository,
	ingredients product.IngredientRepository,
	similarities analysis.Repository,
	cache redis.Cache,
	publisher EventPublisher,
	logger logging.Logger,
) *Service {
	return &Service{
		compounds:    compounds,
		ingredients:  ingredients,
		similarities: similarities,
		cache:        cache,
		publisher:    publisher,
		logger:       logger.Named("compound-service"),
	}
}

// Create validates and persists a new compound.
func (s *Service) Create(ctx context.Context, c *compound.Compound) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.FingerprintType == "" {
		c.FingerprintType = compound.DefaultFingerprintType
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.compounds.Save(ctx, c); err != nil {
		return err
	}

	s.invalidateStatistics(ctx)
	s.publishCompoundEvent(ctx, kafka.TopicCompoundUpdated, &kafka.CompoundUpdatedPayload{
		CompoundID:   c.ID,
		StandardName: c.StandardName,
		ChangeType:   "created",
		UpdatedAt:    c.UpdatedAt,
	})
	return nil
}

// BulkCreate validates and persists a batch of compounds, returning the
// number inserted.  The batch is all-or-nothing.
func (s *Service) BulkCreate(ctx context.Context, compounds []*compound.Compound) (int, error) {
	if len(compounds) == 0 {
		return 0, errors.InvalidParam("compounds batch is empty")
	}
	now := time.Now().UTC()
	for _, c := range compounds {
		if err := c.Validate(); err != nil {
			return 0, err
		}
		if c.FingerprintType == "" {
			c.FingerprintType = compound.DefaultFingerprintType
		}
		c.CreatedAt = now
		c.UpdatedAt = now
	}

	if err := s.compounds.BatchSave(ctx, compounds); err != nil {
		return 0, err
	}

	s.invalidateStatistics(ctx)
	return len(compounds), nil
}

// Get returns the compound detail including the products that contain it.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	c, err := s.compounds.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	refs, err := s.ingredients.ProductsForCompound(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	_, similarityCount, err := s.similarities.List(ctx, analysis.Filter{CompoundID: &id, PageSize: 1})
	if err != nil {
		return nil, err
	}

	return &Detail{Compound: c, Products: refs, SimilarityCount: similarityCount}, nil
}

// Update applies a partial update to the compound.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*compound.Compound, error) {
	c, err := s.compounds.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	structureChanged := false
	if req.StandardName != nil {
		c.StandardName = *req.StandardName
	}
	if req.IUPACName != nil {
		c.IUPACName = *req.IUPACName
	}
	if req.CID != nil {
		c.CID = req.CID
	}
	if req.MolecularFormula != nil {
		c.MolecularFormula = *req.MolecularFormula
	}
	if req.MolecularWeight != nil {
		c.MolecularWeight = req.MolecularWeight
	}
	if req.SMILES != nil && *req.SMILES != c.SMILES {
		c.SMILES = *req.SMILES
		structureChanged = true
	}
	if req.InChI != nil {
		c.InChI = *req.InChI
	}
	if req.InChIKey != nil {
		c.InChIKey = *req.InChIKey
	}
	if req.IsValid != nil {
		c.IsValid = *req.IsValid
	}
	if req.ValidationError != nil {
		c.ValidationError = *req.ValidationError
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()

	if err := s.compounds.Update(ctx, c); err != nil {
		return nil, err
	}

	s.invalidateStatistics(ctx)
	changeType := "updated"
	if structureChanged {
		changeType = "structure_changed"
	}
	s.publishCompoundEvent(ctx, kafka.TopicCompoundUpdated, &kafka.CompoundUpdatedPayload{
		CompoundID:   c.ID,
		StandardName: c.StandardName,
		ChangeType:   changeType,
		UpdatedAt:    c.UpdatedAt,
	})
	return c, nil
}

// Delete removes the compound.  Ingredient links lose their mapping and
// similarity rows disappear with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	c, err := s.compounds.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.compounds.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateStatistics(ctx)
	s.publishCompoundEvent(ctx, kafka.TopicCompoundDeleted, &kafka.CompoundDeletedPayload{
		CompoundID:   c.ID,
		StandardName: c.StandardName,
		DeletedAt:    time.Now().UTC(),
	})
	return nil
}

// List returns one page of compounds with their main-active product counts.
func (s *Service) List(ctx context.Context, filter compound.Filter) ([]Summary, int64, error) {
	compounds, total, err := s.compounds.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]int64, len(compounds))
	for i, c := range compounds {
		ids[i] = c.ID
	}
	counts, err := s.ingredients.CountMainActiveByCompoundIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]Summary, len(compounds))
	for i, c := range compounds {
		summaries[i] = Summary{Compound: c, ProductCount: counts[c.ID]}
	}
	return summaries, total, nil
}

// Statistics returns the cached aggregate snapshot, loading it from the
// repository on a miss.
func (s *Service) Statistics(ctx context.Context) (*compound.Statistics, error) {
	var stats compound.Statistics
	err := s.cache.GetOrSet(ctx, statisticsCacheKey, &stats, statisticsCacheTTL,
		func(ctx context.Context) (interface{}, error) {
			return s.compounds.Statistics(ctx)
		})
	if err != nil {
		s.logger.Warn("Statistics cache unavailable, falling back to repository", logging.Err(err))
		return s.compounds.Statistics(ctx)
	}
	return &stats, nil
}

// Search runs the tiered compound search.  A blank query is rejected; a
// cid search with a non-integer query is rejected.  The type is matched
// case-insensitively and anything other than cid/smiles is a name search.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]compound.SearchResult, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return nil, errors.New(errors.ErrCodeSearchQueryInvalid, "search query must not be empty")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	switch compound.SearchType(strings.ToLower(string(req.Type))) {
	case compound.SearchByCID:
		return s.searchByCID(ctx, q)
	case compound.SearchBySMILES:
		return s.searchBySMILES(ctx, q, limit)
	default:
		return s.searchByName(ctx, q, limit)
	}
}

func (s *Service) searchByName(ctx context.Context, q string, limit int) ([]compound.SearchResult, error) {
	exact, err := s.compounds.FindByNameExact(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]compound.SearchResult, 0, limit)
	excludeIDs := make([]int64, 0, len(exact))
	for _, c := range exact {
		results = append(results, compound.SearchResult{Compound: c, MatchType: compound.MatchExact})
		excludeIDs = append(excludeIDs, c.ID)
	}

	if len(results) < limit {
		partial, err := s.compounds.FindByNamePartial(ctx, q, excludeIDs)
		if err != nil {
			return nil, err
		}
		for _, c := range partial {
			results = append(results, compound.SearchResult{Compound: c, MatchType: compound.MatchPartial})
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Service) searchByCID(ctx context.Context, q string) ([]compound.SearchResult, error) {
	cid, err := strconv.ParseInt(q, 10, 64)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchQueryInvalid, "cid must be an integer")
	}

	c, err := s.compounds.FindByCID(ctx, cid)
	if err != nil {
		if errors.IsNotFound(err) {
			return []compound.SearchResult{}, nil
		}
		return nil, err
	}
	return []compound.SearchResult{{Compound: c, MatchType: compound.MatchCID}}, nil
}

func (s *Service) searchBySMILES(ctx context.Context, q string, limit int) ([]compound.SearchResult, error) {
	matches, err := s.compounds.FindBySMILES(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]compound.SearchResult, 0, len(matches))
	for _, c := range matches {
		mt := compound.MatchPartial
		if strings.EqualFold(c.SMILES, q) {
			mt = compound.MatchExact
		}
		results = append(results, compound.SearchResult{Compound: c, MatchType: mt})
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Products lists the products containing the compound.
func (s *Service) Products(ctx context.Context, compoundID int64, isMain *bool) ([]product.ProductRef, error) {
	if _, err := s.compounds.FindByID(ctx, compoundID); err != nil {
		return nil, err
	}
	return s.ingredients.ProductsForCompound(ctx, compoundID, isMain)
}

// Similar lists the compound's current similarity neighbors.
func (s *Service) Similar(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error) {
	if _, err := s.compounds.FindByID(ctx, compoundID); err != nil {
		return nil, err
	}
	return s.similarities.SimilarTo(ctx, compoundID, minScore, limit)
}

func (s *Service) invalidateStatistics(ctx context.Context) {
	if err := s.cache.Delete(ctx, statisticsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate statistics cache", logging.Err(err))
	}
}

// publishCompoundEvent is best effort: the write already committed, so a
// broker outage must not fail the request.
func (s *Service) publishCompoundEvent(ctx context.Context, topic string, payload interface{}) {
	envelope, err := kafka.NewEventEnvelope(topic, "pharmaref-api", payload)
	if err != nil {
		s.logger.Error("Failed to build event envelope", logging.Err(err))
		return
	}
	msg, err := envelope.ToMessage(topic)
	if err != nil {
		s.logger.Error("Failed to build event message", logging.Err(err))
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("Failed to publish event",
			logging.String("topic", topic), logging.Err(err))
	}
}
