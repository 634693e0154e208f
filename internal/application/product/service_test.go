package product

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/messaging/kafka"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

// --- Mock implementations ---

type mockProductRepo struct {
	mu        sync.Mutex
	products  map[int64]*product.Product
	nextID    int64
	saveErr   error
	statsHits int
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[int64]*product.Product)}
}

func (m *mockProductRepo) Save(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, existing := range m.products {
		if existing.PermitNumber == p.PermitNumber {
			return errors.New(errors.ErrCodeProductAlreadyExists, "permit number already registered")
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) BatchSave(ctx context.Context, products []*product.Product) error {
	for _, p := range products {
		if err := m.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockProductRepo) FindByID(ctx context.Context, id int64) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeProductNotFound, "product not found")
	}
	return p, nil
}

func (m *mockProductRepo) FindByPermitNumber(ctx context.Context, permitNumber string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.PermitNumber == permitNumber {
			return p, nil
		}
	}
	return nil, errors.New(errors.ErrCodeProductNotFound, "product not found")
}

func (m *mockProductRepo) Update(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return errors.New(errors.ErrCodeProductNotFound, "product not found")
	}
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return errors.New(errors.ErrCodeProductNotFound, "product not found")
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) List(ctx context.Context, filter product.Filter) ([]*product.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*product.Product
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockProductRepo) Statistics(ctx context.Context) (*product.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsHits++
	return &product.Statistics{Total: int64(len(m.products))}, nil
}

func (m *mockProductRepo) SearchByName(ctx context.Context, q string, page, pageSize int) ([]*product.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*product.Product
	for id := int64(1); id <= m.nextID; id++ {
		p, ok := m.products[id]
		if ok && strings.Contains(strings.ToLower(p.ProductName), strings.ToLower(q)) {
			result = append(result, p)
		}
	}
	return result, int64(len(result)), nil
}

type mockIngredientRepo struct {
	mu          sync.Mutex
	ingredients map[int64]*product.ProductIngredient
	nextID      int64
	failures    []product.FailedNormalization
}

func newMockIngredientRepo() *mockIngredientRepo {
	return &mockIngredientRepo{ingredients: make(map[int64]*product.ProductIngredient)}
}

func (m *mockIngredientRepo) Save(ctx context.Context, i *product.ProductIngredient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	i.ID = m.nextID
	m.ingredients[i.ID] = i
	return nil
}

func (m *mockIngredientRepo) BatchSave(ctx context.Context, ingredients []*product.ProductIngredient) error {
	for _, i := range ingredients {
		if err := m.Save(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockIngredientRepo) FindByID(ctx context.Context, id int64) (*product.ProductIngredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.ingredients[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeIngredientNotFound, "ingredient not found")
	}
	return i, nil
}

func (m *mockIngredientRepo) Update(ctx context.Context, i *product.ProductIngredient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ingredients[i.ID]; !ok {
		return errors.New(errors.ErrCodeIngredientNotFound, "ingredient not found")
	}
	m.ingredients[i.ID] = i
	return nil
}

func (m *mockIngredientRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ingredients, id)
	return nil
}

func (m *mockIngredientRepo) List(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*product.ProductIngredient
	for id := int64(1); id <= m.nextID; id++ {
		if i, ok := m.ingredients[id]; ok {
			result = append(result, i)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockIngredientRepo) ByProduct(ctx context.Context, productID int64, isMain *bool) ([]*product.ProductIngredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*product.ProductIngredient
	for id := int64(1); id <= m.nextID; id++ {
		i, ok := m.ingredients[id]
		if !ok || i.ProductID != productID {
			continue
		}
		if isMain != nil && i.IsMainActive != *isMain {
			continue
		}
		result = append(result, i)
	}
	sort.SliceStable(result, func(a, b int) bool {
		if result[a].IsMainActive != result[b].IsMainActive {
			return result[a].IsMainActive
		}
		return result[a].ID < result[b].ID
	})
	return result, nil
}

func (m *mockIngredientRepo) FailedNormalizations(ctx context.Context) ([]product.FailedNormalization, error) {
	return m.failures, nil
}

func (m *mockIngredientRepo) MainIngredientPreviews(ctx context.Context, productIDs []int64, previewLimit int) (map[int64][]product.IngredientRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[int64][]product.IngredientRef)
	for _, pid := range productIDs {
		for id := int64(1); id <= m.nextID; id++ {
			i, ok := m.ingredients[id]
			if !ok || i.ProductID != pid || !i.IsMainActive {
				continue
			}
			if len(result[pid]) >= previewLimit {
				break
			}
			result[pid] = append(result[pid], product.IngredientRef{
				CompoundID:        i.CompoundID,
				RawIngredientName: i.RawIngredientName,
				Content:           i.Content,
				Unit:              i.Unit,
			})
		}
	}
	return result, nil
}

func (m *mockIngredientRepo) CountMainActiveByCompoundIDs(ctx context.Context, compoundIDs []int64) (map[int64]int64, error) {
	return map[int64]int64{}, nil
}

func (m *mockIngredientRepo) ProductsForCompound(ctx context.Context, compoundID int64, isMain *bool) ([]product.ProductRef, error) {
	return nil, nil
}

type mockCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[key]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "cache miss")
	}
	return json.Unmarshal(data, dest)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = data
	return nil
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *mockCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok, nil
}

func (m *mockCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	if err := m.Get(ctx, key, dest); err == nil {
		return nil
	}
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	if err := m.Set(ctx, key, v, ttl); err != nil {
		return err
	}
	return m.Get(ctx, key, dest)
}

func (m *mockCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockCache) Incr(ctx context.Context, key string) (int64, error)             { return 0, nil }
func (m *mockCache) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }
func (m *mockCache) TTL(ctx context.Context, key string) (time.Duration, error)      { return 0, nil }
func (m *mockCache) Ping(ctx context.Context) error                                  { return nil }

type mockPublisher struct {
	mu       sync.Mutex
	messages []*kafka.ProducerMessage
}

func (m *mockPublisher) Publish(ctx context.Context, msg *kafka.ProducerMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func newTestService() (*Service, *mockProductRepo, *mockIngredientRepo, *mockPublisher) {
	products := newMockProductRepo()
	ingredients := newMockIngredientRepo()
	publisher := &mockPublisher{}
	svc := NewService(products, ingredients, newMockCache(), publisher, logging.NewNopLogger())
	return svc, products, ingredients, publisher
}

// --- Tests ---

func TestCreateWithIngredients(t *testing.T) {
	svc, repo, ingredients, publisher := newTestService()

	p := product.New("Aspirin Protect Tab. 100mg", "19990123")
	rows := []*product.ProductIngredient{
		product.NewIngredient(0, "aspirin"),
		product.NewIngredient(0, "corn starch"),
	}
	rows[1].IsMainActive = false
	rows[1].IngredientType = product.IngredientExcipient

	require.NoError(t, svc.Create(context.Background(), p, rows))
	assert.NotZero(t, p.ID)
	assert.Equal(t, product.DefaultSource, p.Source)
	assert.Len(t, repo.products, 1)
	assert.Len(t, ingredients.ingredients, 2)
	for _, i := range ingredients.ingredients {
		assert.Equal(t, p.ID, i.ProductID)
		assert.Equal(t, product.NormalizationPending, i.NormalizationStatus)
	}

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, kafka.TopicProductIngested, publisher.messages[0].Topic)
	var env kafka.EventEnvelope
	require.NoError(t, json.Unmarshal(publisher.messages[0].Value, &env))
	var payload kafka.ProductIngestedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, p.ID, payload.ProductID)
	assert.Equal(t, "19990123", payload.PermitNumber)
}

func TestCreateRejectsInvalidProduct(t *testing.T) {
	svc, repo, _, publisher := newTestService()

	err := svc.Create(context.Background(), product.New("A", "19990123"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Empty(t, repo.products)
	assert.Empty(t, publisher.messages)
}

func TestCreateDuplicatePermitNumber(t *testing.T) {
	svc, _, _, _ := newTestService()

	require.NoError(t, svc.Create(context.Background(), product.New("Aspirin Tab.", "19990123"), nil))
	err := svc.Create(context.Background(), product.New("Other Tab.", "19990123"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestGetOrdersMainActivesFirst(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := product.New("Aspirin Protect Tab. 100mg", "19990123")
	excipient := product.NewIngredient(0, "corn starch")
	excipient.IsMainActive = false
	active := product.NewIngredient(0, "aspirin")
	require.NoError(t, svc.Create(context.Background(), p, []*product.ProductIngredient{excipient, active}))

	detail, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Ingredients, 2)
	assert.True(t, detail.Ingredients[0].IsMainActive)
	assert.Equal(t, "aspirin", detail.Ingredients[0].RawIngredientName)
}

func TestUpdatePatchSemantics(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := product.New("Aspirin Tab.", "19990123")
	p.Manufacturer = "Bayer Korea"
	require.NoError(t, svc.Create(context.Background(), p, nil))

	combo := true
	updated, err := svc.Update(context.Background(), p.ID, UpdateRequest{IsCombination: &combo})
	require.NoError(t, err)
	assert.True(t, updated.IsCombination)
	assert.Equal(t, "Bayer Korea", updated.Manufacturer, "untouched fields survive")
	assert.Equal(t, "19990123", updated.PermitNumber)
}

func TestDeleteNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.Delete(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListIncludesIngredientPreviews(t *testing.T) {
	svc, _, _, _ := newTestService()

	p := product.New("Aspirin Tab.", "19990123")
	require.NoError(t, svc.Create(context.Background(), p, []*product.ProductIngredient{
		product.NewIngredient(0, "aspirin"),
	}))

	summaries, total, err := svc.List(context.Background(), product.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, summaries, 1)
	require.Len(t, summaries[0].MainIngredients, 1)
	assert.Equal(t, "aspirin", summaries[0].MainIngredients[0].RawIngredientName)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Search(context.Background(), "", 1, 20)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSearchQueryInvalid, errors.GetCode(err))
}

func TestSearchByName(t *testing.T) {
	svc, _, _, _ := newTestService()

	require.NoError(t, svc.Create(context.Background(), product.New("Aspirin Protect Tab.", "19990123"), nil))
	require.NoError(t, svc.Create(context.Background(), product.New("Tylenol Tab.", "20000456"), nil))

	results, total, err := svc.Search(context.Background(), "aspirin", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, results, 1)
	assert.Equal(t, "Aspirin Protect Tab.", results[0].ProductName)
}

func TestStatisticsCached(t *testing.T) {
	svc, repo, _, _ := newTestService()

	require.NoError(t, svc.Create(context.Background(), product.New("Aspirin Tab.", "19990123"), nil))
	repo.statsHits = 0

	_, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	_, err = svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.statsHits, "second read comes from cache")

	require.NoError(t, svc.Create(context.Background(), product.New("Tylenol Tab.", "20000456"), nil))
	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.statsHits)
	assert.Equal(t, int64(2), stats.Total)
}

func TestIngredientUpdateManualMapping(t *testing.T) {
	_, _, ingredients, _ := newTestService()
	isvc := NewIngredientService(ingredients, logging.NewNopLogger())

	row := product.NewIngredient(1, "aspirin")
	require.NoError(t, ingredients.Save(context.Background(), row))

	compoundID := int64(42)
	row.CompoundID = &compoundID
	row.NormalizationStatus = product.NormalizationManual
	require.NoError(t, isvc.Update(context.Background(), row))

	got, err := isvc.Get(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompoundID)
	assert.Equal(t, int64(42), *got.CompoundID)
	assert.Equal(t, product.NormalizationManual, got.NormalizationStatus)
}

func TestFailedNormalizationsReport(t *testing.T) {
	_, _, ingredients, _ := newTestService()
	isvc := NewIngredientService(ingredients, logging.NewNopLogger())

	ingredients.failures = []product.FailedNormalization{
		{RawIngredientName: "unknown extract", FailureCount: 12},
		{RawIngredientName: "misspelled acid", FailureCount: 3},
	}

	report, err := isvc.FailedNormalizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.TotalFailed)
	require.Len(t, report.FailedIngredients, 2)
	assert.Equal(t, "unknown extract", report.FailedIngredients[0].RawIngredientName)
	assert.Equal(t, int64(12), report.FailedIngredients[0].FailureCount)
}
