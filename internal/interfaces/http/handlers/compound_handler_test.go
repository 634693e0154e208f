package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcompound "github.com/pharmaref/pharmaref/internal/application/compound"
	"github.com/pharmaref/pharmaref/internal/domain/analysis"
	"github.com/pharmaref/pharmaref/internal/domain/compound"
	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

// fakeCompoundService implements CompoundService through function fields so
// each test overrides only the calls it cares about.
type fakeCompoundService struct {
	createFn     func(ctx context.Context, c *compound.Compound) error
	bulkCreateFn func(ctx context.Context, compounds []*compound.Compound) (int, error)
	getFn        func(ctx context.Context, id int64) (*appcompound.Detail, error)
	updateFn     func(ctx context.Context, id int64, req appcompound.UpdateRequest) (*compound.Compound, error)
	deleteFn     func(ctx context.Context, id int64) error
	listFn       func(ctx context.Context, filter compound.Filter) ([]appcompound.Summary, int64, error)
	statsFn      func(ctx context.Context) (*compound.Statistics, error)
	searchFn     func(ctx context.Context, req appcompound.SearchRequest) ([]compound.SearchResult, error)
	productsFn   func(ctx context.Context, compoundID int64, isMain *bool) ([]product.ProductRef, error)
	similarFn    func(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error)
}

func (f *fakeCompoundService) Create(ctx context.Context, c *compound.Compound) error {
	return f.createFn(ctx, c)
}

func (f *fakeCompoundService) BulkCreate(ctx context.Context, compounds []*compound.Compound) (int, error) {
	return f.bulkCreateFn(ctx, compounds)
}

func (f *fakeCompoundService) Get(ctx context.Context, id int64) (*appcompound.Detail, error) {
	return f.getFn(ctx, id)
}

func (f *fakeCompoundService) Update(ctx context.Context, id int64, req appcompound.UpdateRequest) (*compound.Compound, error) {
	return f.updateFn(ctx, id, req)
}

func (f *fakeCompoundService) Delete(ctx context.Context, id int64) error {
	return f.deleteFn(ctx, id)
}

func (f *fakeCompoundService) List(ctx context.Context, filter compound.Filter) ([]appcompound.Summary, int64, error) {
	return f.listFn(ctx, filter)
}

func (f *fakeCompoundService) Statistics(ctx context.Context) (*compound.Statistics, error) {
	return f.statsFn(ctx)
}

func (f *fakeCompoundService) Search(ctx context.Context, req appcompound.SearchRequest) ([]compound.SearchResult, error) {
	return f.searchFn(ctx, req)
}

func (f *fakeCompoundService) Products(ctx context.Context, compoundID int64, isMain *bool) ([]product.ProductRef, error) {
	return f.productsFn(ctx, compoundID, isMain)
}

func (f *fakeCompoundService) Similar(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error) {
	return f.similarFn(ctx, compoundID, minScore, limit)
}

func newCompoundTestRouter(svc *fakeCompoundService) http.Handler {
	h := NewCompoundHandler(svc, logging.NewNopLogger())
	r := chi.NewRouter()
	r.Route("/compounds", func(cr chi.Router) {
		cr.Get("/", h.List)
		cr.Post("/", h.Create)
		cr.Post("/bulk", h.BulkCreate)
		cr.Get("/statistics", h.Statistics)
		cr.Get("/search", h.Search)
		cr.Route("/{compoundID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Patch("/", h.Update)
			item.Delete("/", h.Delete)
			item.Get("/products", h.Products)
			item.Get("/similar", h.Similar)
		})
	})
	return r
}

func TestCompoundHandlerCreate(t *testing.T) {
	svc := &fakeCompoundService{
		createFn: func(ctx context.Context, c *compound.Compound) error {
			c.ID = 42
			return nil
		},
	}
	router := newCompoundTestRouter(svc)

	body := `{"standard_name": "Aspirin", "smiles": "CC(=O)OC1=CC=CC=C1C(=O)O"}`
	req := httptest.NewRequest(http.MethodPost, "/compounds", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var view CompoundView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, int64(42), view.ID)
	assert.Equal(t, "Aspirin", view.StandardName)
	assert.Equal(t, "CC(=O)OC1=CC=CC=C1C(=O)O", view.SMILES)
}

func TestCompoundHandlerCreateInvalidBody(t *testing.T) {
	router := newCompoundTestRouter(&fakeCompoundService{})

	req := httptest.NewRequest(http.MethodPost, "/compounds", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompoundHandlerCreateValidationError(t *testing.T) {
	svc := &fakeCompoundService{
		createFn: func(ctx context.Context, c *compound.Compound) error {
			return errors.New(errors.ErrCodeCompoundInvalidName, "standard name is required")
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/compounds", strings.NewReader(`{"standard_name": ""}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(errors.ErrCodeCompoundInvalidName), resp.Code)
}

func TestCompoundHandlerGet(t *testing.T) {
	svc := &fakeCompoundService{
		getFn: func(ctx context.Context, id int64) (*appcompound.Detail, error) {
			require.Equal(t, int64(7), id)
			c := compound.New("Ibuprofen")
			c.ID = id
			c.SMILES = "CC(C)CC1=CC=C(C=C1)C(C)C(=O)O"
			return &appcompound.Detail{
				Compound:        c,
				SimilarityCount: 3,
				Products: []product.ProductRef{
					{ProductID: 1, ProductName: "Brufen Tab.", IsMainActive: true},
				},
			}, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var detail CompoundDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, int64(7), detail.ID)
	assert.True(t, detail.HasStructure)
	assert.Equal(t, int64(3), detail.SimilarityCount)
	require.Len(t, detail.RelatedProducts, 1)
	assert.Equal(t, "Brufen Tab.", detail.RelatedProducts[0].ProductName)
}

func TestCompoundHandlerGetNotFound(t *testing.T) {
	svc := &fakeCompoundService{
		getFn: func(ctx context.Context, id int64) (*appcompound.Detail, error) {
			return nil, errors.New(errors.ErrCodeCompoundNotFound, "compound not found")
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompoundHandlerGetBadID(t *testing.T) {
	router := newCompoundTestRouter(&fakeCompoundService{})

	req := httptest.NewRequest(http.MethodGet, "/compounds/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompoundHandlerUpdatePassesOnlyPresentFields(t *testing.T) {
	var captured appcompound.UpdateRequest
	svc := &fakeCompoundService{
		updateFn: func(ctx context.Context, id int64, req appcompound.UpdateRequest) (*compound.Compound, error) {
			captured = req
			c := compound.New("Aspirin")
			c.ID = id
			c.SMILES = *req.SMILES
			return c, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/compounds/5", strings.NewReader(`{"smiles": "CCO"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured.SMILES)
	assert.Equal(t, "CCO", *captured.SMILES)
	assert.Nil(t, captured.StandardName)
	assert.Nil(t, captured.CID)
}

func TestCompoundHandlerDelete(t *testing.T) {
	deleted := int64(0)
	svc := &fakeCompoundService{
		deleteFn: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/compounds/11", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(11), deleted)
}

func TestCompoundHandlerListParsesFilter(t *testing.T) {
	var captured compound.Filter
	svc := &fakeCompoundService{
		listFn: func(ctx context.Context, filter compound.Filter) ([]appcompound.Summary, int64, error) {
			captured = filter
			c := compound.New("Aspirin")
			c.ID = 1
			return []appcompound.Summary{{Compound: c, ProductCount: 4}}, 1, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds?is_valid=true&has_structure=no&page=2&page_size=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured.IsValid)
	assert.True(t, *captured.IsValid)
	require.NotNil(t, captured.HasStructure)
	assert.False(t, *captured.HasStructure)
	assert.Nil(t, captured.HasCID)
	assert.Equal(t, 2, captured.Page)
	assert.Equal(t, 5, captured.PageSize)

	var resp struct {
		Count    int64              `json:"count"`
		Page     int                `json:"page"`
		PageSize int                `json:"page_size"`
		Results  []CompoundListItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Count)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, int64(4), resp.Results[0].ProductCount)
}

func TestCompoundHandlerSearch(t *testing.T) {
	svc := &fakeCompoundService{
		searchFn: func(ctx context.Context, req appcompound.SearchRequest) ([]compound.SearchResult, error) {
			assert.Equal(t, "aspirin", req.Query)
			assert.Equal(t, compound.SearchByName, req.Type)
			c := compound.New("Aspirin")
			c.ID = 1
			return []compound.SearchResult{{Compound: c, MatchType: compound.MatchExact}}, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/search?q=aspirin&type=name", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "aspirin", resp.Query)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "EXACT", resp.Results[0].MatchType)
}

func TestCompoundHandlerSearchEmptyQuery(t *testing.T) {
	svc := &fakeCompoundService{
		searchFn: func(ctx context.Context, req appcompound.SearchRequest) ([]compound.SearchResult, error) {
			return nil, errors.New(errors.ErrCodeSearchQueryInvalid, "query is required")
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompoundHandlerSimilarDefaults(t *testing.T) {
	svc := &fakeCompoundService{
		getFn: func(ctx context.Context, id int64) (*appcompound.Detail, error) {
			c := compound.New("Aspirin")
			c.ID = id
			return &appcompound.Detail{Compound: c}, nil
		},
		similarFn: func(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error) {
			assert.InDelta(t, 0.7, minScore, 1e-9)
			assert.Equal(t, 10, limit)
			return []analysis.SimilarCompound{
				{CompoundID: 2, StandardName: "Salicylic acid", SimilarityScore: 0.89},
			}, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/1/similar", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp SimilarResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Aspirin", resp.CompoundName)
	assert.Equal(t, 1, resp.Count)
}

func TestCompoundHandlerSimilarInvalidParamsFallBack(t *testing.T) {
	svc := &fakeCompoundService{
		getFn: func(ctx context.Context, id int64) (*appcompound.Detail, error) {
			c := compound.New("Aspirin")
			c.ID = id
			return &appcompound.Detail{Compound: c}, nil
		},
		similarFn: func(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error) {
			assert.InDelta(t, 0.7, minScore, 1e-9)
			assert.Equal(t, 10, limit)
			return nil, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/1/similar?min_score=abc&limit=xyz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp SimilarResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.SimilarCompounds)
}

func TestCompoundHandlerBulkCreate(t *testing.T) {
	svc := &fakeCompoundService{
		bulkCreateFn: func(ctx context.Context, compounds []*compound.Compound) (int, error) {
			return len(compounds), nil
		},
	}
	router := newCompoundTestRouter(svc)

	body := `{"compounds": [{"standard_name": "Aspirin"}, {"standard_name": "Ibuprofen"}]}`
	req := httptest.NewRequest(http.MethodPost, "/compounds/bulk", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["created"])
}

func TestCompoundHandlerProducts(t *testing.T) {
	svc := &fakeCompoundService{
		productsFn: func(ctx context.Context, compoundID int64, isMain *bool) ([]product.ProductRef, error) {
			require.NotNil(t, isMain)
			assert.True(t, *isMain)
			return []product.ProductRef{{ProductID: 3, ProductName: "Brufen Tab.", IsMainActive: true}}, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/1/products?is_main_active=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CompoundID int64                `json:"compound_id"`
		Count      int                  `json:"count"`
		Products   []product.ProductRef `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.CompoundID)
	assert.Equal(t, 1, resp.Count)
}

func TestCompoundHandlerStatistics(t *testing.T) {
	svc := &fakeCompoundService{
		statsFn: func(ctx context.Context) (*compound.Statistics, error) {
			return &compound.Statistics{Total: 120, WithStructureData: 80}, nil
		},
	}
	router := newCompoundTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/compounds/statistics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats compound.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(120), stats.Total)
}
