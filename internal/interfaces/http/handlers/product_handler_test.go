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

	appproduct "github.com/pharmaref/pharmaref/internal/application/product"
	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

type fakeProductService struct {
	createFn func(ctx context.Context, p *product.Product, ingredients []*product.ProductIngredient) error
	getFn    func(ctx context.Context, id int64) (*appproduct.Detail, error)
	updateFn func(ctx context.Context, id int64, req appproduct.UpdateRequest) (*product.Product, error)
	deleteFn func(ctx context.Context, id int64) error
	listFn   func(ctx context.Context, filter product.Filter) ([]appproduct.Summary, int64, error)
	searchFn func(ctx context.Context, q string, page, pageSize int) ([]*product.Product, int64, error)
	statsFn  func(ctx context.Context) (*product.Statistics, error)
}

func (f *fakeProductService) Create(ctx context.Context, p *product.Product, ingredients []*product.ProductIngredient) error {
	return f.createFn(ctx, p, ingredients)
}

func (f *fakeProductService) Get(ctx context.Context, id int64) (*appproduct.Detail, error) {
	return f.getFn(ctx, id)
}

func (f *fakeProductService) Update(ctx context.Context, id int64, req appproduct.UpdateRequest) (*product.Product, error) {
	return f.updateFn(ctx, id, req)
}

func (f *fakeProductService) Delete(ctx context.Context, id int64) error {
	return f.deleteFn(ctx, id)
}

func (f *fakeProductService) List(ctx context.Context, filter product.Filter) ([]appproduct.Summary, int64, error) {
	return f.listFn(ctx, filter)
}

func (f *fakeProductService) Search(ctx context.Context, q string, page, pageSize int) ([]*product.Product, int64, error) {
	return f.searchFn(ctx, q, page, pageSize)
}

func (f *fakeProductService) Statistics(ctx context.Context) (*product.Statistics, error) {
	return f.statsFn(ctx)
}

type fakeProductIngredients struct {
	listFn func(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error)
}

func (f *fakeProductIngredients) List(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error) {
	return f.listFn(ctx, filter)
}

func newProductTestRouter(svc *fakeProductService, ingredients *fakeProductIngredients) http.Handler {
	if ingredients == nil {
		ingredients = &fakeProductIngredients{}
	}
	h := NewProductHandler(svc, ingredients, logging.NewNopLogger())
	r := chi.NewRouter()
	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", h.List)
		pr.Post("/", h.Create)
		pr.Get("/statistics", h.Statistics)
		pr.Get("/search", h.Search)
		pr.Route("/{productID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Patch("/", h.Update)
			item.Delete("/", h.Delete)
			item.Get("/ingredients", h.Ingredients)
		})
	})
	return r
}

func TestProductHandlerCreateWithIngredients(t *testing.T) {
	var captured []*product.ProductIngredient
	svc := &fakeProductService{
		createFn: func(ctx context.Context, p *product.Product, ingredients []*product.ProductIngredient) error {
			p.ID = 9
			captured = ingredients
			return nil
		},
	}
	router := newProductTestRouter(svc, nil)

	body := `{
		"product_name": "Tylenol Tab. 500mg",
		"permit_number": "19850001",
		"manufacturer": "Janssen Korea",
		"ingredients": [
			{"raw_ingredient_name": "Acetaminophen", "content": "500", "unit": "mg", "is_main_active": true},
			{"raw_ingredient_name": "Starch"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, captured, 2)
	assert.True(t, captured[0].IsMainActive)
	assert.False(t, captured[1].IsMainActive)

	var view ProductView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, int64(9), view.ID)
	assert.True(t, view.IsCombination)
}

func TestProductHandlerCreateDuplicatePermit(t *testing.T) {
	svc := &fakeProductService{
		createFn: func(ctx context.Context, p *product.Product, ingredients []*product.ProductIngredient) error {
			return errors.New(errors.ErrCodeProductAlreadyExists, "permit number already registered")
		},
	}
	router := newProductTestRouter(svc, nil)

	body := `{"product_name": "Tylenol Tab. 500mg", "permit_number": "19850001"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProductHandlerGet(t *testing.T) {
	svc := &fakeProductService{
		getFn: func(ctx context.Context, id int64) (*appproduct.Detail, error) {
			p := product.New("Tylenol Tab. 500mg", "19850001")
			p.ID = id
			main := product.NewIngredient(id, "Acetaminophen")
			main.IsMainActive = true
			excipient := product.NewIngredient(id, "Starch")
			return &appproduct.Detail{
				Product:     p,
				Ingredients: []*product.ProductIngredient{main, excipient},
			}, nil
		},
	}
	router := newProductTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/products/3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var detail ProductDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, int64(3), detail.ID)
	assert.Equal(t, 1, detail.ActiveIngredientCount)
	require.Len(t, detail.Ingredients, 2)
	assert.Equal(t, "Acetaminophen", detail.Ingredients[0].RawIngredientName)
}

func TestProductHandlerGetNotFound(t *testing.T) {
	svc := &fakeProductService{
		getFn: func(ctx context.Context, id int64) (*appproduct.Detail, error) {
			return nil, errors.New(errors.ErrCodeProductNotFound, "product not found")
		},
	}
	router := newProductTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/products/404", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductHandlerUpdate(t *testing.T) {
	svc := &fakeProductService{
		updateFn: func(ctx context.Context, id int64, req appproduct.UpdateRequest) (*product.Product, error) {
			require.NotNil(t, req.Manufacturer)
			p := product.New("Tylenol Tab. 500mg", "19850001")
			p.ID = id
			p.Manufacturer = *req.Manufacturer
			return p, nil
		},
	}
	router := newProductTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPatch, "/products/3", strings.NewReader(`{"manufacturer": "JW Pharma"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var view ProductView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "JW Pharma", view.Manufacturer)
}

func TestProductHandlerListMainIngredientPreview(t *testing.T) {
	svc := &fakeProductService{
		listFn: func(ctx context.Context, filter product.Filter) ([]appproduct.Summary, int64, error) {
			p := product.New("Gelfos-M Susp.", "19910002")
			p.ID = 2
			return []appproduct.Summary{{
				Product: p,
				MainIngredients: []product.IngredientRef{
					{RawIngredientName: "Aluminium phosphate", Content: "1236", Unit: "mg"},
				},
			}}, 1, nil
		},
	}
	router := newProductTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []ProductListItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Results[0].IngredientCount)
	require.Len(t, resp.Results[0].MainIngredients, 1)
	assert.Equal(t, "Aluminium phosphate", resp.Results[0].MainIngredients[0].RawIngredientName)
}

func TestProductHandlerSearchEmptyQuery(t *testing.T) {
	svc := &fakeProductService{
		searchFn: func(ctx context.Context, q string, page, pageSize int) ([]*product.Product, int64, error) {
			return nil, 0, errors.New(errors.ErrCodeSearchQueryInvalid, "query is required")
		},
	}
	router := newProductTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/products/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductHandlerIngredientsUnknownProduct(t *testing.T) {
	svc := &fakeProductService{
		getFn: func(ctx context.Context, id int64) (*appproduct.Detail, error) {
			return nil, errors.New(errors.ErrCodeProductNotFound, "product not found")
		},
	}
	ingredients := &fakeProductIngredients{
		listFn: func(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error) {
			t.Fatal("ingredient listing should not be reached for an unknown product")
			return nil, 0, nil
		},
	}
	router := newProductTestRouter(svc, ingredients)

	req := httptest.NewRequest(http.MethodGet, "/products/404/ingredients", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductHandlerIngredientsFiltered(t *testing.T) {
	svc := &fakeProductService{
		getFn: func(ctx context.Context, id int64) (*appproduct.Detail, error) {
			p := product.New("Tylenol Tab. 500mg", "19850001")
			p.ID = id
			return &appproduct.Detail{Product: p}, nil
		},
	}
	var captured product.IngredientFilter
	ingredients := &fakeProductIngredients{
		listFn: func(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error) {
			captured = filter
			row := product.NewIngredient(3, "Acetaminophen")
			row.ID = 1
			row.IsMainActive = true
			return []*product.ProductIngredient{row}, 1, nil
		},
	}
	router := newProductTestRouter(svc, ingredients)

	req := httptest.NewRequest(http.MethodGet, "/products/3/ingredients?is_main_active=true&normalization_status=SUCCESS", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured.ProductID)
	assert.Equal(t, int64(3), *captured.ProductID)
	require.NotNil(t, captured.IsMainActive)
	assert.True(t, *captured.IsMainActive)
	require.NotNil(t, captured.NormalizationStatus)
	assert.Equal(t, product.NormalizationSuccess, *captured.NormalizationStatus)

	var resp struct {
		Results []IngredientView `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Acetaminophen", resp.Results[0].RawIngredientName)
}

func TestProductHandlerIngredientsStatusLowercase(t *testing.T) {
	svc := &fakeProductService{
		getFn: func(ctx context.Context, id int64) (*appproduct.Detail, error) {
			p := product.New("Tylenol Tab. 500mg", "19850001")
			p.ID = id
			return &appproduct.Detail{Product: p}, nil
		},
	}
	var captured product.IngredientFilter
	ingredients := &fakeProductIngredients{
		listFn: func(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error) {
			captured = filter
			return []*product.ProductIngredient{}, 0, nil
		},
	}
	router := newProductTestRouter(svc, ingredients)

	req := httptest.NewRequest(http.MethodGet, "/products/3/ingredients?normalization_status=pending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured.NormalizationStatus)
	assert.Equal(t, product.NormalizationPending, *captured.NormalizationStatus)
}
