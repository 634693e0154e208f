package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	appproduct "github.com/pharmaref/pharmaref/internal/application/product"
	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

// ProductService is the application contract the handler needs.
type ProductService interface {
	Create(ctx context.Context, p *product.Product, ingredients []*product.ProductIngredient) error
	Get(ctx context.Context, id int64) (*appproduct.Detail, error)
	Update(ctx context.Context, id int64, req appproduct.UpdateRequest) (*product.Product, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter product.Filter) ([]appproduct.Summary, int64, error)
	Search(ctx context.Context, q string, page, pageSize int) ([]*product.Product, int64, error)
	Statistics(ctx context.Context) (*product.Statistics, error)
}

// ProductIngredients is the narrow ingredient contract the product handler
// needs for the nested /products/{id}/ingredients listing.
type ProductIngredients interface {
	List(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error)
}

// ProductHandler handles product resource requests.
type ProductHandler struct {
	svc         ProductService
	ingredients ProductIngredients
	logger      logging.Logger
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(svc ProductService, ingredients ProductIngredients, logger logging.Logger) *ProductHandler {
	return &ProductHandler{svc: svc, ingredients: ingredients, logger: logger}
}

// CreateIngredientRequest is one ingredient row in the create body.
type CreateIngredientRequest struct {
	RawIngredientName string `json:"raw_ingredient_name"`
	CompoundID        *int64 `json:"compound_id,omitempty"`
	Content           string `json:"content,omitempty"`
	Unit              string `json:"unit,omitempty"`
	IsMainActive      *bool  `json:"is_main_active,omitempty"`
	IngredientType    string `json:"ingredient_type,omitempty"`
}

// CreateProductRequest is the POST /products body.
type CreateProductRequest struct {
	ProductName  string                    `json:"product_name"`
	PermitNumber string                    `json:"permit_number"`
	Manufacturer string                    `json:"manufacturer,omitempty"`
	Source       string                    `json:"source,omitempty"`
	PermitDate   *time.Time                `json:"permit_date,omitempty"`
	Ingredients  []CreateIngredientRequest `json:"ingredients,omitempty"`
}

// UpdateProductRequest is the PUT/PATCH /products/{id} body.
type UpdateProductRequest struct {
	ProductName   *string    `json:"product_name,omitempty"`
	Manufacturer  *string    `json:"manufacturer,omitempty"`
	IsCombination *bool      `json:"is_combination,omitempty"`
	Source        *string    `json:"source,omitempty"`
	PermitDate    *time.Time `json:"permit_date,omitempty"`
}

// ProductView is the scalar product representation returned by create,
// update and search.
type ProductView struct {
	ID            int64      `json:"id"`
	ProductName   string     `json:"product_name"`
	PermitNumber  string     `json:"permit_number"`
	Manufacturer  string     `json:"manufacturer"`
	IsCombination bool       `json:"is_combination"`
	Source        string     `json:"source"`
	PermitDate    *time.Time `json:"permit_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newProductView(p *product.Product) ProductView {
	return ProductView{
		ID:            p.ID,
		ProductName:   p.ProductName,
		PermitNumber:  p.PermitNumber,
		Manufacturer:  p.Manufacturer,
		IsCombination: p.IsCombination,
		Source:        p.Source,
		PermitDate:    p.PermitDate,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// IngredientView is the ingredient row representation shared by the product
// detail and the ingredient endpoints.
type IngredientView struct {
	ID                  int64     `json:"id"`
	ProductID           int64     `json:"product_id"`
	CompoundID          *int64    `json:"compound_id"`
	RawIngredientName   string    `json:"raw_ingredient_name"`
	Content             string    `json:"content"`
	Unit                string    `json:"unit"`
	IsMainActive        bool      `json:"is_main_active"`
	IngredientType      string    `json:"ingredient_type"`
	NormalizationStatus string    `json:"normalization_status"`
	NormalizationError  string    `json:"normalization_error,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func newIngredientView(i *product.ProductIngredient) IngredientView {
	return IngredientView{
		ID:                  i.ID,
		ProductID:           i.ProductID,
		CompoundID:          i.CompoundID,
		RawIngredientName:   i.RawIngredientName,
		Content:             i.Content,
		Unit:                i.Unit,
		IsMainActive:        i.IsMainActive,
		IngredientType:      string(i.IngredientType),
		NormalizationStatus: string(i.NormalizationStatus),
		NormalizationError:  i.NormalizationError,
		CreatedAt:           i.CreatedAt,
		UpdatedAt:           i.UpdatedAt,
	}
}

func newIngredientViews(rows []*product.ProductIngredient) []IngredientView {
	views := make([]IngredientView, len(rows))
	for i, row := range rows {
		views[i] = newIngredientView(row)
	}
	return views
}

// ProductListItem is one row of the product listing.
type ProductListItem struct {
	ID              int64                   `json:"id"`
	ProductName     string                  `json:"product_name"`
	PermitNumber    string                  `json:"permit_number"`
	Manufacturer    string                  `json:"manufacturer"`
	IsCombination   bool                    `json:"is_combination"`
	IngredientCount int                     `json:"ingredient_count"`
	MainIngredients []product.IngredientRef `json:"main_ingredients"`
	CreatedAt       time.Time               `json:"created_at"`
}

// ProductDetail is the full product view.
type ProductDetail struct {
	ID                    int64            `json:"id"`
	ProductName           string           `json:"product_name"`
	PermitNumber          string           `json:"permit_number"`
	Manufacturer          string           `json:"manufacturer"`
	IsCombination         bool             `json:"is_combination"`
	Source                string           `json:"source"`
	PermitDate            *time.Time       `json:"permit_date"`
	ActiveIngredientCount int              `json:"active_ingredient_count"`
	Ingredients           []IngredientView `json:"ingredients"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func newProductDetail(d *appproduct.Detail) ProductDetail {
	actives := 0
	for _, i := range d.Ingredients {
		if i.IsMainActive {
			actives++
		}
	}
	return ProductDetail{
		ID:                    d.ID,
		ProductName:           d.ProductName,
		PermitNumber:          d.PermitNumber,
		Manufacturer:          d.Manufacturer,
		IsCombination:         d.IsCombination,
		Source:                d.Source,
		PermitDate:            d.PermitDate,
		ActiveIngredientCount: actives,
		Ingredients:           newIngredientViews(d.Ingredients),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	p := product.New(req.ProductName, req.PermitNumber)
	p.Manufacturer = req.Manufacturer
	p.PermitDate = req.PermitDate
	if req.Source != "" {
		p.Source = req.Source
	}
	p.IsCombination = len(req.Ingredients) > 1

	ingredients := make([]*product.ProductIngredient, len(req.Ingredients))
	for i, ir := range req.Ingredients {
		row := product.NewIngredient(0, ir.RawIngredientName)
		row.CompoundID = ir.CompoundID
		row.Content = ir.Content
		row.Unit = ir.Unit
		if ir.IsMainActive != nil {
			row.IsMainActive = *ir.IsMainActive
		}
		if ir.IngredientType != "" {
			row.IngredientType = product.IngredientType(ir.IngredientType)
		}
		ingredients[i] = row
	}

	if err := h.svc.Create(r.Context(), p, ingredients); err != nil {
		h.logger.Error("Failed to create product", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProductView(p))
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductDetail(detail))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	p, err := h.svc.Update(r.Context(), id, appproduct.UpdateRequest{
		ProductName:   req.ProductName,
		Manufacturer:  req.Manufacturer,
		IsCombination: req.IsCombination,
		Source:        req.Source,
		PermitDate:    req.PermitDate,
	})
	if err != nil {
		h.logger.Error("Failed to update product", logging.Int64("id", id), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProductView(p))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete product", logging.Int64("id", id), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := product.Filter{
		IsCombination: parseBoolParam(r, "is_combination"),
		Manufacturer:  r.URL.Query().Get("manufacturer"),
		Source:        r.URL.Query().Get("source"),
		Page:          page,
		PageSize:      pageSize,
	}

	summaries, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list products", logging.Err(err))
		writeAppError(w, err)
		return
	}

	items := make([]ProductListItem, len(summaries))
	for i, s := range summaries {
		mains := s.MainIngredients
		if mains == nil {
			mains = []product.IngredientRef{}
		}
		items[i] = ProductListItem{
			ID:              s.ID,
			ProductName:     s.ProductName,
			PermitNumber:    s.PermitNumber,
			Manufacturer:    s.Manufacturer,
			IsCombination:   s.IsCombination,
			IngredientCount: len(mains),
			MainIngredients: mains,
			CreatedAt:       s.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: total, Page: page, PageSize: pageSize, Results: items})
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	page, pageSize := parsePagination(r)

	results, total, err := h.svc.Search(r.Context(), q, page, pageSize)
	if err != nil {
		writeAppError(w, err)
		return
	}

	views := make([]ProductView, len(results))
	for i, p := range results {
		views[i] = newProductView(p)
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: total, Page: page, PageSize: pageSize, Results: views})
}

func (h *ProductHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to load product statistics", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Ingredients handles GET /products/{id}/ingredients.
func (h *ProductHandler) Ingredients(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "productID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Existence check so unknown products yield 404 instead of an empty list.
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	page, pageSize := parsePagination(r)
	filter := product.IngredientFilter{
		ProductID:    &id,
		IsMainActive: parseBoolParam(r, "is_main_active"),
		Page:         page,
		PageSize:     pageSize,
	}
	if v := r.URL.Query().Get("normalization_status"); v != "" {
		status := product.NormalizationStatus(strings.ToUpper(v))
		filter.NormalizationStatus = &status
	}

	rows, total, err := h.ingredients.List(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: total, Page: page, PageSize: pageSize, Results: newIngredientViews(rows)})
}
