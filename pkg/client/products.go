package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Product is a single drug product record.
type Product struct {
	ID            int64  `json:"id"`
	ProductName   string `json:"product_name"`
	PermitNumber  string `json:"permit_number"`
	Manufacturer  string `json:"manufacturer"`
	IsCombination bool   `json:"is_combination"`
	Source        string `json:"source"`
	PermitDate    string `json:"permit_date"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// IngredientRef is the compact ingredient preview in product listings.
type IngredientRef struct {
	CompoundID        *int64 `json:"compound_id"`
	RawIngredientName string `json:"raw_ingredient_name"`
	Content           string `json:"content"`
	Unit              string `json:"unit"`
}

// ProductSummary is one row of the product listing.
type ProductSummary struct {
	ID              int64           `json:"id"`
	ProductName     string          `json:"product_name"`
	PermitNumber    string          `json:"permit_number"`
	Manufacturer    string          `json:"manufacturer"`
	IsCombination   bool            `json:"is_combination"`
	IngredientCount int             `json:"ingredient_count"`
	MainIngredients []IngredientRef `json:"main_ingredients"`
	CreatedAt       string          `json:"created_at"`
}

// Ingredient is a full product ingredient row.
type Ingredient struct {
	ID                  int64  `json:"id"`
	ProductID           int64  `json:"product_id"`
	CompoundID          *int64 `json:"compound_id"`
	RawIngredientName   string `json:"raw_ingredient_name"`
	Content             string `json:"content"`
	Unit                string `json:"unit"`
	IsMainActive        bool   `json:"is_main_active"`
	IngredientType      string `json:"ingredient_type"`
	NormalizationStatus string `json:"normalization_status"`
	NormalizationError  string `json:"normalization_error,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// ProductDetail is the full product view.
type ProductDetail struct {
	Product
	ActiveIngredientCount int          `json:"active_ingredient_count"`
	Ingredients           []Ingredient `json:"ingredients"`
}

// CreateIngredientRequest is one ingredient row in a product create body.
type CreateIngredientRequest struct {
	RawIngredientName string `json:"raw_ingredient_name"`
	CompoundID        *int64 `json:"compound_id,omitempty"`
	Content           string `json:"content,omitempty"`
	Unit              string `json:"unit,omitempty"`
	IsMainActive      *bool  `json:"is_main_active,omitempty"`
	IngredientType    string `json:"ingredient_type,omitempty"`
}

// CreateProductRequest is the body for Create.
type CreateProductRequest struct {
	ProductName  string                    `json:"product_name"`
	PermitNumber string                    `json:"permit_number"`
	Manufacturer string                    `json:"manufacturer,omitempty"`
	Source       string                    `json:"source,omitempty"`
	PermitDate   string                    `json:"permit_date,omitempty"`
	Ingredients  []CreateIngredientRequest `json:"ingredients,omitempty"`
}

// UpdateProductRequest is the partial-update body.
type UpdateProductRequest struct {
	ProductName   *string `json:"product_name,omitempty"`
	Manufacturer  *string `json:"manufacturer,omitempty"`
	IsCombination *bool   `json:"is_combination,omitempty"`
	Source        *string `json:"source,omitempty"`
	PermitDate    *string `json:"permit_date,omitempty"`
}

// ProductListOptions filters the product listing.
type ProductListOptions struct {
	IsCombination *bool
	Manufacturer  string
	Source        string
	Page          int
	PageSize      int
}

// IngredientListOptions filters a product ingredient listing.
type IngredientListOptions struct {
	IsMainActive        *bool
	NormalizationStatus string
	Page                int
	PageSize            int
}

// ProductStatistics is the aggregate product report.
type ProductStatistics struct {
	Total            int64 `json:"total_products"`
	Combination      int64 `json:"combination_products"`
	SingleIngredient int64 `json:"single_ingredient_products"`
	TopManufacturers []struct {
		Manufacturer string `json:"manufacturer"`
		Count        int64  `json:"count"`
	} `json:"top_manufacturers"`
}

// ProductsClient provides access to product endpoints.
type ProductsClient struct {
	client *Client
}

// List retrieves a filtered page of products.
// GET /api/v1/products
func (pc *ProductsClient) List(ctx context.Context, opts ProductListOptions) (*ListEnvelope[ProductSummary], error) {
	page, pageSize := clampPagination(opts.Page, opts.PageSize)

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if opts.IsCombination != nil {
		q.Set("is_combination", strconv.FormatBool(*opts.IsCombination))
	}
	if opts.Manufacturer != "" {
		q.Set("manufacturer", opts.Manufacturer)
	}
	if opts.Source != "" {
		q.Set("source", opts.Source)
	}

	var resp ListEnvelope[ProductSummary]
	if err := pc.client.get(ctx, "/api/v1/products?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create registers a new product together with its ingredient rows.
// POST /api/v1/products
func (pc *ProductsClient) Create(ctx context.Context, req *CreateProductRequest) (*Product, error) {
	if req == nil || req.ProductName == "" {
		return nil, invalidArg("product_name is required")
	}
	if req.PermitNumber == "" {
		return nil, invalidArg("permit_number is required")
	}
	var resp Product
	if err := pc.client.post(ctx, "/api/v1/products", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get retrieves a product with all its ingredients.
// GET /api/v1/products/{id}
func (pc *ProductsClient) Get(ctx context.Context, id int64) (*ProductDetail, error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}
	var resp ProductDetail
	if err := pc.client.get(ctx, fmt.Sprintf("/api/v1/products/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update applies a partial update to a product.
// PATCH /api/v1/products/{id}
func (pc *ProductsClient) Update(ctx context.Context, id int64, req *UpdateProductRequest) (*Product, error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}
	if req == nil {
		return nil, invalidArg("update request is required")
	}
	var resp Product
	if err := pc.client.patch(ctx, fmt.Sprintf("/api/v1/products/%d", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a product and its ingredient rows.
// DELETE /api/v1/products/{id}
func (pc *ProductsClient) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalidArg("id must be a positive integer")
	}
	return pc.client.delete(ctx, fmt.Sprintf("/api/v1/products/%d", id))
}

// Statistics retrieves the aggregate product report.
// GET /api/v1/products/statistics
func (pc *ProductsClient) Statistics(ctx context.Context) (*ProductStatistics, error) {
	var resp ProductStatistics
	if err := pc.client.get(ctx, "/api/v1/products/statistics", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search looks products up by name fragment.
// GET /api/v1/products/search?q={q}
func (pc *ProductsClient) Search(ctx context.Context, query string, page, pageSize int) (*ListEnvelope[Product], error) {
	if query == "" {
		return nil, invalidArg("query is required")
	}
	page, pageSize = clampPagination(page, pageSize)

	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var resp ListEnvelope[Product]
	if err := pc.client.get(ctx, "/api/v1/products/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ingredients lists the ingredient rows of a product.
// GET /api/v1/products/{id}/ingredients
func (pc *ProductsClient) Ingredients(ctx context.Context, id int64, opts IngredientListOptions) (*ListEnvelope[Ingredient], error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}
	page, pageSize := clampPagination(opts.Page, opts.PageSize)

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if opts.IsMainActive != nil {
		q.Set("is_main_active", strconv.FormatBool(*opts.IsMainActive))
	}
	if opts.NormalizationStatus != "" {
		q.Set("normalization_status", opts.NormalizationStatus)
	}

	var resp ListEnvelope[Ingredient]
	if err := pc.client.get(ctx, fmt.Sprintf("/api/v1/products/%d/ingredients?%s", id, q.Encode()), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
