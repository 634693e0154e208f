package product

import "context"

// Filter carries the optional product list filters.  Nil pointer means
// "not filtered".
type Filter struct {
	IsCombination *bool
	Manufacturer  string
	Source        string
	Page          int
	PageSize      int
}

// IngredientFilter carries the optional ingredient list filters.
type IngredientFilter struct {
	ProductID           *int64
	CompoundID          *int64
	IsMainActive        *bool
	NormalizationStatus *NormalizationStatus
	IngredientType      *IngredientType
	Page                int
	PageSize            int
}

// ManufacturerCount is one row of the top-manufacturer ranking.
type ManufacturerCount struct {
	Manufacturer string `json:"manufacturer"`
	Count        int64  `json:"count"`
}

// Statistics is the aggregate snapshot served by the product statistics
// endpoint.
type Statistics struct {
	Total            int64               `json:"total_products"`
	Combination      int64               `json:"combination_products"`
	SingleIngredient int64               `json:"single_ingredient_products"`
	TopManufacturers []ManufacturerCount `json:"top_manufacturers"`
}

// FailedNormalization is one distinct raw ingredient name that the
// normalization pipeline could not resolve, with its occurrence count.
type FailedNormalization struct {
	RawIngredientName string `json:"raw_ingredient_name"`
	FailureCount      int64  `json:"failure_count"`
}

// IngredientRef is the compact ingredient view embedded in product listings.
type IngredientRef struct {
	CompoundID        *int64 `json:"compound_id"`
	RawIngredientName string `json:"raw_ingredient_name"`
	Content           string `json:"content"`
	Unit              string `json:"unit"`
}

// ProductRef is the compact product view returned when listing the products
// that contain a given compound.
type ProductRef struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	PermitNumber string `json:"permit_number"`
	Manufacturer string `json:"manufacturer"`
	IsMainActive bool   `json:"is_main_active"`
	Content      string `json:"content"`
	Unit         string `json:"unit"`
}

// Repository is the persistence contract for products.  Deleting a product
// cascades to its ingredient rows.
type Repository interface {
	Save(ctx context.Context, p *Product) error
	BatchSave(ctx context.Context, products []*Product) error
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindByPermitNumber(ctx context.Context, permitNumber string) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, filter Filter) ([]*Product, int64, error)
	Statistics(ctx context.Context) (*Statistics, error)

	// SearchByName returns products whose name contains q
	// case-insensitively, ordered by id.
	SearchByName(ctx context.Context, q string, page, pageSize int) ([]*Product, int64, error)
}

// IngredientRepository is the persistence contract for product ingredient
// rows.
type IngredientRepository interface {
	Save(ctx context.Context, i *ProductIngredient) error
	BatchSave(ctx context.Context, ingredients []*ProductIngredient) error
	FindByID(ctx context.Context, id int64) (*ProductIngredient, error)
	Update(ctx context.Context, i *ProductIngredient) error
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, filter IngredientFilter) ([]*ProductIngredient, int64, error)

	// ByProduct returns all ingredient rows of one product, main actives
	// first, then by id.
	ByProduct(ctx context.Context, productID int64, isMain *bool) ([]*ProductIngredient, error)

	// FailedNormalizations groups FAILED rows by raw ingredient name,
	// most frequent first.  The full list of distinct names is returned.
	FailedNormalizations(ctx context.Context) ([]FailedNormalization, error)

	// MainIngredientPreviews returns up to previewLimit main-active rows
	// per product, keyed by product id, for embedding in listings.
	MainIngredientPreviews(ctx context.Context, productIDs []int64, previewLimit int) (map[int64][]IngredientRef, error)

	// CountMainActiveByCompoundIDs returns, per compound id, the number of
	// products that carry the compound as a main active ingredient.
	CountMainActiveByCompoundIDs(ctx context.Context, compoundIDs []int64) (map[int64]int64, error)

	// ProductsForCompound returns the products containing the compound,
	// optionally restricted to main-active rows, ordered by product id.
	ProductsForCompound(ctx context.Context, compoundID int64, isMain *bool) ([]ProductRef, error)
}
