package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaref/pharmaref/internal/domain/product"
	appErrors "github.com/pharmaref/pharmaref/pkg/errors"
)

const ingredientColumns = `id, product_id, compound_id, raw_ingredient_name,
	       content, unit, is_main_active, ingredient_type,
	       normalization_status, normalization_error, created_at, updated_at`

// IngredientRepository is the PostgreSQL implementation of the product
// domain's IngredientRepository interface.
type IngredientRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewIngredientRepository constructs a ready-to-use IngredientRepository.
func NewIngredientRepository(pool *pgxpool.Pool, logger Logger) *IngredientRepository {
	return &IngredientRepository{pool: pool, logger: logger}
}

// Save persists a new ingredient row and populates its generated id.
func (r *IngredientRepository) Save(ctx context.Context, i *product.ProductIngredient) error {
	r.logger.Debug("IngredientRepository.Save",
		"product_id", i.ProductID, "raw_name", i.RawIngredientName)

	err := r.pool.QueryRow(ctx, `
		INSERT INTO product_ingredients (
			product_id, compound_id, raw_ingredient_name, content, unit,
			is_main_active, ingredient_type, normalization_status,
			normalization_error, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id`,
		i.ProductID, i.CompoundID, i.RawIngredientName, i.Content, i.Unit,
		i.IsMainActive, i.IngredientType, i.NormalizationStatus,
		i.NormalizationError, i.CreatedAt, i.UpdatedAt,
	).Scan(&i.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeIngredientDuplicate,
				"ingredient with this name already exists on the product")
		}
		if isForeignKeyViolation(err) {
			return appErrors.New(appErrors.ErrCodeProductNotFound,
				"referenced product or compound does not exist")
		}
		r.logger.Error("IngredientRepository.Save", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to insert ingredient")
	}
	return nil
}

// BatchSave inserts multiple ingredient rows via the COPY protocol.
func (r *IngredientRepository) BatchSave(ctx context.Context, ingredients []*product.ProductIngredient) error {
	r.logger.Debug("IngredientRepository.BatchSave", "count", len(ingredients))

	if len(ingredients) == 0 {
		return nil
	}

	columns := []string{
		"product_id", "compound_id", "raw_ingredient_name", "content", "unit",
		"is_main_active", "ingredient_type", "normalization_status",
		"normalization_error", "created_at", "updated_at",
	}

	rows := make([][]interface{}, 0, len(ingredients))
	for _, i := range ingredients {
		rows = append(rows, []interface{}{
			i.ProductID, i.CompoundID, i.RawIngredientName, i.Content, i.Unit,
			i.IsMainActive, string(i.IngredientType), string(i.NormalizationStatus),
			i.NormalizationError, i.CreatedAt, i.UpdatedAt,
		})
	}

	copyCount, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"product_ingredients"},
		columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeIngredientDuplicate,
				"batch contains a duplicate ingredient name for a product")
		}
		r.logger.Error("IngredientRepository.BatchSave", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to batch insert ingredients")
	}

	r.logger.Debug("IngredientRepository.BatchSave: done", "inserted", copyCount)
	return nil
}

func (r *IngredientRepository) FindByID(ctx context.Context, id int64) (*product.ProductIngredient, error) {
	r.logger.Debug("IngredientRepository.FindByID", "id", id)

	return r.scanIngredient(r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM product_ingredients WHERE id = $1`, ingredientColumns), id))
}

func (r *IngredientRepository) Update(ctx context.Context, i *product.ProductIngredient) error {
	r.logger.Debug("IngredientRepository.Update", "id", i.ID)

	tag, err := r.pool.Exec(ctx, `
		UPDATE product_ingredients SET
			compound_id=$1, raw_ingredient_name=$2, content=$3, unit=$4,
			is_main_active=$5, ingredient_type=$6, normalization_status=$7,
			normalization_error=$8, updated_at=$9
		WHERE id=$10`,
		i.CompoundID, i.RawIngredientName, i.Content, i.Unit,
		i.IsMainActive, i.IngredientType, i.NormalizationStatus,
		i.NormalizationError, time.Now().UTC(),
		i.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeIngredientDuplicate,
				"ingredient with this name already exists on the product")
		}
		r.logger.Error("IngredientRepository.Update", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to update ingredient")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeIngredientNotFound, "ingredient not found")
	}
	return nil
}

func (r *IngredientRepository) Delete(ctx context.Context, id int64) error {
	r.logger.Debug("IngredientRepository.Delete", "id", id)

	tag, err := r.pool.Exec(ctx, `DELETE FROM product_ingredients WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("IngredientRepository.Delete", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to delete ingredient")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeIngredientNotFound, "ingredient not found")
	}
	return nil
}

// List returns one page of ingredient rows matching the filter plus the
// unpaged total.
func (r *IngredientRepository) List(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error) {
	r.logger.Debug("IngredientRepository.List", "filter", filter)

	var (
		conditions []string
		args       []interface{}
		argIdx     int
	)

	nextArg := func(v interface{}) string {
		argIdx++
		args = append(args, v)
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.ProductID != nil {
		ph := nextArg(*filter.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = %s", ph))
	}

	if filter.CompoundID != nil {
		ph := nextArg(*filter.CompoundID)
		conditions = append(conditions, fmt.Sprintf("compound_id = %s", ph))
	}

	if filter.IsMainActive != nil {
		ph := nextArg(*filter.IsMainActive)
		conditions = append(conditions, fmt.Sprintf("is_main_active = %s", ph))
	}

	if filter.NormalizationStatus != nil {
		ph := nextArg(string(*filter.NormalizationStatus))
		conditions = append(conditions, fmt.Sprintf("normalization_status = %s", ph))
	}

	if filter.IngredientType != nil {
		ph := nextArg(string(*filter.IngredientType))
		conditions = append(conditions, fmt.Sprintf("ingredient_type = %s", ph))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM product_ingredients %s", whereClause), args...,
	).Scan(&total); err != nil {
		r.logger.Error("IngredientRepository.List: count", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "count failed")
	}

	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)
	phLimit := nextArg(pageSize)
	phOffset := nextArg(offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM product_ingredients %s
		ORDER BY id
		LIMIT %s OFFSET %s`, ingredientColumns, whereClause, phLimit, phOffset), args...)
	if err != nil {
		r.logger.Error("IngredientRepository.List: query", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "list query failed")
	}
	defer rows.Close()

	ingredients, err := r.scanIngredients(rows)
	return ingredients, total, err
}

// ByProduct returns all ingredient rows of one product, main actives first.
func (r *IngredientRepository) ByProduct(ctx context.Context, productID int64, isMain *bool) ([]*product.ProductIngredient, error) {
	r.logger.Debug("IngredientRepository.ByProduct", "product_id", productID)

	query := fmt.Sprintf(`
		SELECT %s FROM product_ingredients
		WHERE product_id = $1
		ORDER BY is_main_active DESC, id`, ingredientColumns)
	args := []interface{}{productID}

	if isMain != nil {
		query = fmt.Sprintf(`
			SELECT %s FROM product_ingredients
			WHERE product_id = $1 AND is_main_active = $2
			ORDER BY is_main_active DESC, id`, ingredientColumns)
		args = append(args, *isMain)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("IngredientRepository.ByProduct", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "by-product query failed")
	}
	defer rows.Close()

	return r.scanIngredients(rows)
}

// FailedNormalizations groups FAILED rows by raw name, most frequent first.
// The report is not paginated: curation wants the full list of distinct names.
func (r *IngredientRepository) FailedNormalizations(ctx context.Context) ([]product.FailedNormalization, error) {
	r.logger.Debug("IngredientRepository.FailedNormalizations")

	rows, err := r.pool.Query(ctx, `
		SELECT raw_ingredient_name, COUNT(*) AS cnt
		FROM product_ingredients
		WHERE normalization_status = 'FAILED'
		GROUP BY raw_ingredient_name
		ORDER BY cnt DESC, raw_ingredient_name`)
	if err != nil {
		r.logger.Error("IngredientRepository.FailedNormalizations: query", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed-normalization query failed")
	}
	defer rows.Close()

	failures := []product.FailedNormalization{}
	for rows.Next() {
		var f product.FailedNormalization
		if err := rows.Scan(&f.RawIngredientName, &f.FailureCount); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan failure row")
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}

	return failures, nil
}

// MainIngredientPreviews returns up to previewLimit main-active rows per
// product, keyed by product id.
func (r *IngredientRepository) MainIngredientPreviews(ctx context.Context, productIDs []int64, previewLimit int) (map[int64][]product.IngredientRef, error) {
	r.logger.Debug("IngredientRepository.MainIngredientPreviews", "products", len(productIDs))

	previews := make(map[int64][]product.IngredientRef, len(productIDs))
	if len(productIDs) == 0 {
		return previews, nil
	}
	if previewLimit <= 0 {
		previewLimit = 3
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, compound_id, raw_ingredient_name, content, unit
		FROM (
			SELECT product_id, compound_id, raw_ingredient_name, content, unit,
			       ROW_NUMBER() OVER (PARTITION BY product_id ORDER BY id) AS rn
			FROM product_ingredients
			WHERE product_id = ANY($1) AND is_main_active
		) ranked
		WHERE rn <= $2
		ORDER BY product_id, rn`, productIDs, previewLimit)
	if err != nil {
		r.logger.Error("IngredientRepository.MainIngredientPreviews", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "preview query failed")
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var ref product.IngredientRef
		if err := rows.Scan(&productID, &ref.CompoundID, &ref.RawIngredientName, &ref.Content, &ref.Unit); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan preview row")
		}
		previews[productID] = append(previews[productID], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}

	return previews, nil
}

// CountMainActiveByCompoundIDs returns, per compound id, how many products
// carry the compound as a main active ingredient.
func (r *IngredientRepository) CountMainActiveByCompoundIDs(ctx context.Context, compoundIDs []int64) (map[int64]int64, error) {
	r.logger.Debug("IngredientRepository.CountMainActiveByCompoundIDs", "compounds", len(compoundIDs))

	counts := make(map[int64]int64, len(compoundIDs))
	if len(compoundIDs) == 0 {
		return counts, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT compound_id, COUNT(DISTINCT product_id)
		FROM product_ingredients
		WHERE compound_id = ANY($1) AND is_main_active
		GROUP BY compound_id`, compoundIDs)
	if err != nil {
		r.logger.Error("IngredientRepository.CountMainActiveByCompoundIDs", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "count query failed")
	}
	defer rows.Close()

	for rows.Next() {
		var compoundID, count int64
		if err := rows.Scan(&compoundID, &count); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan count row")
		}
		counts[compoundID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}

	return counts, nil
}

// ProductsForCompound returns the products containing the compound, ordered
// by product id.
func (r *IngredientRepository) ProductsForCompound(ctx context.Context, compoundID int64, isMain *bool) ([]product.ProductRef, error) {
	r.logger.Debug("IngredientRepository.ProductsForCompound", "compound_id", compoundID)

	var (
		conditions = []string{"pi.compound_id = $1"}
		args       = []interface{}{compoundID}
	)
	if isMain != nil {
		args = append(args, *isMain)
		conditions = append(conditions, fmt.Sprintf("pi.is_main_active = $%d", len(args)))
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT p.id, p.product_name, p.permit_number, p.manufacturer,
		       pi.is_main_active, pi.content, pi.unit
		FROM product_ingredients pi
		JOIN products p ON p.id = pi.product_id
		WHERE %s
		ORDER BY p.id`, strings.Join(conditions, " AND ")), args...)
	if err != nil {
		r.logger.Error("IngredientRepository.ProductsForCompound", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "products-for-compound query failed")
	}
	defer rows.Close()

	refs := []product.ProductRef{}
	for rows.Next() {
		var ref product.ProductRef
		if err := rows.Scan(&ref.ProductID, &ref.ProductName, &ref.PermitNumber,
			&ref.Manufacturer, &ref.IsMainActive, &ref.Content, &ref.Unit); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan product ref")
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}

	return refs, nil
}

func (r *IngredientRepository) scanIngredient(row pgx.Row) (*product.ProductIngredient, error) {
	var i product.ProductIngredient
	err := row.Scan(
		&i.ID, &i.ProductID, &i.CompoundID, &i.RawIngredientName,
		&i.Content, &i.Unit, &i.IsMainActive, &i.IngredientType,
		&i.NormalizationStatus, &i.NormalizationError, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.New(appErrors.ErrCodeIngredientNotFound, "ingredient not found")
		}
		r.logger.Error("scanIngredient", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan ingredient")
	}
	return &i, nil
}

func (r *IngredientRepository) scanIngredients(rows pgx.Rows) ([]*product.ProductIngredient, error) {
	var ingredients []*product.ProductIngredient
	for rows.Next() {
		var i product.ProductIngredient
		err := rows.Scan(
			&i.ID, &i.ProductID, &i.CompoundID, &i.RawIngredientName,
			&i.Content, &i.Unit, &i.IsMainActive, &i.IngredientType,
			&i.NormalizationStatus, &i.NormalizationError, &i.CreatedAt, &i.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("scanIngredients", "error", err)
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan ingredient row")
		}
		ingredients = append(ingredients, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}
	return ingredients, nil
}
