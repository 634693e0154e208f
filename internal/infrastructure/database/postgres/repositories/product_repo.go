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

const productColumns = `id, product_name, permit_number, manufacturer,
	       is_combination, source, permit_date, created_at, updated_at`

// ProductRepository is the PostgreSQL implementation of the product domain's
// Repository interface.
type ProductRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewProductRepository constructs a ready-to-use ProductRepository.
func NewProductRepository(pool *pgxpool.Pool, logger Logger) *ProductRepository {
	return &ProductRepository{pool: pool, logger: logger}
}

// Save persists a new product and populates its generated id.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	r.logger.Debug("ProductRepository.Save", "permit_number", p.PermitNumber)

	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (
			product_name, permit_number, manufacturer,
			is_combination, source, permit_date, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		p.ProductName, p.PermitNumber, p.Manufacturer,
		p.IsCombination, p.Source, p.PermitDate, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeProductAlreadyExists,
				"product with this permit_number already exists")
		}
		r.logger.Error("ProductRepository.Save", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to insert product")
	}
	return nil
}

// BatchSave inserts multiple products via the COPY protocol.  Used by the
// MFDS ingestion path.
func (r *ProductRepository) BatchSave(ctx context.Context, products []*product.Product) error {
	r.logger.Debug("ProductRepository.BatchSave", "count", len(products))

	if len(products) == 0 {
		return nil
	}

	columns := []string{
		"product_name", "permit_number", "manufacturer",
		"is_combination", "source", "permit_date", "created_at", "updated_at",
	}

	rows := make([][]interface{}, 0, len(products))
	for _, p := range products {
		rows = append(rows, []interface{}{
			p.ProductName, p.PermitNumber, p.Manufacturer,
			p.IsCombination, p.Source, p.PermitDate, p.CreatedAt, p.UpdatedAt,
		})
	}

	copyCount, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"products"},
		columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeProductAlreadyExists,
				"batch contains a duplicate permit_number")
		}
		r.logger.Error("ProductRepository.BatchSave", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to batch insert products")
	}

	r.logger.Debug("ProductRepository.BatchSave: done", "inserted", copyCount)
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*product.Product, error) {
	r.logger.Debug("ProductRepository.FindByID", "id", id)

	return r.scanProduct(r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM products WHERE id = $1`, productColumns), id))
}

func (r *ProductRepository) FindByPermitNumber(ctx context.Context, permitNumber string) (*product.Product, error) {
	r.logger.Debug("ProductRepository.FindByPermitNumber", "permit_number", permitNumber)

	return r.scanProduct(r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM products WHERE permit_number = $1`, productColumns), permitNumber))
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	r.logger.Debug("ProductRepository.Update", "id", p.ID)

	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET
			product_name=$1, permit_number=$2, manufacturer=$3,
			is_combination=$4, source=$5, permit_date=$6, updated_at=$7
		WHERE id=$8`,
		p.ProductName, p.PermitNumber, p.Manufacturer,
		p.IsCombination, p.Source, p.PermitDate, time.Now().UTC(),
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeProductAlreadyExists,
				"product with this permit_number already exists")
		}
		r.logger.Error("ProductRepository.Update", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to update product")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeProductNotFound, "product not found")
	}
	return nil
}

// Delete removes the product.  Its ingredient rows go with it via the
// schema's cascade.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	r.logger.Debug("ProductRepository.Delete", "id", id)

	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("ProductRepository.Delete", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to delete product")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeProductNotFound, "product not found")
	}
	return nil
}

// List returns one page of products matching the filter plus the unpaged
// total.
func (r *ProductRepository) List(ctx context.Context, filter product.Filter) ([]*product.Product, int64, error) {
	r.logger.Debug("ProductRepository.List", "filter", filter)

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

	if filter.IsCombination != nil {
		ph := nextArg(*filter.IsCombination)
		conditions = append(conditions, fmt.Sprintf("is_combination = %s", ph))
	}

	if filter.Manufacturer != "" {
		ph := nextArg("%" + filter.Manufacturer + "%")
		conditions = append(conditions, fmt.Sprintf("manufacturer ILIKE %s", ph))
	}

	if filter.Source != "" {
		ph := nextArg(filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = %s", ph))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause), args...,
	).Scan(&total); err != nil {
		r.logger.Error("ProductRepository.List: count", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "count failed")
	}

	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)
	phLimit := nextArg(pageSize)
	phOffset := nextArg(offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM products %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s OFFSET %s`, productColumns, whereClause, phLimit, phOffset), args...)
	if err != nil {
		r.logger.Error("ProductRepository.List: query", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "list query failed")
	}
	defer rows.Close()

	products, err := r.scanProducts(rows)
	return products, total, err
}

// Statistics computes the aggregate snapshot plus the top-10 manufacturer
// ranking.
func (r *ProductRepository) Statistics(ctx context.Context) (*product.Statistics, error) {
	r.logger.Debug("ProductRepository.Statistics")

	var s product.Statistics
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_combination),
		       COUNT(*) FILTER (WHERE NOT is_combination)
		FROM products`).Scan(&s.Total, &s.Combination, &s.SingleIngredient)
	if err != nil {
		r.logger.Error("ProductRepository.Statistics: counts", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "statistics query failed")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT manufacturer, COUNT(*) AS cnt
		FROM products
		WHERE manufacturer <> ''
		GROUP BY manufacturer
		ORDER BY cnt DESC, manufacturer
		LIMIT 10`)
	if err != nil {
		r.logger.Error("ProductRepository.Statistics: manufacturers", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "manufacturer ranking failed")
	}
	defer rows.Close()

	s.TopManufacturers = []product.ManufacturerCount{}
	for rows.Next() {
		var mc product.ManufacturerCount
		if err := rows.Scan(&mc.Manufacturer, &mc.Count); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan manufacturer row")
		}
		s.TopManufacturers = append(s.TopManufacturers, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}

	return &s, nil
}

func (r *ProductRepository) SearchByName(ctx context.Context, q string, page, pageSize int) ([]*product.Product, int64, error) {
	r.logger.Debug("ProductRepository.SearchByName", "q", q)

	pattern := "%" + q + "%"

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE product_name ILIKE $1`, pattern,
	).Scan(&total); err != nil {
		r.logger.Error("ProductRepository.SearchByName: count", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "count failed")
	}

	_, size, offset := normalizePage(page, pageSize)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM products
		WHERE product_name ILIKE $1
		ORDER BY id
		LIMIT $2 OFFSET $3`, productColumns), pattern, size, offset)
	if err != nil {
		r.logger.Error("ProductRepository.SearchByName: query", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "search query failed")
	}
	defer rows.Close()

	products, err := r.scanProducts(rows)
	return products, total, err
}

func (r *ProductRepository) scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.ProductName, &p.PermitNumber, &p.Manufacturer,
		&p.IsCombination, &p.Source, &p.PermitDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.New(appErrors.ErrCodeProductNotFound, "product not found")
		}
		r.logger.Error("scanProduct", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan product")
	}
	return &p, nil
}

func (r *ProductRepository) scanProducts(rows pgx.Rows) ([]*product.Product, error) {
	var products []*product.Product
	for rows.Next() {
		var p product.Product
		err := rows.Scan(
			&p.ID, &p.ProductName, &p.PermitNumber, &p.Manufacturer,
			&p.IsCombination, &p.Source, &p.PermitDate, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("scanProducts", "error", err)
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan product row")
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}
	return products, nil
}
