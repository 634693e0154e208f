package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaref/pharmaref/internal/domain/compound"
	appErrors "github.com/pharmaref/pharmaref/pkg/errors"
)

const compoundColumns = `id, standard_name, iupac_name, cid, molecular_formula,
	       molecular_weight, smiles, inchi, inchi_key, fingerprint_morgan,
	       fingerprint_type, is_valid, validation_error, pubchem_last_fetched,
	       created_at, updated_at`

// CompoundRepository is the PostgreSQL implementation of the compound
// domain's Repository interface.
type CompoundRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewCompoundRepository constructs a ready-to-use CompoundRepository.
func NewCompoundRepository(pool *pgxpool.Pool, logger Logger) *CompoundRepository {
	return &CompoundRepository{pool: pool, logger: logger}
}

// Save persists a new compound and populates its generated id.
func (r *CompoundRepository) Save(ctx context.Context, c *compound.Compound) error {
	r.logger.Debug("CompoundRepository.Save", "standard_name", c.StandardName)

	err := r.pool.QueryRow(ctx, `
		INSERT INTO compounds (
			standard_name, iupac_name, cid, molecular_formula,
			molecular_weight, smiles, inchi, inchi_key, fingerprint_morgan,
			fingerprint_type, is_valid, validation_error, pubchem_last_fetched,
			created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9,
			$10,$11,$12,$13,
			$14,$15
		) RETURNING id`,
		c.StandardName, c.IUPACName, c.CID, c.MolecularFormula,
		c.MolecularWeight, c.SMILES, c.InChI, c.InChIKey, c.FingerprintMorgan,
		c.FingerprintType, c.IsValid, c.ValidationError, c.PubChemLastFetched,
		c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeCompoundAlreadyExists,
				"compound with this standard_name or cid already exists")
		}
		r.logger.Error("CompoundRepository.Save", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to insert compound")
	}
	return nil
}

// BatchSave inserts multiple compounds in a single round-trip using the
// PostgreSQL COPY protocol.  Generated ids are not reported back.
func (r *CompoundRepository) BatchSave(ctx context.Context, compounds []*compound.Compound) error {
	r.logger.Debug("CompoundRepository.BatchSave", "count", len(compounds))

	if len(compounds) == 0 {
		return nil
	}

	columns := []string{
		"standard_name", "iupac_name", "cid", "molecular_formula",
		"molecular_weight", "smiles", "inchi", "inchi_key", "fingerprint_morgan",
		"fingerprint_type", "is_valid", "validation_error", "pubchem_last_fetched",
		"created_at", "updated_at",
	}

	rows := make([][]interface{}, 0, len(compounds))
	for _, c := range compounds {
		rows = append(rows, []interface{}{
			c.StandardName, c.IUPACName, c.CID, c.MolecularFormula,
			c.MolecularWeight, c.SMILES, c.InChI, c.InChIKey, c.FingerprintMorgan,
			c.FingerprintType, c.IsValid, c.ValidationError, c.PubChemLastFetched,
			c.CreatedAt, c.UpdatedAt,
		})
	}

	copyCount, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"compounds"},
		columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeCompoundAlreadyExists,
				"batch contains a duplicate standard_name or cid")
		}
		r.logger.Error("CompoundRepository.BatchSave", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to batch insert compounds")
	}

	r.logger.Debug("CompoundRepository.BatchSave: done", "inserted", copyCount)
	return nil
}

func (r *CompoundRepository) FindByID(ctx context.Context, id int64) (*compound.Compound, error) {
	r.logger.Debug("CompoundRepository.FindByID", "id", id)

	return r.scanCompound(r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM compounds WHERE id = $1`, compoundColumns), id))
}

// Update rewrites every mutable column of the compound.
func (r *CompoundRepository) Update(ctx context.Context, c *compound.Compound) error {
	r.logger.Debug("CompoundRepository.Update", "id", c.ID)

	tag, err := r.pool.Exec(ctx, `
		UPDATE compounds SET
			standard_name=$1, iupac_name=$2, cid=$3, molecular_formula=$4,
			molecular_weight=$5, smiles=$6, inchi=$7, inchi_key=$8,
			fingerprint_morgan=$9, fingerprint_type=$10, is_valid=$11,
			validation_error=$12, pubchem_last_fetched=$13, updated_at=$14
		WHERE id=$15`,
		c.StandardName, c.IUPACName, c.CID, c.MolecularFormula,
		c.MolecularWeight, c.SMILES, c.InChI, c.InChIKey,
		c.FingerprintMorgan, c.FingerprintType, c.IsValid,
		c.ValidationError, c.PubChemLastFetched, time.Now().UTC(),
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeCompoundAlreadyExists,
				"compound with this standard_name or cid already exists")
		}
		r.logger.Error("CompoundRepository.Update", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to update compound")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeCompoundNotFound, "compound not found")
	}
	return nil
}

// Delete removes the compound.  Ingredient links are set to NULL and
// similarity rows are removed by the schema's referential actions.
func (r *CompoundRepository) Delete(ctx context.Context, id int64) error {
	r.logger.Debug("CompoundRepository.Delete", "id", id)

	tag, err := r.pool.Exec(ctx, `DELETE FROM compounds WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("CompoundRepository.Delete", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to delete compound")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeCompoundNotFound, "compound not found")
	}
	return nil
}

// List returns one page of compounds matching the filter plus the unpaged
// total.
func (r *CompoundRepository) List(ctx context.Context, filter compound.Filter) ([]*compound.Compound, int64, error) {
	r.logger.Debug("CompoundRepository.List", "filter", filter)

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

	if filter.IsValid != nil {
		ph := nextArg(*filter.IsValid)
		conditions = append(conditions, fmt.Sprintf("is_valid = %s", ph))
	}

	if filter.HasStructure != nil {
		if *filter.HasStructure {
			conditions = append(conditions, "smiles <> '' AND fingerprint_morgan IS NOT NULL")
		} else {
			conditions = append(conditions, "(smiles IS NULL OR smiles = '' OR fingerprint_morgan IS NULL)")
		}
	}

	if filter.HasCID != nil {
		if *filter.HasCID {
			conditions = append(conditions, "cid IS NOT NULL")
		} else {
			conditions = append(conditions, "cid IS NULL")
		}
	}

	if filter.MinWeight != nil {
		ph := nextArg(*filter.MinWeight)
		conditions = append(conditions, fmt.Sprintf("molecular_weight >= %s", ph))
	}

	if filter.MaxWeight != nil {
		ph := nextArg(*filter.MaxWeight)
		conditions = append(conditions, fmt.Sprintf("molecular_weight <= %s", ph))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM compounds %s", whereClause), args...,
	).Scan(&total); err != nil {
		r.logger.Error("CompoundRepository.List: count", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "count failed")
	}

	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)
	phLimit := nextArg(pageSize)
	phOffset := nextArg(offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM compounds %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s OFFSET %s`, compoundColumns, whereClause, phLimit, phOffset), args...)
	if err != nil {
		r.logger.Error("CompoundRepository.List: query", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "list query failed")
	}
	defer rows.Close()

	compounds, err := r.scanCompounds(rows)
	return compounds, total, err
}

// Statistics computes the aggregate snapshot in a single round-trip.  Weight
// buckets are half-open on the right so a boundary value falls in the upper
// bucket.
func (r *CompoundRepository) Statistics(ctx context.Context) (*compound.Statistics, error) {
	r.logger.Debug("CompoundRepository.Statistics")

	var s compound.Statistics
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_valid),
		       COUNT(*) FILTER (WHERE NOT is_valid),
		       COUNT(*) FILTER (WHERE cid IS NOT NULL),
		       COUNT(*) FILTER (WHERE smiles <> '' AND fingerprint_morgan IS NOT NULL),
		       COUNT(*) FILTER (WHERE molecular_weight < 200),
		       COUNT(*) FILTER (WHERE molecular_weight >= 200 AND molecular_weight < 500),
		       COUNT(*) FILTER (WHERE molecular_weight >= 500 AND molecular_weight < 1000),
		       COUNT(*) FILTER (WHERE molecular_weight >= 1000),
		       COUNT(*) FILTER (WHERE molecular_weight IS NULL)
		FROM compounds`).Scan(
		&s.Total, &s.Valid, &s.Invalid,
		&s.WithPubChemCID, &s.WithStructureData,
		&s.WeightDistribution.Under200,
		&s.WeightDistribution.From200To500,
		&s.WeightDistribution.From500To1000,
		&s.WeightDistribution.Over1000,
		&s.WeightDistribution.Unknown,
	)
	if err != nil {
		r.logger.Error("CompoundRepository.Statistics", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "statistics query failed")
	}
	return &s, nil
}

func (r *CompoundRepository) FindByNameExact(ctx context.Context, q string) ([]*compound.Compound, error) {
	r.logger.Debug("CompoundRepository.FindByNameExact", "q", q)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM compounds
		WHERE LOWER(standard_name) = LOWER($1)
		ORDER BY id`, compoundColumns), q)
	if err != nil {
		r.logger.Error("CompoundRepository.FindByNameExact", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "exact name query failed")
	}
	defer rows.Close()

	return r.scanCompounds(rows)
}

func (r *CompoundRepository) FindByNamePartial(ctx context.Context, q string, excludeIDs []int64) ([]*compound.Compound, error) {
	r.logger.Debug("CompoundRepository.FindByNamePartial", "q", q, "exclude", len(excludeIDs))

	if excludeIDs == nil {
		excludeIDs = []int64{}
	}
	pattern := "%" + q + "%"

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM compounds
		WHERE (standard_name ILIKE $1 OR iupac_name ILIKE $1)
		  AND id <> ALL($2)
		ORDER BY id`, compoundColumns), pattern, excludeIDs)
	if err != nil {
		r.logger.Error("CompoundRepository.FindByNamePartial", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "partial name query failed")
	}
	defer rows.Close()

	return r.scanCompounds(rows)
}

func (r *CompoundRepository) FindByCID(ctx context.Context, cid int64) (*compound.Compound, error) {
	r.logger.Debug("CompoundRepository.FindByCID", "cid", cid)

	return r.scanCompound(r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM compounds WHERE cid = $1`, compoundColumns), cid))
}

func (r *CompoundRepository) FindBySMILES(ctx context.Context, q string) ([]*compound.Compound, error) {
	r.logger.Debug("CompoundRepository.FindBySMILES", "q", q)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM compounds
		WHERE smiles IS NOT NULL AND smiles <> ''
		  AND POSITION(LOWER($1) IN LOWER(smiles)) > 0
		ORDER BY (LOWER(smiles) = LOWER($1)) DESC, id`, compoundColumns), q)
	if err != nil {
		r.logger.Error("CompoundRepository.FindBySMILES", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "smiles query failed")
	}
	defer rows.Close()

	return r.scanCompounds(rows)
}

func (r *CompoundRepository) scanCompound(row pgx.Row) (*compound.Compound, error) {
	var c compound.Compound
	err := row.Scan(
		&c.ID, &c.StandardName, &c.IUPACName, &c.CID, &c.MolecularFormula,
		&c.MolecularWeight, &c.SMILES, &c.InChI, &c.InChIKey, &c.FingerprintMorgan,
		&c.FingerprintType, &c.IsValid, &c.ValidationError, &c.PubChemLastFetched,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.New(appErrors.ErrCodeCompoundNotFound, "compound not found")
		}
		r.logger.Error("scanCompound", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan compound")
	}
	return &c, nil
}

func (r *CompoundRepository) scanCompounds(rows pgx.Rows) ([]*compound.Compound, error) {
	var compounds []*compound.Compound
	for rows.Next() {
		var c compound.Compound
		err := rows.Scan(
			&c.ID, &c.StandardName, &c.IUPACName, &c.CID, &c.MolecularFormula,
			&c.MolecularWeight, &c.SMILES, &c.InChI, &c.InChIKey, &c.FingerprintMorgan,
			&c.FingerprintType, &c.IsValid, &c.ValidationError, &c.PubChemLastFetched,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("scanCompounds", "error", err)
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan compound row")
		}
		compounds = append(compounds, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}
	return compounds, nil
}
