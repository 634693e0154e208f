package repositories

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaref/pharmaref/internal/domain/analysis"
	appErrors "github.com/pharmaref/pharmaref/pkg/errors"
)

const similarityColumns = `id, target_compound_id, similar_compound_id,
	       similarity_score, fingerprint_method, similarity_metric,
	       is_current, analysis_date, created_at, updated_at`

// SimilarityRepository is the PostgreSQL implementation of the analysis
// domain's Repository interface.
type SimilarityRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewSimilarityRepository constructs a ready-to-use SimilarityRepository.
func NewSimilarityRepository(pool *pgxpool.Pool, logger Logger) *SimilarityRepository {
	return &SimilarityRepository{pool: pool, logger: logger}
}

// Save persists a new analysis row and populates its generated id.
func (r *SimilarityRepository) Save(ctx context.Context, s *analysis.SimilarityAnalysis) error {
	r.logger.Debug("SimilarityRepository.Save",
		"target", s.TargetCompoundID, "similar", s.SimilarCompoundID)

	err := r.pool.QueryRow(ctx, `
		INSERT INTO similarity_analyses (
			target_compound_id, similar_compound_id, similarity_score,
			fingerprint_method, similarity_metric, is_current,
			analysis_date, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		s.TargetCompoundID, s.SimilarCompoundID, s.SimilarityScore,
		s.FingerprintMethod, s.SimilarityMetric, s.IsCurrent,
		s.AnalysisDate, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeSimilarityDuplicate,
				"analysis for this (target, similar) pair already exists")
		}
		if isCheckViolation(err) {
			return appErrors.New(appErrors.ErrCodeSimilaritySelfCompare,
				"analysis violates a similarity constraint")
		}
		if isForeignKeyViolation(err) {
			return appErrors.New(appErrors.ErrCodeCompoundNotFound,
				"referenced compound does not exist")
		}
		r.logger.Error("SimilarityRepository.Save", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to insert analysis")
	}
	return nil
}

// BatchSave inserts multiple analysis rows via the COPY protocol.
func (r *SimilarityRepository) BatchSave(ctx context.Context, analyses []*analysis.SimilarityAnalysis) error {
	r.logger.Debug("SimilarityRepository.BatchSave", "count", len(analyses))

	if len(analyses) == 0 {
		return nil
	}

	columns := []string{
		"target_compound_id", "similar_compound_id", "similarity_score",
		"fingerprint_method", "similarity_metric", "is_current",
		"analysis_date", "created_at", "updated_at",
	}

	rows := make([][]interface{}, 0, len(analyses))
	for _, s := range analyses {
		rows = append(rows, []interface{}{
			s.TargetCompoundID, s.SimilarCompoundID, s.SimilarityScore,
			s.FingerprintMethod, s.SimilarityMetric, s.IsCurrent,
			s.AnalysisDate, s.CreatedAt, s.UpdatedAt,
		})
	}

	copyCount, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"similarity_analyses"},
		columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.New(appErrors.ErrCodeSimilarityDuplicate,
				"batch contains a duplicate (target, similar) pair")
		}
		r.logger.Error("SimilarityRepository.BatchSave", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to batch insert analyses")
	}

	r.logger.Debug("SimilarityRepository.BatchSave: done", "inserted", copyCount)
	return nil
}

func (r *SimilarityRepository) FindByID(ctx context.Context, id int64) (*analysis.SimilarityAnalysis, error) {
	r.logger.Debug("SimilarityRepository.FindByID", "id", id)

	return r.scanAnalysis(r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM similarity_analyses WHERE id = $1`, similarityColumns), id))
}

func (r *SimilarityRepository) Delete(ctx context.Context, id int64) error {
	r.logger.Debug("SimilarityRepository.Delete", "id", id)

	tag, err := r.pool.Exec(ctx, `DELETE FROM similarity_analyses WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("SimilarityRepository.Delete", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to delete analysis")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeSimilarityNotFound, "analysis not found")
	}
	return nil
}

// List returns one page of analyses matching the filter plus the unpaged
// total.
func (r *SimilarityRepository) List(ctx context.Context, filter analysis.Filter) ([]*analysis.SimilarityAnalysis, int64, error) {
	r.logger.Debug("SimilarityRepository.List", "filter", filter)

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

	if filter.CompoundID != nil {
		ph := nextArg(*filter.CompoundID)
		conditions = append(conditions,
			fmt.Sprintf("(target_compound_id = %[1]s OR similar_compound_id = %[1]s)", ph))
	}

	if filter.MinScore != nil {
		ph := nextArg(*filter.MinScore)
		conditions = append(conditions, fmt.Sprintf("similarity_score >= %s", ph))
	}

	if filter.MaxScore != nil {
		ph := nextArg(*filter.MaxScore)
		conditions = append(conditions, fmt.Sprintf("similarity_score <= %s", ph))
	}

	if filter.Method != "" {
		ph := nextArg(filter.Method)
		conditions = append(conditions, fmt.Sprintf("fingerprint_method = %s", ph))
	}

	if filter.IsCurrent != nil {
		ph := nextArg(*filter.IsCurrent)
		conditions = append(conditions, fmt.Sprintf("is_current = %s", ph))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM similarity_analyses %s", whereClause), args...,
	).Scan(&total); err != nil {
		r.logger.Error("SimilarityRepository.List: count", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "count failed")
	}

	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)
	phLimit := nextArg(pageSize)
	phOffset := nextArg(offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM similarity_analyses %s
		ORDER BY similarity_score DESC, id
		LIMIT %s OFFSET %s`, similarityColumns, whereClause, phLimit, phOffset), args...)
	if err != nil {
		r.logger.Error("SimilarityRepository.List: query", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "list query failed")
	}
	defer rows.Close()

	analyses, err := r.scanAnalyses(rows)
	return analyses, total, err
}

// Statistics computes the aggregate snapshot.  Only the current/invalidated
// split distinguishes is_current; the average, the score buckets and the
// method breakdown cover every row.  The average is rounded to 4 decimal
// places and reported as 0.0 when the table is empty.
func (r *SimilarityRepository) Statistics(ctx context.Context) (*analysis.Statistics, error) {
	r.logger.Debug("SimilarityRepository.Statistics")

	var s analysis.Statistics
	var avg *float64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_current),
		       COUNT(*) FILTER (WHERE NOT is_current),
		       AVG(similarity_score),
		       COUNT(*) FILTER (WHERE similarity_score >= 0.9),
		       COUNT(*) FILTER (WHERE similarity_score >= 0.8 AND similarity_score < 0.9),
		       COUNT(*) FILTER (WHERE similarity_score >= 0.7 AND similarity_score < 0.8),
		       COUNT(*) FILTER (WHERE similarity_score < 0.7)
		FROM similarity_analyses`).Scan(
		&s.Total, &s.Current, &s.Invalidated, &avg,
		&s.ScoreDistribution.From090To100,
		&s.ScoreDistribution.From080To090,
		&s.ScoreDistribution.From070To080,
		&s.ScoreDistribution.Below070,
	)
	if err != nil {
		r.logger.Error("SimilarityRepository.Statistics", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "statistics query failed")
	}
	if avg != nil {
		s.AverageScore = math.Round(*avg*10000) / 10000
	}

	rows, err := r.pool.Query(ctx, `
		SELECT fingerprint_method, COUNT(*) AS cnt
		FROM similarity_analyses
		GROUP BY fingerprint_method
		ORDER BY cnt DESC, fingerprint_method`)
	if err != nil {
		r.logger.Error("SimilarityRepository.Statistics: methods", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "method breakdown failed")
	}
	defer rows.Close()

	s.MethodBreakdown = []analysis.MethodCount{}
	for rows.Next() {
		var mc analysis.MethodCount
		if err := rows.Scan(&mc.FingerprintMethod, &mc.Count); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan method row")
		}
		s.MethodBreakdown = append(s.MethodBreakdown, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}

	return &s, nil
}

// SimilarTo returns the current neighbors of a compound from both sides of
// the pair, highest score first.
func (r *SimilarityRepository) SimilarTo(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error) {
	r.logger.Debug("SimilarityRepository.SimilarTo",
		"compound_id", compoundID, "min_score", minScore, "limit", limit)

	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.standard_name, c.cid, c.molecular_formula,
		       sa.similarity_score, sa.fingerprint_method
		FROM similarity_analyses sa
		JOIN compounds c ON c.id = CASE
			WHEN sa.target_compound_id = $1 THEN sa.similar_compound_id
			ELSE sa.target_compound_id
		END
		WHERE (sa.target_compound_id = $1 OR sa.similar_compound_id = $1)
		  AND sa.is_current
		  AND sa.similarity_score >= $2
		ORDER BY sa.similarity_score DESC, c.id
		LIMIT $3`, compoundID, minScore, limit)
	if err != nil {
		r.logger.Error("SimilarityRepository.SimilarTo", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "similar-to query failed")
	}
	defer rows.Close()

	neighbors := []analysis.SimilarCompound{}
	for rows.Next() {
		var n analysis.SimilarCompound
		if err := rows.Scan(&n.CompoundID, &n.StandardName, &n.CID,
			&n.MolecularFormula, &n.SimilarityScore, &n.FingerprintMethod); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan neighbor row")
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}

	return neighbors, nil
}

// Invalidate marks every current analysis touching the compound as stale in
// a single statement.  Repeated calls return 0.
func (r *SimilarityRepository) Invalidate(ctx context.Context, compoundID int64) (int64, error) {
	r.logger.Debug("SimilarityRepository.Invalidate", "compound_id", compoundID)

	tag, err := r.pool.Exec(ctx, `
		UPDATE similarity_analyses
		SET is_current = FALSE, updated_at = NOW()
		WHERE (target_compound_id = $1 OR similar_compound_id = $1)
		  AND is_current`, compoundID)
	if err != nil {
		r.logger.Error("SimilarityRepository.Invalidate", "error", err)
		return 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "invalidate failed")
	}
	return tag.RowsAffected(), nil
}

func (r *SimilarityRepository) scanAnalysis(row pgx.Row) (*analysis.SimilarityAnalysis, error) {
	var s analysis.SimilarityAnalysis
	err := row.Scan(
		&s.ID, &s.TargetCompoundID, &s.SimilarCompoundID,
		&s.SimilarityScore, &s.FingerprintMethod, &s.SimilarityMetric,
		&s.IsCurrent, &s.AnalysisDate, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.New(appErrors.ErrCodeSimilarityNotFound, "analysis not found")
		}
		r.logger.Error("scanAnalysis", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan analysis")
	}
	return &s, nil
}

func (r *SimilarityRepository) scanAnalyses(rows pgx.Rows) ([]*analysis.SimilarityAnalysis, error) {
	var analyses []*analysis.SimilarityAnalysis
	for rows.Next() {
		var s analysis.SimilarityAnalysis
		err := rows.Scan(
			&s.ID, &s.TargetCompoundID, &s.SimilarCompoundID,
			&s.SimilarityScore, &s.FingerprintMethod, &s.SimilarityMetric,
			&s.IsCurrent, &s.AnalysisDate, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("scanAnalyses", "error", err)
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan analysis row")
		}
		analyses = append(analyses, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "row iteration error")
	}
	return analyses, nil
}
