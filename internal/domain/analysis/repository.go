package analysis

import "context"

// Filter carries the optional similarity list filters.  CompoundID matches
// rows where the compound appears on either side of the pair.
type Filter struct {
	CompoundID *int64
	MinScore   *float64
	MaxScore   *float64
	Method     string
	IsCurrent  *bool
	Page       int
	PageSize   int
}

// ScoreDistribution buckets current analyses by score.  The top bucket is
// closed above: a score of exactly 1.0 counts as 0.9_to_1.0.
type ScoreDistribution struct {
	From090To100 int64 `json:"0.9_to_1.0"`
	From080To090 int64 `json:"0.8_to_0.9"`
	From070To080 int64 `json:"0.7_to_0.8"`
	Below070     int64 `json:"below_0.7"`
}

// MethodCount is one row of the per-method breakdown.
type MethodCount struct {
	FingerprintMethod string `json:"fingerprint_method"`
	Count             int64  `json:"count"`
}

// Statistics is the aggregate snapshot served by the similarity statistics
// endpoint.  AverageScore, the score distribution and the method breakdown
// cover every analysis regardless of is_current; AverageScore is rounded to
// 4 decimal places and is 0.0 when no analyses exist.
type Statistics struct {
	Total             int64             `json:"total_analyses"`
	Current           int64             `json:"current_analyses"`
	Invalidated       int64             `json:"invalidated_analyses"`
	AverageScore      float64           `json:"average_score"`
	ScoreDistribution ScoreDistribution `json:"score_distribution"`
	MethodBreakdown   []MethodCount     `json:"method_breakdown"`
}

// SimilarCompound is the unwrapped view returned by the similar-compounds
// lookup: the neighbor compound plus the score that relates it.
type SimilarCompound struct {
	CompoundID        int64   `json:"compound_id"`
	StandardName      string  `json:"standard_name"`
	CID               *int64  `json:"cid"`
	MolecularFormula  string  `json:"molecular_formula"`
	SimilarityScore   float64 `json:"similarity_score"`
	FingerprintMethod string  `json:"fingerprint_method"`
}

// Repository is the persistence contract for similarity analyses.
type Repository interface {
	Save(ctx context.Context, s *SimilarityAnalysis) error
	BatchSave(ctx context.Context, analyses []*SimilarityAnalysis) error
	FindByID(ctx context.Context, id int64) (*SimilarityAnalysis, error)
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, filter Filter) ([]*SimilarityAnalysis, int64, error)
	Statistics(ctx context.Context) (*Statistics, error)

	// SimilarTo returns the current neighbors of a compound, looking at
	// both sides of the pair, with score >= minScore, highest score first,
	// at most limit rows.
	SimilarTo(ctx context.Context, compoundID int64, minScore float64, limit int) ([]SimilarCompound, error)

	// Invalidate marks every current analysis touching the compound as no
	// longer current and returns how many rows changed.  Calling it again
	// returns 0.
	Invalidate(ctx context.Context, compoundID int64) (int64, error)
}
