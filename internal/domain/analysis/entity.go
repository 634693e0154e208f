// Package analysis defines similarity analysis results: precomputed pairwise
// structural similarity scores between compounds, produced by an external
// fingerprinting engine and served read-heavy by this service.
package analysis

import (
	"time"

	"github.com/pharmaref/pharmaref/pkg/errors"
)

// Defaults recorded when the analysis engine does not specify otherwise.
const (
	DefaultFingerprintMethod = "Morgan_r2_2048"
	DefaultSimilarityMetric  = "Tanimoto"
)

// SimilarityAnalysis is one directed similarity record.  The pair
// (TargetCompoundID, SimilarCompoundID) is unique as an ordered pair, so both
// directions of the same comparison may coexist as distinct rows.
type SimilarityAnalysis struct {
	ID                int64
	TargetCompoundID  int64
	SimilarCompoundID int64
	SimilarityScore   float64
	FingerprintMethod string
	SimilarityMetric  string
	IsCurrent         bool
	AnalysisDate      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New constructs a SimilarityAnalysis with domain defaults applied.
func New(targetID, similarID int64, score float64) *SimilarityAnalysis {
	now := time.Now().UTC()
	return &SimilarityAnalysis{
		TargetCompoundID:  targetID,
		SimilarCompoundID: similarID,
		SimilarityScore:   score,
		FingerprintMethod: DefaultFingerprintMethod,
		SimilarityMetric:  DefaultSimilarityMetric,
		IsCurrent:         true,
		AnalysisDate:      now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Validate checks the invariants that do not require repository access.
// Ordered-pair uniqueness is enforced by the repository layer.
func (s *SimilarityAnalysis) Validate() error {
	if s.TargetCompoundID <= 0 || s.SimilarCompoundID <= 0 {
		return errors.InvalidParam("target and similar compound ids are required")
	}
	if s.TargetCompoundID == s.SimilarCompoundID {
		return errors.New(errors.ErrCodeSimilaritySelfCompare,
			"a compound cannot be compared with itself")
	}
	if s.SimilarityScore < 0 || s.SimilarityScore > 1 {
		return errors.New(errors.ErrCodeSimilarityScoreInvalid,
			"similarity_score must be between 0.0 and 1.0")
	}
	return nil
}
