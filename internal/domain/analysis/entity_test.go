package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaref/pharmaref/pkg/errors"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := New(1, 2, 0.85)
	assert.Equal(t, DefaultFingerprintMethod, s.FingerprintMethod)
	assert.Equal(t, DefaultSimilarityMetric, s.SimilarityMetric)
	assert.True(t, s.IsCurrent)
	assert.False(t, s.AnalysisDate.IsZero())
}

func TestValidateSelfCompare(t *testing.T) {
	s := New(7, 7, 0.5)
	err := s.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSimilaritySelfCompare, errors.GetCode(err))
}

func TestValidateScoreRange(t *testing.T) {
	for _, score := range []float64{-0.01, 1.01, 2} {
		s := New(1, 2, score)
		err := s.Validate()
		require.Error(t, err, "score %v", score)
		assert.Equal(t, errors.ErrCodeSimilarityScoreInvalid, errors.GetCode(err))
	}
	for _, score := range []float64{0, 0.7, 1} {
		s := New(1, 2, score)
		assert.NoError(t, s.Validate(), "score %v", score)
	}
}

func TestValidateMissingIDs(t *testing.T) {
	s := New(0, 2, 0.5)
	assert.Error(t, s.Validate())
	s = New(1, -3, 0.5)
	assert.Error(t, s.Validate())
}
