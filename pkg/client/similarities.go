package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Similarity is a single similarity analysis record.
type Similarity struct {
	ID                int64   `json:"id"`
	TargetCompoundID  int64   `json:"target_compound_id"`
	SimilarCompoundID int64   `json:"similar_compound_id"`
	SimilarityScore   float64 `json:"similarity_score"`
	FingerprintMethod string  `json:"fingerprint_method"`
	SimilarityMetric  string  `json:"similarity_metric"`
	IsCurrent         bool    `json:"is_current"`
	AnalysisDate      string  `json:"analysis_date"`
	CreatedAt         string  `json:"created_at"`
}

// CreateSimilarityRequest is the body for Create and BulkCreate.
type CreateSimilarityRequest struct {
	TargetCompoundID  int64   `json:"target_compound_id"`
	SimilarCompoundID int64   `json:"similar_compound_id"`
	SimilarityScore   float64 `json:"similarity_score"`
	FingerprintMethod string  `json:"fingerprint_method,omitempty"`
	SimilarityMetric  string  `json:"similarity_metric,omitempty"`
}

// SimilarityListOptions filters the similarity listing.
type SimilarityListOptions struct {
	CompoundID *int64
	IsCurrent  *bool
	Method     string
	MinScore   *float64
	MaxScore   *float64
	Page       int
	PageSize   int
}

// InvalidateResult reports how many analyses an invalidation retired.
type InvalidateResult struct {
	CompoundID       int64 `json:"compound_id"`
	InvalidatedCount int64 `json:"invalidated_count"`
}

// ByCompoundResponse is the envelope for ByCompound.
type ByCompoundResponse struct {
	CompoundID       int64             `json:"compound_id"`
	MinScore         float64           `json:"min_score"`
	Count            int               `json:"count"`
	SimilarCompounds []SimilarCompound `json:"similar_compounds"`
}

// SimilarityStatistics is the aggregate similarity report.
type SimilarityStatistics struct {
	Total             int64            `json:"total_analyses"`
	Current           int64            `json:"current_analyses"`
	Invalidated       int64            `json:"invalidated_analyses"`
	AverageScore      float64          `json:"average_score"`
	ScoreDistribution map[string]int64 `json:"score_distribution"`
	MethodBreakdown   []struct {
		FingerprintMethod string `json:"fingerprint_method"`
		Count             int64  `json:"count"`
	} `json:"method_breakdown"`
}

// SimilaritiesClient provides access to similarity analysis endpoints.
type SimilaritiesClient struct {
	client *Client
}

// List retrieves a filtered page of similarity analyses.
// GET /api/v1/similarities
func (sc *SimilaritiesClient) List(ctx context.Context, opts SimilarityListOptions) (*ListEnvelope[Similarity], error) {
	page, pageSize := clampPagination(opts.Page, opts.PageSize)

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if opts.CompoundID != nil {
		q.Set("compound_id", strconv.FormatInt(*opts.CompoundID, 10))
	}
	if opts.IsCurrent != nil {
		q.Set("is_current", strconv.FormatBool(*opts.IsCurrent))
	}
	if opts.Method != "" {
		q.Set("method", opts.Method)
	}
	if opts.MinScore != nil {
		q.Set("min_score", strconv.FormatFloat(*opts.MinScore, 'f', -1, 64))
	}
	if opts.MaxScore != nil {
		q.Set("max_score", strconv.FormatFloat(*opts.MaxScore, 'f', -1, 64))
	}

	var resp ListEnvelope[Similarity]
	if err := sc.client.get(ctx, "/api/v1/similarities?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create records a similarity analysis between two compounds.
// POST /api/v1/similarities
func (sc *SimilaritiesClient) Create(ctx context.Context, req *CreateSimilarityRequest) (*Similarity, error) {
	if req == nil {
		return nil, invalidArg("request is required")
	}
	if req.TargetCompoundID <= 0 || req.SimilarCompoundID <= 0 {
		return nil, invalidArg("target_compound_id and similar_compound_id are required")
	}
	if req.SimilarityScore < 0 || req.SimilarityScore > 1.0 {
		return nil, invalidArg("similarity_score must be between 0.0 and 1.0")
	}
	var resp Similarity
	if err := sc.client.post(ctx, "/api/v1/similarities", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BulkCreate records a batch of analyses atomically and returns the number
// created.
// POST /api/v1/similarities/bulk
func (sc *SimilaritiesClient) BulkCreate(ctx context.Context, analyses []CreateSimilarityRequest) (int, error) {
	if len(analyses) == 0 {
		return 0, invalidArg("analyses list is required")
	}
	body := map[string][]CreateSimilarityRequest{"analyses": analyses}
	var resp struct {
		Created int `json:"created"`
	}
	if err := sc.client.post(ctx, "/api/v1/similarities/bulk", body, &resp); err != nil {
		return 0, err
	}
	return resp.Created, nil
}

// Get retrieves a similarity analysis by ID.
// GET /api/v1/similarities/{id}
func (sc *SimilaritiesClient) Get(ctx context.Context, id int64) (*Similarity, error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}
	var resp Similarity
	if err := sc.client.get(ctx, fmt.Sprintf("/api/v1/similarities/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a similarity analysis.
// DELETE /api/v1/similarities/{id}
func (sc *SimilaritiesClient) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalidArg("id must be a positive integer")
	}
	return sc.client.delete(ctx, fmt.Sprintf("/api/v1/similarities/%d", id))
}

// Statistics retrieves the aggregate similarity report.
// GET /api/v1/similarities/statistics
func (sc *SimilaritiesClient) Statistics(ctx context.Context) (*SimilarityStatistics, error) {
	var resp SimilarityStatistics
	if err := sc.client.get(ctx, "/api/v1/similarities/statistics", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ByCompound lists compounds similar to the given one regardless of pair
// direction. minScore and limit are optional; pass 0 to accept the server
// defaults.
// GET /api/v1/similarities/by_compound?compound_id={id}
func (sc *SimilaritiesClient) ByCompound(ctx context.Context, compoundID int64, minScore float64, limit int) (*ByCompoundResponse, error) {
	if compoundID <= 0 {
		return nil, invalidArg("compound_id must be a positive integer")
	}
	if minScore < 0 || minScore > 1.0 {
		return nil, invalidArg("min_score must be between 0.0 and 1.0")
	}

	q := url.Values{}
	q.Set("compound_id", strconv.FormatInt(compoundID, 10))
	if minScore > 0 {
		q.Set("min_score", strconv.FormatFloat(minScore, 'f', -1, 64))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp ByCompoundResponse
	if err := sc.client.get(ctx, "/api/v1/similarities/by_compound?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Invalidate retires every current analysis touching the given compound.
// POST /api/v1/similarities/invalidate
func (sc *SimilaritiesClient) Invalidate(ctx context.Context, compoundID int64) (*InvalidateResult, error) {
	if compoundID <= 0 {
		return nil, invalidArg("compound_id must be a positive integer")
	}
	body := map[string]int64{"compound_id": compoundID}
	var resp InvalidateResult
	if err := sc.client.post(ctx, "/api/v1/similarities/invalidate", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
