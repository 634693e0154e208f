package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	appanalysis "github.com/pharmaref/pharmaref/internal/application/analysis"
	"github.com/pharmaref/pharmaref/internal/domain/analysis"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

// AnalysisService is the application contract the handler needs.
type AnalysisService interface {
	Create(ctx context.Context, a *analysis.SimilarityAnalysis) error
	BulkCreate(ctx context.Context, analyses []*analysis.SimilarityAnalysis) (int, error)
	Get(ctx context.Context, id int64) (*analysis.SimilarityAnalysis, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter analysis.Filter) ([]*analysis.SimilarityAnalysis, int64, error)
	Statistics(ctx context.Context) (*analysis.Statistics, error)
	SimilarCompounds(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error)
	Invalidate(ctx context.Context, compoundID int64) (*appanalysis.InvalidateResult, error)
}

// SimilarityHandler handles similarity analysis requests.
type SimilarityHandler struct {
	svc    AnalysisService
	logger logging.Logger
}

// NewSimilarityHandler creates a SimilarityHandler.
func NewSimilarityHandler(svc AnalysisService, logger logging.Logger) *SimilarityHandler {
	return &SimilarityHandler{svc: svc, logger: logger}
}

// CreateSimilarityRequest is the POST /similarities body.
type CreateSimilarityRequest struct {
	TargetCompoundID  int64      `json:"target_compound_id"`
	SimilarCompoundID int64      `json:"similar_compound_id"`
	SimilarityScore   float64    `json:"similarity_score"`
	FingerprintMethod string     `json:"fingerprint_method,omitempty"`
	SimilarityMetric  string     `json:"similarity_metric,omitempty"`
	AnalysisDate      *time.Time `json:"analysis_date,omitempty"`
}

func (r CreateSimilarityRequest) toDomain() *analysis.SimilarityAnalysis {
	a := analysis.New(r.TargetCompoundID, r.SimilarCompoundID, r.SimilarityScore)
	if r.FingerprintMethod != "" {
		a.FingerprintMethod = r.FingerprintMethod
	}
	if r.SimilarityMetric != "" {
		a.SimilarityMetric = r.SimilarityMetric
	}
	if r.AnalysisDate != nil {
		a.AnalysisDate = *r.AnalysisDate
	}
	return a
}

// SimilarityView is the analysis row representation.
type SimilarityView struct {
	ID                int64     `json:"id"`
	TargetCompoundID  int64     `json:"target_compound_id"`
	SimilarCompoundID int64     `json:"similar_compound_id"`
	SimilarityScore   float64   `json:"similarity_score"`
	FingerprintMethod string    `json:"fingerprint_method"`
	SimilarityMetric  string    `json:"similarity_metric"`
	IsCurrent         bool      `json:"is_current"`
	AnalysisDate      time.Time `json:"analysis_date"`
	CreatedAt         time.Time `json:"created_at"`
}

func newSimilarityView(a *analysis.SimilarityAnalysis) SimilarityView {
	return SimilarityView{
		ID:                a.ID,
		TargetCompoundID:  a.TargetCompoundID,
		SimilarCompoundID: a.SimilarCompoundID,
		SimilarityScore:   a.SimilarityScore,
		FingerprintMethod: a.FingerprintMethod,
		SimilarityMetric:  a.SimilarityMetric,
		IsCurrent:         a.IsCurrent,
		AnalysisDate:      a.AnalysisDate,
		CreatedAt:         a.CreatedAt,
	}
}

// InvalidateRequest is the POST /similarities/invalidate body.
type InvalidateRequest struct {
	CompoundID int64 `json:"compound_id"`
}

// ByCompoundResponse is the GET /similarities/by_compound envelope.
type ByCompoundResponse struct {
	CompoundID       int64                      `json:"compound_id"`
	MinScore         float64                    `json:"min_score"`
	Count            int                        `json:"count"`
	SimilarCompounds []analysis.SimilarCompound `json:"similar_compounds"`
}

func (h *SimilarityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSimilarityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	a := req.toDomain()
	if err := h.svc.Create(r.Context(), a); err != nil {
		h.logger.Error("Failed to create similarity analysis", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSimilarityView(a))
}

// BulkCreateSimilaritiesRequest is the POST /similarities/bulk body.
type BulkCreateSimilaritiesRequest struct {
	Analyses []CreateSimilarityRequest `json:"analyses"`
}

func (h *SimilarityHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateSimilaritiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	analyses := make([]*analysis.SimilarityAnalysis, len(req.Analyses))
	for i, ar := range req.Analyses {
		analyses[i] = ar.toDomain()
	}

	n, err := h.svc.BulkCreate(r.Context(), analyses)
	if err != nil {
		h.logger.Error("Failed to bulk create similarity analyses", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"created": n})
}

func (h *SimilarityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "similarityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSimilarityView(a))
}

func (h *SimilarityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "similarityID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete similarity analysis", logging.Int64("id", id), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "similarity analysis deleted"})
}

func (h *SimilarityHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := analysis.Filter{
		IsCurrent: parseBoolParam(r, "is_current"),
		Method:    r.URL.Query().Get("method"),
		Page:      page,
		PageSize:  pageSize,
	}
	if id := parseIntDefault(r, "compound_id", 0); id > 0 {
		cid := int64(id)
		filter.CompoundID = &cid
	}
	if v := r.URL.Query().Get("min_score"); v != "" {
		f := parseFloatDefault(r, "min_score", 0)
		filter.MinScore = &f
	}
	if v := r.URL.Query().Get("max_score"); v != "" {
		f := parseFloatDefault(r, "max_score", 1)
		filter.MaxScore = &f
	}

	rows, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list similarity analyses", logging.Err(err))
		writeAppError(w, err)
		return
	}

	views := make([]SimilarityView, len(rows))
	for i, a := range rows {
		views[i] = newSimilarityView(a)
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: total, Page: page, PageSize: pageSize, Results: views})
}

func (h *SimilarityHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to load similarity statistics", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *SimilarityHandler) ByCompound(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("compound_id")
	compoundID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || compoundID <= 0 {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("compound_id must be a positive integer"))
		return
	}

	minScore := parseFloatDefault(r, "min_score", appanalysis.DefaultMinScore)
	limit := parseIntDefault(r, "limit", appanalysis.DefaultLimit)

	neighbors, err := h.svc.SimilarCompounds(r.Context(), compoundID, minScore, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if neighbors == nil {
		neighbors = []analysis.SimilarCompound{}
	}
	writeJSON(w, http.StatusOK, ByCompoundResponse{
		CompoundID:       compoundID,
		MinScore:         minScore,
		Count:            len(neighbors),
		SimilarCompounds: neighbors,
	})
}

func (h *SimilarityHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}
	if req.CompoundID <= 0 {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("compound_id must be a positive integer"))
		return
	}

	result, err := h.svc.Invalidate(r.Context(), req.CompoundID)
	if err != nil {
		h.logger.Error("Failed to invalidate similarity analyses",
			logging.Int64("compound_id", req.CompoundID), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
