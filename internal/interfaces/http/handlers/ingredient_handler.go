package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	appproduct "github.com/pharmaref/pharmaref/internal/application/product"
	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

// IngredientService is the application contract the handler needs.
type IngredientService interface {
	List(ctx context.Context, filter product.IngredientFilter) ([]*product.ProductIngredient, int64, error)
	Get(ctx context.Context, id int64) (*product.ProductIngredient, error)
	Update(ctx context.Context, i *product.ProductIngredient) error
	FailedNormalizations(ctx context.Context) (*appproduct.FailedNormalizationReport, error)
}

// IngredientHandler handles ingredient curation requests.
type IngredientHandler struct {
	svc    IngredientService
	logger logging.Logger
}

// NewIngredientHandler creates an IngredientHandler.
func NewIngredientHandler(svc IngredientService, logger logging.Logger) *IngredientHandler {
	return &IngredientHandler{svc: svc, logger: logger}
}

// UpdateIngredientRequest is the PATCH /ingredients/{id} body, used mainly to
// curate compound mappings.
type UpdateIngredientRequest struct {
	CompoundID          *int64  `json:"compound_id,omitempty"`
	Content             *string `json:"content,omitempty"`
	Unit                *string `json:"unit,omitempty"`
	IsMainActive        *bool   `json:"is_main_active,omitempty"`
	IngredientType      *string `json:"ingredient_type,omitempty"`
	NormalizationStatus *string `json:"normalization_status,omitempty"`
	NormalizationError  *string `json:"normalization_error,omitempty"`
}

func (h *IngredientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := product.IngredientFilter{
		IsMainActive: parseBoolParam(r, "is_main_active"),
		Page:         page,
		PageSize:     pageSize,
	}
	if v := r.URL.Query().Get("normalization_status"); v != "" {
		status := product.NormalizationStatus(strings.ToUpper(v))
		filter.NormalizationStatus = &status
	}
	if v := r.URL.Query().Get("ingredient_type"); v != "" {
		t := product.IngredientType(v)
		filter.IngredientType = &t
	}
	if id := parseIntDefault(r, "compound_id", 0); id > 0 {
		cid := int64(id)
		filter.CompoundID = &cid
	}

	rows, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list ingredients", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: total, Page: page, PageSize: pageSize, Results: newIngredientViews(rows)})
}

func (h *IngredientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "ingredientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	row, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIngredientView(row))
}

func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "ingredientID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req UpdateIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	row, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if req.CompoundID != nil {
		row.CompoundID = req.CompoundID
	}
	if req.Content != nil {
		row.Content = *req.Content
	}
	if req.Unit != nil {
		row.Unit = *req.Unit
	}
	if req.IsMainActive != nil {
		row.IsMainActive = *req.IsMainActive
	}
	if req.IngredientType != nil {
		row.IngredientType = product.IngredientType(*req.IngredientType)
	}
	if req.NormalizationStatus != nil {
		row.NormalizationStatus = product.NormalizationStatus(*req.NormalizationStatus)
	}
	if req.NormalizationError != nil {
		row.NormalizationError = *req.NormalizationError
	}

	if err := h.svc.Update(r.Context(), row); err != nil {
		h.logger.Error("Failed to update ingredient", logging.Int64("id", id), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIngredientView(row))
}

func (h *IngredientHandler) FailedNormalizations(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.FailedNormalizations(r.Context())
	if err != nil {
		h.logger.Error("Failed to load failed normalizations", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
