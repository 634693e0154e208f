package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	appanalysis "github.com/pharmaref/pharmaref/internal/application/analysis"
	appcompound "github.com/pharmaref/pharmaref/internal/application/compound"
	"github.com/pharmaref/pharmaref/internal/domain/analysis"
	"github.com/pharmaref/pharmaref/internal/domain/compound"
	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

const relatedProductsLimit = 10

// CompoundService is the application contract the handler needs.
type CompoundService interface {
	Create(ctx context.Context, c *compound.Compound) error
	BulkCreate(ctx context.Context, compounds []*compound.Compound) (int, error)
	Get(ctx context.Context, id int64) (*appcompound.Detail, error)
	Update(ctx context.Context, id int64, req appcompound.UpdateRequest) (*compound.Compound, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter compound.Filter) ([]appcompound.Summary, int64, error)
	Statistics(ctx context.Context) (*compound.Statistics, error)
	Search(ctx context.Context, req appcompound.SearchRequest) ([]compound.SearchResult, error)
	Products(ctx context.Context, compoundID int64, isMain *bool) ([]product.ProductRef, error)
	Similar(ctx context.Context, compoundID int64, minScore float64, limit int) ([]analysis.SimilarCompound, error)
}

// CompoundHandler handles compound resource requests.
type CompoundHandler struct {
	svc    CompoundService
	logger logging.Logger
}

// NewCompoundHandler creates a CompoundHandler.
func NewCompoundHandler(svc CompoundService, logger logging.Logger) *CompoundHandler {
	return &CompoundHandler{svc: svc, logger: logger}
}

// CreateCompoundRequest is the POST /compounds body.
type CreateCompoundRequest struct {
	StandardName     string   `json:"standard_name"`
	IUPACName        string   `json:"iupac_name,omitempty"`
	CID              *int64   `json:"cid,omitempty"`
	MolecularFormula string   `json:"molecular_formula,omitempty"`
	MolecularWeight  *float64 `json:"molecular_weight,omitempty"`
	SMILES           string   `json:"smiles,omitempty"`
	InChI            string   `json:"inchi,omitempty"`
	InChIKey         string   `json:"inchi_key,omitempty"`
}

func (r CreateCompoundRequest) toDomain() *compound.Compound {
	c := compound.New(r.StandardName)
	c.IUPACName = r.IUPACName
	c.CID = r.CID
	c.MolecularFormula = r.MolecularFormula
	c.MolecularWeight = r.MolecularWeight
	c.SMILES = r.SMILES
	c.InChI = r.InChI
	c.InChIKey = r.InChIKey
	return c
}

// UpdateCompoundRequest is the PUT/PATCH /compounds/{id} body.  Absent fields
// are left untouched.
type UpdateCompoundRequest struct {
	StandardName     *string  `json:"standard_name,omitempty"`
	IUPACName        *string  `json:"iupac_name,omitempty"`
	CID              *int64   `json:"cid,omitempty"`
	MolecularFormula *string  `json:"molecular_formula,omitempty"`
	MolecularWeight  *float64 `json:"molecular_weight,omitempty"`
	SMILES           *string  `json:"smiles,omitempty"`
	InChI            *string  `json:"inchi,omitempty"`
	InChIKey         *string  `json:"inchi_key,omitempty"`
	IsValid          *bool    `json:"is_valid,omitempty"`
	ValidationError  *string  `json:"validation_error,omitempty"`
}

// CompoundListItem is one row of the compound listing.
type CompoundListItem struct {
	ID               int64     `json:"id"`
	StandardName     string    `json:"standard_name"`
	CID              *int64    `json:"cid"`
	MolecularFormula string    `json:"molecular_formula"`
	MolecularWeight  *float64  `json:"molecular_weight"`
	IsValid          bool      `json:"is_valid"`
	HasStructure     bool      `json:"has_structure"`
	ProductCount     int64     `json:"product_count"`
	CreatedAt        time.Time `json:"created_at"`
}

func newCompoundListItem(s appcompound.Summary) CompoundListItem {
	return CompoundListItem{
		ID:               s.ID,
		StandardName:     s.StandardName,
		CID:              s.CID,
		MolecularFormula: s.MolecularFormula,
		MolecularWeight:  s.MolecularWeight,
		IsValid:          s.IsValid,
		HasStructure:     s.HasStructureData(),
		ProductCount:     s.ProductCount,
		CreatedAt:        s.CreatedAt,
	}
}

// CompoundView is the scalar compound representation returned by create and
// update.
type CompoundView struct {
	ID                 int64      `json:"id"`
	StandardName       string     `json:"standard_name"`
	IUPACName          string     `json:"iupac_name"`
	CID                *int64     `json:"cid"`
	MolecularFormula   string     `json:"molecular_formula"`
	MolecularWeight    *float64   `json:"molecular_weight"`
	SMILES             string     `json:"smiles"`
	InChI              string     `json:"inchi"`
	InChIKey           string     `json:"inchi_key"`
	FingerprintType    string     `json:"fingerprint_type"`
	IsValid            bool       `json:"is_valid"`
	ValidationError    string     `json:"validation_error,omitempty"`
	PubChemLastFetched *time.Time `json:"pubchem_last_fetched,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func newCompoundView(c *compound.Compound) CompoundView {
	return CompoundView{
		ID:                 c.ID,
		StandardName:       c.StandardName,
		IUPACName:          c.IUPACName,
		CID:                c.CID,
		MolecularFormula:   c.MolecularFormula,
		MolecularWeight:    c.MolecularWeight,
		SMILES:             c.SMILES,
		InChI:              c.InChI,
		InChIKey:           c.InChIKey,
		FingerprintType:    c.FingerprintType,
		IsValid:            c.IsValid,
		ValidationError:    c.ValidationError,
		PubChemLastFetched: c.PubChemLastFetched,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// RelatedProduct is the compact product view embedded in the compound detail.
type RelatedProduct struct {
	ID           int64  `json:"id"`
	ProductName  string `json:"product_name"`
	IsMainActive bool   `json:"is_main_active"`
}

// CompoundDetail is the full compound view.
type CompoundDetail struct {
	ID                 int64            `json:"id"`
	StandardName       string           `json:"standard_name"`
	IUPACName          string           `json:"iupac_name"`
	CID                *int64           `json:"cid"`
	MolecularFormula   string           `json:"molecular_formula"`
	MolecularWeight    *float64         `json:"molecular_weight"`
	SMILES             string           `json:"smiles"`
	InChI              string           `json:"inchi"`
	InChIKey           string           `json:"inchi_key"`
	FingerprintType    string           `json:"fingerprint_type"`
	IsValid            bool             `json:"is_valid"`
	ValidationError    string           `json:"validation_error,omitempty"`
	HasStructure       bool             `json:"has_structure"`
	HasFingerprint     bool             `json:"has_fingerprint"`
	SimilarityCount    int64            `json:"similarity_count"`
	RelatedProducts    []RelatedProduct `json:"related_products"`
	PubChemLastFetched *time.Time       `json:"pubchem_last_fetched,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func newCompoundDetail(d *appcompound.Detail) CompoundDetail {
	related := make([]RelatedProduct, 0, relatedProductsLimit)
	for _, ref := range d.Products {
		if len(related) == relatedProductsLimit {
			break
		}
		related = append(related, RelatedProduct{
			ID:           ref.ProductID,
			ProductName:  ref.ProductName,
			IsMainActive: ref.IsMainActive,
		})
	}
	return CompoundDetail{
		ID:                 d.ID,
		StandardName:       d.StandardName,
		IUPACName:          d.IUPACName,
		CID:                d.CID,
		MolecularFormula:   d.MolecularFormula,
		MolecularWeight:    d.MolecularWeight,
		SMILES:             d.SMILES,
		InChI:              d.InChI,
		InChIKey:           d.InChIKey,
		FingerprintType:    d.FingerprintType,
		IsValid:            d.IsValid,
		ValidationError:    d.ValidationError,
		HasStructure:       d.HasStructureData(),
		HasFingerprint:     d.HasFingerprint(),
		SimilarityCount:    d.SimilarityCount,
		RelatedProducts:    related,
		PubChemLastFetched: d.PubChemLastFetched,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// SearchResultItem is one search hit with its match label.
type SearchResultItem struct {
	ID               int64    `json:"id"`
	StandardName     string   `json:"standard_name"`
	CID              *int64   `json:"cid"`
	MolecularFormula string   `json:"molecular_formula"`
	MolecularWeight  *float64 `json:"molecular_weight"`
	IsValid          bool     `json:"is_valid"`
	MatchType        string   `json:"match_type"`
}

// SearchResponse is the GET /compounds/search envelope.
type SearchResponse struct {
	Query   string             `json:"query"`
	Type    string             `json:"type"`
	Count   int                `json:"count"`
	Results []SearchResultItem `json:"results"`
}

// SimilarResponse is the GET /compounds/{id}/similar envelope.
type SimilarResponse struct {
	CompoundID       int64                      `json:"compound_id"`
	CompoundName     string                     `json:"compound_name"`
	MinScore         float64                    `json:"min_score"`
	Count            int                        `json:"count"`
	SimilarCompounds []analysis.SimilarCompound `json:"similar_compounds"`
}

func (h *CompoundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCompoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	c := req.toDomain()
	if err := h.svc.Create(r.Context(), c); err != nil {
		h.logger.Error("Failed to create compound", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCompoundView(c))
}

// BulkCreateRequest is the POST /compounds/bulk body.
type BulkCreateRequest struct {
	Compounds []CreateCompoundRequest `json:"compounds"`
}

func (h *CompoundHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	compounds := make([]*compound.Compound, len(req.Compounds))
	for i, cr := range req.Compounds {
		compounds[i] = cr.toDomain()
	}

	n, err := h.svc.BulkCreate(r.Context(), compounds)
	if err != nil {
		h.logger.Error("Failed to bulk create compounds", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"created": n})
}

func (h *CompoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "compoundID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompoundDetail(detail))
}

func (h *CompoundHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "compoundID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req UpdateCompoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.InvalidParam("invalid request body"))
		return
	}

	c, err := h.svc.Update(r.Context(), id, appcompound.UpdateRequest{
		StandardName:     req.StandardName,
		IUPACName:        req.IUPACName,
		CID:              req.CID,
		MolecularFormula: req.MolecularFormula,
		MolecularWeight:  req.MolecularWeight,
		SMILES:           req.SMILES,
		InChI:            req.InChI,
		InChIKey:         req.InChIKey,
		IsValid:          req.IsValid,
		ValidationError:  req.ValidationError,
	})
	if err != nil {
		h.logger.Error("Failed to update compound", logging.Int64("id", id), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCompoundView(c))
}

func (h *CompoundHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "compoundID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete compound", logging.Int64("id", id), logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "compound deleted"})
}

func (h *CompoundHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := compound.Filter{
		IsValid:      parseBoolParam(r, "is_valid"),
		HasStructure: parseBoolParam(r, "has_structure"),
		HasCID:       parseBoolParam(r, "has_cid"),
		Page:         page,
		PageSize:     pageSize,
	}
	if v := r.URL.Query().Get("min_weight"); v != "" {
		f := parseFloatDefault(r, "min_weight", 0)
		filter.MinWeight = &f
	}
	if v := r.URL.Query().Get("max_weight"); v != "" {
		f := parseFloatDefault(r, "max_weight", 0)
		filter.MaxWeight = &f
	}

	summaries, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list compounds", logging.Err(err))
		writeAppError(w, err)
		return
	}

	items := make([]CompoundListItem, len(summaries))
	for i, s := range summaries {
		items[i] = newCompoundListItem(s)
	}
	writeJSON(w, http.StatusOK, ListResponse{Count: total, Page: page, PageSize: pageSize, Results: items})
}

func (h *CompoundHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to load compound statistics", logging.Err(err))
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *CompoundHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	searchType := r.URL.Query().Get("type")

	results, err := h.svc.Search(r.Context(), appcompound.SearchRequest{
		Query: q,
		Type:  compound.SearchType(searchType),
		Limit: parseIntDefault(r, "limit", 0),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i, res := range results {
		items[i] = SearchResultItem{
			ID:               res.Compound.ID,
			StandardName:     res.Compound.StandardName,
			CID:              res.Compound.CID,
			MolecularFormula: res.Compound.MolecularFormula,
			MolecularWeight:  res.Compound.MolecularWeight,
			IsValid:          res.Compound.IsValid,
			MatchType:        string(res.MatchType),
		}
	}
	if searchType == "" {
		searchType = string(compound.SearchByName)
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Type: searchType, Count: len(items), Results: items})
}

func (h *CompoundHandler) Products(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "compoundID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	refs, err := h.svc.Products(r.Context(), id, parseBoolParam(r, "is_main_active"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"compound_id": id,
		"count":       len(refs),
		"products":    refs,
	})
}

func (h *CompoundHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "compoundID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	minScore := parseFloatDefault(r, "min_score", appanalysis.DefaultMinScore)
	limit := parseIntDefault(r, "limit", appanalysis.DefaultLimit)

	neighbors, err := h.svc.Similar(r.Context(), id, minScore, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if neighbors == nil {
		neighbors = []analysis.SimilarCompound{}
	}
	writeJSON(w, http.StatusOK, SimilarResponse{
		CompoundID:       id,
		CompoundName:     detail.StandardName,
		MinScore:         minScore,
		Count:            len(neighbors),
		SimilarCompounds: neighbors,
	})
}
