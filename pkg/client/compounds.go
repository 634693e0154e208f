package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Compound is a single compound record.
type Compound struct {
	ID                 int64    `json:"id"`
	StandardName       string   `json:"standard_name"`
	IUPACName          string   `json:"iupac_name"`
	CID                *int64   `json:"cid"`
	MolecularFormula   string   `json:"molecular_formula"`
	MolecularWeight    *float64 `json:"molecular_weight"`
	SMILES             string   `json:"smiles"`
	InChI              string   `json:"inchi"`
	InChIKey           string   `json:"inchi_key"`
	FingerprintType    string   `json:"fingerprint_type"`
	IsValid            bool     `json:"is_valid"`
	ValidationError    string   `json:"validation_error,omitempty"`
	PubChemLastFetched string   `json:"pubchem_last_fetched,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// CompoundSummary is one row of the compound listing.
type CompoundSummary struct {
	ID               int64    `json:"id"`
	StandardName     string   `json:"standard_name"`
	CID              *int64   `json:"cid"`
	MolecularFormula string   `json:"molecular_formula"`
	MolecularWeight  *float64 `json:"molecular_weight"`
	IsValid          bool     `json:"is_valid"`
	HasStructure     bool     `json:"has_structure"`
	ProductCount     int64    `json:"product_count"`
	CreatedAt        string   `json:"created_at"`
}

// RelatedProduct is the compact product reference in a compound detail.
type RelatedProduct struct {
	ID           int64  `json:"id"`
	ProductName  string `json:"product_name"`
	IsMainActive bool   `json:"is_main_active"`
}

// CompoundDetail is the full compound view.
type CompoundDetail struct {
	Compound
	HasStructure    bool             `json:"has_structure"`
	HasFingerprint  bool             `json:"has_fingerprint"`
	SimilarityCount int64            `json:"similarity_count"`
	RelatedProducts []RelatedProduct `json:"related_products"`
}

// CreateCompoundRequest is the body for Create and BulkCreate.
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

// UpdateCompoundRequest is the partial-update body. Nil fields are left
// untouched by the server.
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

// CompoundListOptions filters the compound listing.
type CompoundListOptions struct {
	IsValid      *bool
	HasStructure *bool
	HasCID       *bool
	MinWeight    *float64
	MaxWeight    *float64
	Page         int
	PageSize     int
}

// CompoundSearchResult is one search hit.
type CompoundSearchResult struct {
	ID               int64    `json:"id"`
	StandardName     string   `json:"standard_name"`
	CID              *int64   `json:"cid"`
	MolecularFormula string   `json:"molecular_formula"`
	MolecularWeight  *float64 `json:"molecular_weight"`
	IsValid          bool     `json:"is_valid"`
	MatchType        string   `json:"match_type"`
}

// CompoundSearchResponse is the search envelope.
type CompoundSearchResponse struct {
	Query   string                 `json:"query"`
	Type    string                 `json:"type"`
	Count   int                    `json:"count"`
	Results []CompoundSearchResult `json:"results"`
}

// SimilarCompound is one neighbor in a similarity lookup.
type SimilarCompound struct {
	CompoundID        int64   `json:"compound_id"`
	StandardName      string  `json:"standard_name"`
	CID               *int64  `json:"cid"`
	MolecularFormula  string  `json:"molecular_formula"`
	SimilarityScore   float64 `json:"similarity_score"`
	FingerprintMethod string  `json:"fingerprint_method"`
}

// SimilarCompoundsResponse is the envelope for SimilarTo.
type SimilarCompoundsResponse struct {
	CompoundID       int64             `json:"compound_id"`
	CompoundName     string            `json:"compound_name"`
	MinScore         float64           `json:"min_score"`
	Count            int               `json:"count"`
	SimilarCompounds []SimilarCompound `json:"similar_compounds"`
}

// CompoundProductsResponse lists the products containing a compound.
type CompoundProductsResponse struct {
	CompoundID int64            `json:"compound_id"`
	Count      int              `json:"count"`
	Products   []ProductContent `json:"products"`
}

// ProductContent is one product row in a compound-to-products lookup.
type ProductContent struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	PermitNumber string `json:"permit_number"`
	Manufacturer string `json:"manufacturer"`
	IsMainActive bool   `json:"is_main_active"`
	Content      string `json:"content"`
	Unit         string `json:"unit"`
}

// CompoundStatistics is the aggregate compound report.
type CompoundStatistics struct {
	Total              int64            `json:"total_compounds"`
	Valid              int64            `json:"valid_compounds"`
	Invalid            int64            `json:"invalid_compounds"`
	WithPubChemCID     int64            `json:"with_pubchem_cid"`
	WithStructureData  int64            `json:"with_structure_data"`
	WeightDistribution map[string]int64 `json:"weight_distribution"`
}

// CompoundsClient provides access to compound endpoints.
type CompoundsClient struct {
	client *Client
}

// List retrieves a filtered page of compounds.
// GET /api/v1/compounds
func (cc *CompoundsClient) List(ctx context.Context, opts CompoundListOptions) (*ListEnvelope[CompoundSummary], error) {
	page, pageSize := clampPagination(opts.Page, opts.PageSize)

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if opts.IsValid != nil {
		q.Set("is_valid", strconv.FormatBool(*opts.IsValid))
	}
	if opts.HasStructure != nil {
		q.Set("has_structure", strconv.FormatBool(*opts.HasStructure))
	}
	if opts.HasCID != nil {
		q.Set("has_cid", strconv.FormatBool(*opts.HasCID))
	}
	if opts.MinWeight != nil {
		q.Set("min_weight", strconv.FormatFloat(*opts.MinWeight, 'f', -1, 64))
	}
	if opts.MaxWeight != nil {
		q.Set("max_weight", strconv.FormatFloat(*opts.MaxWeight, 'f', -1, 64))
	}

	var resp ListEnvelope[CompoundSummary]
	if err := cc.client.get(ctx, "/api/v1/compounds?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create registers a new compound.
// POST /api/v1/compounds
func (cc *CompoundsClient) Create(ctx context.Context, req *CreateCompoundRequest) (*Compound, error) {
	if req == nil || req.StandardName == "" {
		return nil, invalidArg("standard_name is required")
	}
	var resp Compound
	if err := cc.client.post(ctx, "/api/v1/compounds", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BulkCreate registers a batch of compounds atomically and returns the number
// created.
// POST /api/v1/compounds/bulk
func (cc *CompoundsClient) BulkCreate(ctx context.Context, compounds []CreateCompoundRequest) (int, error) {
	if len(compounds) == 0 {
		return 0, invalidArg("compounds list is required")
	}
	body := map[string][]CreateCompoundRequest{"compounds": compounds}
	var resp struct {
		Created int `json:"created"`
	}
	if err := cc.client.post(ctx, "/api/v1/compounds/bulk", body, &resp); err != nil {
		return 0, err
	}
	return resp.Created, nil
}

// Get retrieves a compound by ID.
// GET /api/v1/compounds/{id}
func (cc *CompoundsClient) Get(ctx context.Context, id int64) (*CompoundDetail, error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}
	var resp CompoundDetail
	if err := cc.client.get(ctx, fmt.Sprintf("/api/v1/compounds/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update applies a partial update to a compound.
// PATCH /api/v1/compounds/{id}
func (cc *CompoundsClient) Update(ctx context.Context, id int64, req *UpdateCompoundRequest) (*Compound, error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}
	if req == nil {
		return nil, invalidArg("update request is required")
	}
	var resp Compound
	if err := cc.client.patch(ctx, fmt.Sprintf("/api/v1/compounds/%d", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a compound.
// DELETE /api/v1/compounds/{id}
func (cc *CompoundsClient) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalidArg("id must be a positive integer")
	}
	return cc.client.delete(ctx, fmt.Sprintf("/api/v1/compounds/%d", id))
}

// Statistics retrieves the aggregate compound report.
// GET /api/v1/compounds/statistics
func (cc *CompoundsClient) Statistics(ctx context.Context) (*CompoundStatistics, error) {
	var resp CompoundStatistics
	if err := cc.client.get(ctx, "/api/v1/compounds/statistics", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search looks compounds up by name, PubChem CID or SMILES fragment.
// GET /api/v1/compounds/search?q={q}&type={searchType}
func (cc *CompoundsClient) Search(ctx context.Context, query, searchType string) (*CompoundSearchResponse, error) {
	if query == "" {
		return nil, invalidArg("query is required")
	}

	q := url.Values{}
	q.Set("q", query)
	if searchType != "" {
		q.Set("type", searchType)
	}

	var resp CompoundSearchResponse
	if err := cc.client.get(ctx, "/api/v1/compounds/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Products lists the products that contain a compound.
// GET /api/v1/compounds/{id}/products
func (cc *CompoundsClient) Products(ctx context.Context, id int64, isMainActive *bool) (*CompoundProductsResponse, error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}

	path := fmt.Sprintf("/api/v1/compounds/%d/products", id)
	if isMainActive != nil {
		path += "?is_main_active=" + strconv.FormatBool(*isMainActive)
	}

	var resp CompoundProductsResponse
	if err := cc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SimilarTo lists compounds similar to the given one. minScore and limit are
// optional; pass 0 to accept the server defaults.
// GET /api/v1/compounds/{id}/similar
func (cc *CompoundsClient) SimilarTo(ctx context.Context, id int64, minScore float64, limit int) (*SimilarCompoundsResponse, error) {
	if id <= 0 {
		return nil, invalidArg("id must be a positive integer")
	}
	if minScore < 0 || minScore > 1.0 {
		return nil, invalidArg("min_score must be between 0.0 and 1.0")
	}

	q := url.Values{}
	if minScore > 0 {
		q.Set("min_score", strconv.FormatFloat(minScore, 'f', -1, 64))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := fmt.Sprintf("/api/v1/compounds/%d/similar", id)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp SimilarCompoundsResponse
	if err := cc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
