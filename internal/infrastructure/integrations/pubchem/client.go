// Package pubchem enriches compounds with structure data from the PubChem
// PUG REST API.
package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pharmaref/pharmaref/internal/config"
	"github.com/pharmaref/pharmaref/internal/domain/compound"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

const (
	defaultTimeout = 10 * time.Second
	retryAttempts  = 3
	retryDelay     = 500 * time.Millisecond

	propertyList = "IUPACName,MolecularFormula,MolecularWeight,CanonicalSMILES,InChI,InChIKey"
)

var (
	ErrCompoundNotFound    = errors.New(errors.ErrCodeCompoundNotFound, "pubchem has no record for this identifier")
	ErrUpstreamUnavailable = errors.New(errors.ErrCodeServiceUnavailable, "pubchem api unavailable")
	ErrInvalidConfig       = errors.New(errors.ErrCodeValidation, "invalid pubchem configuration")
)

// Properties is the structure record PubChem returns for one CID.
type Properties struct {
	CID              int64
	IUPACName        string
	MolecularFormula string
	MolecularWeight  *float64
	CanonicalSMILES  string
	InChI            string
	InChIKey         string
}

// Client is the PubChem PUG REST contract.
type Client interface {
	// FetchByCID returns the structure properties for one PubChem CID.
	FetchByCID(ctx context.Context, cid int64) (*Properties, error)

	// ResolveCID looks up the CID for a compound name.
	ResolveCID(ctx context.Context, name string) (int64, error)
}

// ClientOption configures the client.
type ClientOption func(*client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = hc
	}
}

type client struct {
	cfg        config.PubChemConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient builds a PubChem client from configuration.
func NewClient(cfg config.PubChemConfig, logger logging.Logger, opts ...ClientOption) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Wrap(ErrInvalidConfig, errors.ErrCodeValidation, "base_url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("pubchem-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// propertyResponse mirrors the PUG REST property table.  MolecularWeight is
// a string in current API versions.
type propertyResponse struct {
	PropertyTable struct {
		Properties []struct {
			CID              int64  `json:"CID"`
			IUPACName        string `json:"IUPACName"`
			MolecularFormula string `json:"MolecularFormula"`
			MolecularWeight  string `json:"MolecularWeight"`
			CanonicalSMILES  string `json:"CanonicalSMILES"`
			InChI            string `json:"InChI"`
			InChIKey         string `json:"InChIKey"`
		} `json:"Properties"`
	} `json:"PropertyTable"`
}

func (c *client) FetchByCID(ctx context.Context, cid int64) (*Properties, error) {
	if cid <= 0 {
		return nil, errors.New(errors.ErrCodeCompoundInvalidCID, "cid must be a positive integer")
	}

	endpoint := fmt.Sprintf("%s/compound/cid/%d/property/%s/JSON",
		strings.TrimRight(c.cfg.BaseURL, "/"), cid, propertyList)

	var envelope propertyResponse
	if err := c.getJSON(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.PropertyTable.Properties) == 0 {
		return nil, ErrCompoundNotFound
	}

	raw := envelope.PropertyTable.Properties[0]
	props := &Properties{
		CID:              raw.CID,
		IUPACName:        raw.IUPACName,
		MolecularFormula: raw.MolecularFormula,
		CanonicalSMILES:  raw.CanonicalSMILES,
		InChI:            raw.InChI,
		InChIKey:         raw.InChIKey,
	}
	if w, err := strconv.ParseFloat(raw.MolecularWeight, 64); err == nil {
		props.MolecularWeight = &w
	}
	return props, nil
}

func (c *client) ResolveCID(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New(errors.ErrCodeSearchQueryInvalid, "compound name must not be empty")
	}

	endpoint := fmt.Sprintf("%s/compound/name/%s/cids/JSON",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(name))

	var envelope struct {
		IdentifierList struct {
			CID []int64 `json:"CID"`
		} `json:"IdentifierList"`
	}
	if err := c.getJSON(ctx, endpoint, &envelope); err != nil {
		return 0, err
	}
	if len(envelope.IdentifierList.CID) == 0 {
		return 0, ErrCompoundNotFound
	}
	return envelope.IdentifierList.CID[0], nil
}

func (c *client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to build pubchem request")
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return ErrUpstreamUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrCompoundNotFound
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("PubChem request failed", logging.Int("status", resp.StatusCode))
		return ErrUpstreamUnavailable
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to decode pubchem response")
	}
	return nil
}

func (c *client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	for i := 0; i <= retryAttempts; i++ {
		if i > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(retryDelay * time.Duration(1<<i)):
			}
		}
		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		if resp != nil {
			resp.Body.Close()
		}
	}
	return nil, err
}

// Apply copies the fetched structure data onto a compound and stamps the
// fetch time.
func (p *Properties) Apply(c *compound.Compound) {
	cid := p.CID
	c.CID = &cid
	if p.IUPACName != "" {
		c.IUPACName = p.IUPACName
	}
	if p.MolecularFormula != "" {
		c.MolecularFormula = p.MolecularFormula
	}
	if p.MolecularWeight != nil {
		c.MolecularWeight = p.MolecularWeight
	}
	if p.CanonicalSMILES != "" {
		c.SMILES = p.CanonicalSMILES
	}
	if p.InChI != "" {
		c.InChI = p.InChI
	}
	if p.InChIKey != "" {
		c.InChIKey = p.InChIKey
	}
	now := time.Now().UTC()
	c.PubChemLastFetched = &now
}
