// Package mfds fetches drug product permits from the MFDS (Korean Ministry
// of Food and Drug Safety) open API.  Responses are mapped into the product
// domain for ingestion.
package mfds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pharmaref/pharmaref/internal/config"
	"github.com/pharmaref/pharmaref/internal/domain/product"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/pkg/errors"
)

const (
	defaultPageSize = 100
	defaultTimeout  = 15 * time.Second
	retryAttempts   = 3
	retryDelay      = 500 * time.Millisecond

	permitDateLayout = "20060102"

	// resultCodeOK is the MFDS "NORMAL SERVICE" header code.
	resultCodeOK = "00"
)

var (
	ErrUpstreamUnavailable = errors.New(errors.ErrCodeServiceUnavailable, "mfds api unavailable")
	ErrBadResponse         = errors.New(errors.ErrCodeInternal, "mfds api returned an unexpected response")
	ErrInvalidConfig       = errors.New(errors.ErrCodeValidation, "invalid mfds configuration")
)

// PermitItem is one drug permit row as the MFDS API returns it.
type PermitItem struct {
	ItemSeq        string `json:"ITEM_SEQ"`
	ItemName       string `json:"ITEM_NAME"`
	EntpName       string `json:"ENTP_NAME"`
	ItemPermitDate string `json:"ITEM_PERMIT_DATE"`
	MaterialName   string `json:"MATERIAL_NAME"`
	EtcOtcCode     string `json:"ETC_OTC_CODE"`
	CancelName     string `json:"CANCEL_NAME"`
}

// PermitPage is one page of permit rows with paging metadata.
type PermitPage struct {
	PageNo     int
	NumOfRows  int
	TotalCount int
	Items      []PermitItem
}

// Client is the MFDS permit API contract.
type Client interface {
	// FetchPermits returns one page of permits, optionally filtered by item
	// name.
	FetchPermits(ctx context.Context, itemName string, pageNo int) (*PermitPage, error)
	Health(ctx context.Context) error
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
	cfg        config.MFDSConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient builds an MFDS client from configuration.
func NewClient(cfg config.MFDSConfig, logger logging.Logger, opts ...ClientOption) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Wrap(ErrInvalidConfig, errors.ErrCodeValidation, "base_url is required")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.Wrap(ErrInvalidConfig, errors.ErrCodeValidation, "service_key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultPageSize
	}

	c := &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("mfds-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// permitResponse mirrors the MFDS envelope: a header with a result code and
// a body with paging metadata and rows.
type permitResponse struct {
	Header struct {
		ResultCode string `json:"resultCode"`
		ResultMsg  string `json:"resultMsg"`
	} `json:"header"`
	Body struct {
		PageNo     int          `json:"pageNo"`
		NumOfRows  int          `json:"numOfRows"`
		TotalCount int          `json:"totalCount"`
		Items      []PermitItem `json:"items"`
	} `json:"body"`
}

func (c *client) FetchPermits(ctx context.Context, itemName string, pageNo int) (*PermitPage, error) {
	if pageNo <= 0 {
		pageNo = 1
	}

	q := url.Values{}
	q.Set("serviceKey", c.cfg.ServiceKey)
	q.Set("type", "json")
	q.Set("pageNo", fmt.Sprintf("%d", pageNo))
	q.Set("numOfRows", fmt.Sprintf("%d", c.cfg.PageSize))
	if itemName != "" {
		q.Set("item_name", itemName)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build mfds request")
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return nil, ErrUpstreamUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("MFDS request failed",
			logging.Int("status", resp.StatusCode), logging.Int("page", pageNo))
		return nil, ErrUpstreamUnavailable
	}

	var envelope permitResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode mfds response")
	}
	if envelope.Header.ResultCode != resultCodeOK {
		c.logger.Warn("MFDS returned error code",
			logging.String("code", envelope.Header.ResultCode),
			logging.String("msg", envelope.Header.ResultMsg))
		return nil, ErrBadResponse
	}

	return &PermitPage{
		PageNo:     envelope.Body.PageNo,
		NumOfRows:  envelope.Body.NumOfRows,
		TotalCount: envelope.Body.TotalCount,
		Items:      envelope.Body.Items,
	}, nil
}

func (c *client) Health(ctx context.Context) error {
	page, err := c.FetchPermits(ctx, "", 1)
	if err != nil {
		return err
	}
	if page.TotalCount < 0 {
		return ErrBadResponse
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
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if resp != nil {
			resp.Body.Close()
		}
	}
	return nil, err
}

// ToProduct maps one permit row into a product aggregate plus its raw
// ingredient rows.  A non-empty CANCEL_NAME marks a withdrawn permit.
func (i PermitItem) ToProduct() (*product.Product, []*product.ProductIngredient) {
	p := product.New(i.ItemName, i.ItemSeq)
	p.Manufacturer = strings.TrimSpace(i.EntpName)

	if d, err := time.Parse(permitDateLayout, i.ItemPermitDate); err == nil {
		p.PermitDate = &d
	}

	names := ParseMaterialNames(i.MaterialName)
	p.IsCombination = len(names) > 1

	ingredients := make([]*product.ProductIngredient, 0, len(names))
	for _, name := range names {
		ingredients = append(ingredients, product.NewIngredient(0, name))
	}
	return p, ingredients
}

// ParseMaterialNames extracts ingredient names from the MFDS MATERIAL_NAME
// field.  Rows are separated by ";", fields within a row by "|", each field
// "key : value"; the name sits in the 성분명 field.
func ParseMaterialNames(raw string) []string {
	var names []string
	for _, row := range strings.Split(raw, ";") {
		for _, field := range strings.Split(row, "|") {
			k, v, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			if strings.TrimSpace(k) != "성분명" {
				continue
			}
			if name := strings.TrimSpace(v); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
