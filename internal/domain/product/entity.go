// Package product defines the drug product aggregate and its ingredient
// mappings: rows sourced from the MFDS permit registry, linked to normalized
// compounds once ingredient names have been resolved.
package product

import (
	"strings"
	"time"

	"github.com/pharmaref/pharmaref/pkg/errors"
)

// DefaultSource marks rows ingested from the MFDS national registry.
const DefaultSource = "MFDS"

// IngredientType classifies an ingredient's role in the formulation.
type IngredientType string

const (
	IngredientActive    IngredientType = "ACTIVE"
	IngredientExcipient IngredientType = "EXCIPIENT"
	IngredientUnknown   IngredientType = "UNKNOWN"
)

// NormalizationStatus tracks the lifecycle of mapping a raw ingredient name
// to a compound.  MANUAL marks rows resolved by a curator rather than the
// automated pipeline.
type NormalizationStatus string

const (
	NormalizationPending NormalizationStatus = "PENDING"
	NormalizationSuccess NormalizationStatus = "SUCCESS"
	NormalizationFailed  NormalizationStatus = "FAILED"
	NormalizationManual  NormalizationStatus = "MANUAL"
)

// Product is the aggregate root for the product domain.  PermitNumber is the
// regulator-issued identifier and is unique.
type Product struct {
	ID            int64
	ProductName   string
	PermitNumber  string
	Manufacturer  string
	IsCombination bool
	Source        string
	PermitDate    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New constructs a Product with domain defaults applied.
func New(productName, permitNumber string) *Product {
	now := time.Now().UTC()
	return &Product{
		ProductName:  strings.TrimSpace(productName),
		PermitNumber: strings.TrimSpace(permitNumber),
		Source:       DefaultSource,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the invariants that do not require repository access.
// Uniqueness of PermitNumber is enforced by the repository layer.
func (p *Product) Validate() error {
	if len(strings.TrimSpace(p.ProductName)) < 2 {
		return errors.New(errors.ErrCodeProductInvalidName,
			"product_name must be at least 2 characters")
	}
	if strings.TrimSpace(p.PermitNumber) == "" {
		return errors.InvalidParam("permit_number is required")
	}
	return nil
}

// ProductIngredient maps one raw ingredient line of a product to a compound.
// CompoundID is nil until normalization succeeds, and reverts to nil when the
// referenced compound is deleted.
type ProductIngredient struct {
	ID                  int64
	ProductID           int64
	CompoundID          *int64
	RawIngredientName   string
	Content             string
	Unit                string
	IsMainActive        bool
	IngredientType      IngredientType
	NormalizationStatus NormalizationStatus
	NormalizationError  string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewIngredient constructs a ProductIngredient with domain defaults applied.
func NewIngredient(productID int64, rawName string) *ProductIngredient {
	now := time.Now().UTC()
	return &ProductIngredient{
		ProductID:           productID,
		RawIngredientName:   strings.TrimSpace(rawName),
		IsMainActive:        true,
		IngredientType:      IngredientActive,
		NormalizationStatus: NormalizationPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Validate checks the ingredient's local invariants.
func (i *ProductIngredient) Validate() error {
	if i.ProductID <= 0 {
		return errors.InvalidParam("product_id is required")
	}
	if strings.TrimSpace(i.RawIngredientName) == "" {
		return errors.InvalidParam("raw_ingredient_name is required")
	}
	switch i.IngredientType {
	case IngredientActive, IngredientExcipient, IngredientUnknown:
	default:
		return errors.InvalidParam("ingredient_type must be ACTIVE, EXCIPIENT or UNKNOWN")
	}
	switch i.NormalizationStatus {
	case NormalizationPending, NormalizationSuccess, NormalizationFailed, NormalizationManual:
	default:
		return errors.InvalidParam("normalization_status must be PENDING, SUCCESS, FAILED or MANUAL")
	}
	return nil
}

// IsNormalized reports whether the ingredient has been mapped to a compound.
func (i *ProductIngredient) IsNormalized() bool {
	return i.CompoundID != nil
}
