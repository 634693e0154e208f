// Package compound defines the chemical compound aggregate: the normalized
// registry of substances that products reference and similarity analyses
// compare.
package compound

import (
	"strings"
	"time"

	"github.com/pharmaref/pharmaref/pkg/errors"
)

// DefaultFingerprintType is the fingerprint algorithm recorded for compounds
// whose structure has been fingerprinted by the external analysis engine.
const DefaultFingerprintType = "Morgan_r2_2048"

// smilesAllowed is the character set accepted in SMILES strings.  This is a
// syntactic sanity check, not a chemistry parser; structural validation is the
// analysis engine's job.
const smilesAllowed = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789()[]{}@+-=#$%.\\/:*"

// Compound is the aggregate root for the compound domain.  StandardName is the
// unique normalized name; CID is the optional PubChem compound identifier.
type Compound struct {
	ID                 int64
	StandardName       string
	IUPACName          string
	CID                *int64
	MolecularFormula   string
	MolecularWeight    *float64
	SMILES             string
	InChI              string
	InChIKey           string
	FingerprintMorgan  []byte
	FingerprintType    string
	IsValid            bool
	ValidationError    string
	PubChemLastFetched *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// New constructs a Compound with domain defaults applied.
func New(standardName string) *Compound {
	now := time.Now().UTC()
	return &Compound{
		StandardName:    strings.TrimSpace(standardName),
		FingerprintType: DefaultFingerprintType,
		IsValid:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate checks the invariants that do not require repository access.
// Uniqueness of StandardName and CID is enforced by the repository layer.
func (c *Compound) Validate() error {
	name := strings.TrimSpace(c.StandardName)
	if len(name) < 2 {
		return errors.New(errors.ErrCodeCompoundInvalidName,
			"standard_name must be at least 2 characters")
	}
	if c.CID != nil && *c.CID <= 0 {
		return errors.New(errors.ErrCodeCompoundInvalidCID, "cid must be a positive integer")
	}
	if c.SMILES != "" {
		for _, r := range c.SMILES {
			if !strings.ContainsRune(smilesAllowed, r) {
				return errors.New(errors.ErrCodeCompoundInvalidSMILES,
					"smiles contains unsupported characters")
			}
		}
	}
	return nil
}

// HasStructureData reports whether the compound carries both a SMILES string
// and a generated Morgan fingerprint.  A compound missing either is not yet
// usable for similarity analysis.
func (c *Compound) HasStructureData() bool {
	return c.SMILES != "" && len(c.FingerprintMorgan) > 0
}

// HasFingerprint reports whether the compound has a generated fingerprint.
func (c *Compound) HasFingerprint() bool {
	return len(c.FingerprintMorgan) > 0
}

// HasCID reports whether a PubChem CID is recorded.
func (c *Compound) HasCID() bool {
	return c.CID != nil
}

// MatchType labels how a search result matched the query.
type MatchType string

const (
	MatchExact   MatchType = "EXACT"
	MatchPartial MatchType = "PARTIAL"
	MatchCID     MatchType = "CID"
)

// SearchType selects the compound search strategy.
type SearchType string

const (
	SearchByName   SearchType = "name"
	SearchByCID    SearchType = "cid"
	SearchBySMILES SearchType = "smiles"
)

// SearchResult pairs a compound with how it matched the query.
type SearchResult struct {
	Compound  *Compound
	MatchType MatchType
}
