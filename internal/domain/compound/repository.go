package compound

import "context"

// Filter carries the optional list filters.  Nil pointer means "not filtered".
type Filter struct {
	IsValid      *bool
	HasStructure *bool
	HasCID       *bool
	MinWeight    *float64
	MaxWeight    *float64
	Page         int
	PageSize     int
}

// WeightDistribution buckets compounds by molecular weight.  Boundaries are
// half-open: a 500.0 Da compound falls in the 500-1000 bucket, not 200-500.
type WeightDistribution struct {
	Under200      int64 `json:"under_200"`
	From200To500  int64 `json:"200_to_500"`
	From500To1000 int64 `json:"500_to_1000"`
	Over1000      int64 `json:"over_1000"`
	Unknown       int64 `json:"unknown"`
}

// Statistics is the aggregate snapshot served by the statistics endpoint.
type Statistics struct {
	Total              int64              `json:"total_compounds"`
	Valid              int64              `json:"valid_compounds"`
	Invalid            int64              `json:"invalid_compounds"`
	WithPubChemCID     int64              `json:"with_pubchem_cid"`
	WithStructureData  int64              `json:"with_structure_data"`
	WeightDistribution WeightDistribution `json:"weight_distribution"`
}

// Repository is the persistence contract for compounds.  Implementations map
// unique-constraint violations to conflict errors and missing rows to
// not-found errors.
type Repository interface {
	Save(ctx context.Context, c *Compound) error
	BatchSave(ctx context.Context, compounds []*Compound) error
	FindByID(ctx context.Context, id int64) (*Compound, error)
	Update(ctx context.Context, c *Compound) error
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, filter Filter) ([]*Compound, int64, error)
	Statistics(ctx context.Context) (*Statistics, error)

	// FindByNameExact returns compounds whose standard name matches q
	// case-insensitively, ordered by id.
	FindByNameExact(ctx context.Context, q string) ([]*Compound, error)

	// FindByNamePartial returns compounds whose standard or IUPAC name
	// contains q case-insensitively, excluding the given ids, ordered by id.
	FindByNamePartial(ctx context.Context, q string, excludeIDs []int64) ([]*Compound, error)

	// FindByCID returns the compound with the given PubChem CID.
	FindByCID(ctx context.Context, cid int64) (*Compound, error)

	// FindBySMILES returns compounds whose SMILES equals or contains q,
	// compared case-insensitively, exact matches first, then ordered by id.
	FindBySMILES(ctx context.Context, q string) ([]*Compound, error)
}
