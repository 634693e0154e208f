package compound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaref/pharmaref/pkg/errors"
)

func int64Ptr(v int64) *int64 { return &v }

func TestNewAppliesDefaults(t *testing.T) {
	c := New("  Aspirin  ")
	assert.Equal(t, "Aspirin", c.StandardName)
	assert.Equal(t, DefaultFingerprintType, c.FingerprintType)
	assert.True(t, c.IsValid)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestValidateStandardName(t *testing.T) {
	c := New("A")
	err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCompoundInvalidName, errors.GetCode(err))

	c = New("  x ")
	assert.Error(t, c.Validate())

	c = New("Ibuprofen")
	assert.NoError(t, c.Validate())
}

func TestValidateCID(t *testing.T) {
	c := New("Aspirin")
	c.CID = int64Ptr(0)
	err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCompoundInvalidCID, errors.GetCode(err))

	c.CID = int64Ptr(-5)
	assert.Error(t, c.Validate())

	c.CID = int64Ptr(2244)
	assert.NoError(t, c.Validate())

	c.CID = nil
	assert.NoError(t, c.Validate())
}

func TestValidateSMILES(t *testing.T) {
	c := New("Aspirin")
	c.SMILES = "CC(=O)OC1=CC=CC=C1C(=O)O"
	assert.NoError(t, c.Validate())

	c.SMILES = "CC(=O)!bogus"
	err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCompoundInvalidSMILES, errors.GetCode(err))

	c.SMILES = ""
	assert.NoError(t, c.Validate())
}

func TestHasStructureData(t *testing.T) {
	c := New("Aspirin")
	assert.False(t, c.HasStructureData())

	c.SMILES = "CC(=O)OC1=CC=CC=C1C(=O)O"
	assert.False(t, c.HasStructureData(), "smiles alone is not enough")

	c.FingerprintMorgan = []byte{0x0f, 0xa0}
	assert.True(t, c.HasStructureData())

	c.SMILES = ""
	assert.False(t, c.HasStructureData(), "fingerprint alone is not enough")
}

func TestHasCID(t *testing.T) {
	c := New("Aspirin")
	assert.False(t, c.HasCID())
	c.CID = int64Ptr(2244)
	assert.True(t, c.HasCID())
}
