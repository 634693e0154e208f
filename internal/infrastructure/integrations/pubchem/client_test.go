package pubchem

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaref/pharmaref/internal/config"
	"github.com/pharmaref/pharmaref/internal/domain/compound"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
)

func testConfig(baseURL string) config.PubChemConfig {
	return config.PubChemConfig{BaseURL: baseURL, Timeout: 2 * time.Second}
}

func TestFetchByCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compound/cid/2244/property/"+propertyList+"/JSON", r.URL.Path)
		w.Write([]byte(`{"PropertyTable": {"Properties": [{
			"CID": 2244,
			"IUPACName": "2-acetyloxybenzoic acid",
			"MolecularFormula": "C9H8O4",
			"MolecularWeight": "180.16",
			"CanonicalSMILES": "CC(=O)OC1=CC=CC=C1C(=O)O",
			"InChI": "InChI=1S/C9H8O4/c1-6(10)13-8-5-3-2-4-7(8)9(11)12/h2-5H,1H3,(H,11,12)",
			"InChIKey": "BSYNRYMUTXBXSQ-UHFFFAOYSA-N"
		}]}}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), logging.NewNopLogger())
	require.NoError(t, err)

	props, err := c.FetchByCID(context.Background(), 2244)
	require.NoError(t, err)
	assert.Equal(t, int64(2244), props.CID)
	assert.Equal(t, "C9H8O4", props.MolecularFormula)
	require.NotNil(t, props.MolecularWeight)
	assert.InDelta(t, 180.16, *props.MolecularWeight, 0.001)
}

func TestFetchByCIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), logging.NewNopLogger())
	require.NoError(t, err)

	_, err = c.FetchByCID(context.Background(), 99999999)
	assert.ErrorIs(t, err, ErrCompoundNotFound)
}

func TestFetchByCIDRejectsNonPositive(t *testing.T) {
	c, err := NewClient(testConfig("http://example.invalid"), logging.NewNopLogger())
	require.NoError(t, err)

	_, err = c.FetchByCID(context.Background(), 0)
	require.Error(t, err)
}

func TestResolveCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compound/name/aspirin/cids/JSON", r.URL.Path)
		w.Write([]byte(`{"IdentifierList": {"CID": [2244, 517180]}}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), logging.NewNopLogger())
	require.NoError(t, err)

	cid, err := c.ResolveCID(context.Background(), "aspirin")
	require.NoError(t, err)
	assert.Equal(t, int64(2244), cid, "first hit wins")
}

func TestResolveCIDEmptyName(t *testing.T) {
	c, err := NewClient(testConfig("http://example.invalid"), logging.NewNopLogger())
	require.NoError(t, err)

	_, err = c.ResolveCID(context.Background(), "  ")
	require.Error(t, err)
}

func TestPropertiesApply(t *testing.T) {
	w := 180.16
	props := &Properties{
		CID:              2244,
		IUPACName:        "2-acetyloxybenzoic acid",
		MolecularFormula: "C9H8O4",
		MolecularWeight:  &w,
		CanonicalSMILES:  "CC(=O)OC1=CC=CC=C1C(=O)O",
		InChIKey:         "BSYNRYMUTXBXSQ-UHFFFAOYSA-N",
	}

	c := compound.New("Aspirin")
	props.Apply(c)

	require.NotNil(t, c.CID)
	assert.Equal(t, int64(2244), *c.CID)
	assert.Equal(t, "C9H8O4", c.MolecularFormula)
	assert.Equal(t, "CC(=O)OC1=CC=CC=C1C(=O)O", c.SMILES)
	assert.NotNil(t, c.PubChemLastFetched)
}
