package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompoundsSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/compounds/search", r.URL.Path)
		assert.Equal(t, "aspirin", r.URL.Query().Get("q"))
		assert.Equal(t, "name", r.URL.Query().Get("type"))
		writeTestJSON(t, w, http.StatusOK, CompoundSearchResponse{
			Query: "aspirin",
			Type:  "name",
			Count: 1,
			Results: []CompoundSearchResult{
				{ID: 1, StandardName: "Aspirin", MatchType: "EXACT"},
			},
		})
	})

	resp, err := c.Compounds().Search(context.Background(), "aspirin", "name")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "EXACT", resp.Results[0].MatchType)
}

func TestCompoundsSearchRequiresQuery(t *testing.T) {
	c, err := NewClient("https://api.pharmaref.io")
	require.NoError(t, err)

	_, err = c.Compounds().Search(context.Background(), "", "name")
	assert.Error(t, err)
}

func TestCompoundsListBuildsQuery(t *testing.T) {
	valid := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("is_valid"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("page_size"))
		assert.Empty(t, r.URL.Query().Get("has_structure"))
		writeTestJSON(t, w, http.StatusOK, ListEnvelope[CompoundSummary]{
			Count: 1, Page: 1, PageSize: 20,
			Results: []CompoundSummary{{ID: 1, StandardName: "Aspirin", ProductCount: 3}},
		})
	})

	resp, err := c.Compounds().List(context.Background(), CompoundListOptions{IsValid: &valid})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Count)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, int64(3), resp.Results[0].ProductCount)
}

func TestCompoundsListClampsPageSize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		writeTestJSON(t, w, http.StatusOK, ListEnvelope[CompoundSummary]{})
	})

	_, err := c.Compounds().List(context.Background(), CompoundListOptions{PageSize: 5000})
	require.NoError(t, err)
}

func TestCompoundsGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/compounds/7", r.URL.Path)
		writeTestJSON(t, w, http.StatusOK, CompoundDetail{
			Compound:        Compound{ID: 7, StandardName: "Ibuprofen"},
			HasStructure:    true,
			SimilarityCount: 2,
		})
	})

	detail, err := c.Compounds().Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), detail.ID)
	assert.True(t, detail.HasStructure)
	assert.Equal(t, int64(2), detail.SimilarityCount)
}

func TestCompoundsGetRejectsNonPositiveID(t *testing.T) {
	c, err := NewClient("https://api.pharmaref.io")
	require.NoError(t, err)

	_, err = c.Compounds().Get(context.Background(), 0)
	assert.Error(t, err)
}

func TestCompoundsBulkCreate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/compounds/bulk", r.URL.Path)
		writeTestJSON(t, w, http.StatusCreated, map[string]int{"created": 2})
	})

	n, err := c.Compounds().BulkCreate(context.Background(), []CreateCompoundRequest{
		{StandardName: "Aspirin"},
		{StandardName: "Ibuprofen"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCompoundsSimilarTo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/compounds/1/similar", r.URL.Path)
		assert.Equal(t, "0.8", r.URL.Query().Get("min_score"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeTestJSON(t, w, http.StatusOK, SimilarCompoundsResponse{
			CompoundID:   1,
			CompoundName: "Aspirin",
			MinScore:     0.8,
			Count:        1,
			SimilarCompounds: []SimilarCompound{
				{CompoundID: 2, StandardName: "Salicylic acid", SimilarityScore: 0.89},
			},
		})
	})

	resp, err := c.Compounds().SimilarTo(context.Background(), 1, 0.8, 5)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", resp.CompoundName)
	require.Len(t, resp.SimilarCompounds, 1)
}

func TestCompoundsSimilarToValidatesScore(t *testing.T) {
	c, err := NewClient("https://api.pharmaref.io")
	require.NoError(t, err)

	_, err = c.Compounds().SimilarTo(context.Background(), 1, 1.5, 0)
	assert.Error(t, err)
}
