package mfds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaref/pharmaref/internal/config"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
)

func testConfig(baseURL string) config.MFDSConfig {
	return config.MFDSConfig{
		BaseURL:    baseURL,
		ServiceKey: "test-key",
		Timeout:    2 * time.Second,
		PageSize:   10,
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(config.MFDSConfig{ServiceKey: "k"}, logging.NewNopLogger())
	require.Error(t, err)

	_, err = NewClient(config.MFDSConfig{BaseURL: "http://example.com"}, logging.NewNopLogger())
	require.Error(t, err)
}

func TestFetchPermits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("serviceKey"))
		assert.Equal(t, "json", q.Get("type"))
		assert.Equal(t, "1", q.Get("pageNo"))
		assert.Equal(t, "10", q.Get("numOfRows"))
		assert.Equal(t, "aspirin", q.Get("item_name"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"header": {"resultCode": "00", "resultMsg": "NORMAL SERVICE."},
			"body": {
				"pageNo": 1, "numOfRows": 10, "totalCount": 2,
				"items": [
					{"ITEM_SEQ": "19990123", "ITEM_NAME": "Aspirin Protect Tab. 100mg",
					 "ENTP_NAME": "Bayer Korea", "ITEM_PERMIT_DATE": "19990415",
					 "MATERIAL_NAME": "총량 : 100mg|성분명 : 아스피린|분량 : 100|단위 : mg"},
					{"ITEM_SEQ": "20000456", "ITEM_NAME": "Combo Tab.",
					 "ENTP_NAME": "Acme Pharm", "ITEM_PERMIT_DATE": "20000101",
					 "MATERIAL_NAME": "성분명 : 아스피린;성분명 : 카페인무수물"}
				]
			}
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), logging.NewNopLogger())
	require.NoError(t, err)

	page, err := c.FetchPermits(context.Background(), "aspirin", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "19990123", page.Items[0].ItemSeq)
}

func TestFetchPermitsErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"header": {"resultCode": "30", "resultMsg": "SERVICE KEY IS NOT REGISTERED"}, "body": {}}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), logging.NewNopLogger())
	require.NoError(t, err)

	_, err = c.FetchPermits(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestFetchPermitsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"header": {"resultCode": "00"}, "body": {"pageNo": 1, "totalCount": 0, "items": []}}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL), logging.NewNopLogger())
	require.NoError(t, err)

	page, err := c.FetchPermits(context.Background(), "", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalCount)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPermitItemToProduct(t *testing.T) {
	item := PermitItem{
		ItemSeq:        "19990123",
		ItemName:       "Aspirin Protect Tab. 100mg",
		EntpName:       " Bayer Korea ",
		ItemPermitDate: "19990415",
		MaterialName:   "총량 : 100mg|성분명 : 아스피린|분량 : 100|단위 : mg",
	}

	p, ingredients := item.ToProduct()
	assert.Equal(t, "Aspirin Protect Tab. 100mg", p.ProductName)
	assert.Equal(t, "19990123", p.PermitNumber)
	assert.Equal(t, "Bayer Korea", p.Manufacturer)
	assert.False(t, p.IsCombination)
	require.NotNil(t, p.PermitDate)
	assert.Equal(t, 1999, p.PermitDate.Year())
	require.Len(t, ingredients, 1)
	assert.Equal(t, "아스피린", ingredients[0].RawIngredientName)
}

func TestParseMaterialNames(t *testing.T) {
	names := ParseMaterialNames("성분명 : 아스피린;성분명 : 카페인무수물;총량 : 무시")
	assert.Equal(t, []string{"아스피린", "카페인무수물"}, names)

	assert.Empty(t, ParseMaterialNames(""))
	assert.Empty(t, ParseMaterialNames("garbage without separators"))
}
