package ratetable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxflow/backend/internal/domain/shared/valueobject"
)

func newTestSource(t *testing.T, handler http.Handler) (*HTTPRateSource, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	source, err := NewHTTPRateSource(&Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return source, server
}

func TestConfigValidate(t *testing.T) {
	err := (&Config{}).Validate()
	assert.ErrorContains(t, err, "base URL is required")

	assert.NoError(t, (&Config{BaseURL: "http://rates.local"}).Validate())
}

func TestRatesByPostal(t *testing.T) {
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/taxrates/bypostalcode", r.URL.Path)
		assert.Equal(t, "US", r.URL.Query().Get("country"))
		assert.Equal(t, "94105", r.URL.Query().Get("postalCode"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(RateResult{
			TotalRate: decimal.RequireFromString("0.0863"),
			Rates: []JurisdictionRate{
				{Name: "CA STATE TAX", Type: "State", Rate: decimal.RequireFromString("0.0625")},
				{Name: "SF CITY TAX", Type: "City", Rate: decimal.RequireFromString("0.0238")},
			},
		})
	}))

	result, err := source.RatesByPostal(context.Background(), "US", "94105")
	require.NoError(t, err)
	assert.True(t, result.TotalRate.Equal(decimal.RequireFromString("0.0863")))
	require.Len(t, result.Rates, 2)
	assert.Equal(t, "CA STATE TAX", result.Rates[0].Name)
	assert.Equal(t, "City", result.Rates[1].Type)
}

func TestRatesByAddress(t *testing.T) {
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/taxrates/byaddress", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1 Market St", q.Get("line1"))
		assert.Equal(t, "San Francisco", q.Get("city"))
		assert.Equal(t, "CA", q.Get("region"))
		assert.Equal(t, "94105", q.Get("postalCode"))
		assert.Equal(t, "US", q.Get("country"))

		json.NewEncoder(w).Encode(RateResult{TotalRate: decimal.RequireFromString("0.0863")})
	}))

	addr := valueobject.NewAddress("1 Market St", "San Francisco", "CA", "94105", "US")
	result, err := source.RatesByAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, result.TotalRate.Equal(decimal.RequireFromString("0.0863")))
}

func TestRateLookupServiceError(t *testing.T) {
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("unknown postal code"))
	}))

	_, err := source.RatesByPostal(context.Background(), "US", "00000")
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
	assert.Contains(t, svcErr.Message, "unknown postal code")
}

func TestRateLookupTransportError(t *testing.T) {
	t.Run("unreachable server", func(t *testing.T) {
		source, server := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := source.RatesByPostal(context.Background(), "US", "94105")
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
	})

	t.Run("malformed response body", func(t *testing.T) {
		source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))

		_, err := source.RatesByPostal(context.Background(), "US", "94105")
		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
	})
}
