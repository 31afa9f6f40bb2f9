package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-01-08", r.URL.Query().Get("date"))
		w.Write([]byte(`{
			"snapshot": {
				"index_close": 4077.72,
				"index_change_pct": -0.2,
				"turnover_trillions": "3.45",
				"leverage_ratio": 2.53,
				"main_net_inflow": -633.24,
				"retail_net_inflow": 576.26,
				"win_rate": 40.9,
				"sectors": {
					"strong": [{"name": "coal", "value": 90.3}],
					"weak": [{"name": "brokers", "value": 9.8}]
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	snap, err := client.Fetch(context.Background(), "2026-01-08")
	require.NoError(t, err)
	assert.Equal(t, 4077.72, snap.IndexClose)
	assert.Equal(t, "3.45", snap.TurnoverTrillions)
	assert.Equal(t, "-633.24", snap.MainNetInflow.String())
	require.Len(t, snap.Sectors.Strong, 1)
	assert.Equal(t, "coal", snap.Sectors.Strong[0].Name)
}

func TestClient_FetchMarketClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"market_closed": true}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Fetch(context.Background(), "2026-01-10")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestClient_FetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Fetch(context.Background(), "2026-01-08")
	require.ErrorIs(t, err, ErrDataUnavailable)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_FetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := NewClient(server.URL).Fetch(context.Background(), "2026-01-08")
	assert.ErrorIs(t, err, ErrDataUnavailable)
}
