package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpose-triage/pkg/logger"
)

func TestClient_NearbySearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nearbysearch/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "28.6139,77.209", q.Get("location"))
		assert.Equal(t, "20000", q.Get("radius"))
		assert.Equal(t, "police", q.Get("type"))
		assert.Equal(t, "secret", q.Get("key"))

		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"p1","name":"Connaught Place Police Station","vicinity":"Block A, CP",
			 "geometry":{"location":{"lat":28.63,"lng":77.21}}},
			{"place_id":"p2","name":"Parliament Street Police Station","vicinity":"Sansad Marg",
			 "geometry":{"location":{"lat":28.62,"lng":77.21}}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second, logger.Nop())
	got, err := client.NearbySearch(context.Background(), 28.6139, 77.209, 20000, "police")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Connaught Place Police Station", got[0].Name)
	assert.Equal(t, "Block A, CP", got[0].Address)
	assert.Equal(t, "p1", got[0].PlaceID)
	assert.InDelta(t, 28.63, got[0].Latitude, 1e-9)
}

func TestClient_NearbySearchZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	got, err := NewClient(server.URL, "k", time.Second, logger.Nop()).NearbySearch(context.Background(), 0, 0, 100, "police")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_NearbySearchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "k", time.Second, logger.Nop()).NearbySearch(context.Background(), 0, 0, 100, "police")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")

	_, err = NewClient(server.URL, "", time.Second, logger.Nop()).NearbySearch(context.Background(), 0, 0, 100, "police")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
