package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashnai/fashnai/runtime/credentials"
)

func TestSearcherCall(t *testing.T) {
	var (
		gotKeys []string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKeys = append(gotKeys, r.Header.Get("X-API-KEY"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "organic": [{"title": "Floral Dress - ASOS", "link": "https://www.asos.com/p", "snippet": "$45", "position": 1}],
		  "shopping": [{"title": "Floral Dress", "source": "Zalando", "link": "https://zalando/p", "price": "€39.95"}]
		}`))
	}))
	defer server.Close()

	s := New(credentials.NewPool("k1", "k2"), WithEndpoint(server.URL), WithNumResults(5))
	out, err := s.Call(context.Background(), json.RawMessage(`{"query":"floral dress price"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "1. Floral Dress - ASOS")
	assert.Contains(t, out, "Zalando | €39.95")
	assert.Equal(t, "floral dress price", gotBody["q"])
	assert.Equal(t, float64(5), gotBody["num"])

	_, err = s.Call(context.Background(), json.RawMessage(`{"query":"again","num_results":3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, gotKeys)
	assert.Equal(t, float64(3), gotBody["num"])
}

func TestSearcherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("quota exceeded"))
	}))
	defer server.Close()

	s := New(credentials.NewPool("k"), WithEndpoint(server.URL))
	_, _, err := s.Search(context.Background(), "q", 0)
	assert.ErrorContains(t, err, "status code 429: quota exceeded")

	_, _, err = s.Search(context.Background(), "  ", 0)
	assert.Error(t, err)

	_, _, err = New(credentials.NewPool(), WithEndpoint(server.URL)).Search(context.Background(), "q", 0)
	assert.ErrorIs(t, err, credentials.ErrNoCredentials)
}

func TestFormatEmpty(t *testing.T) {
	assert.Equal(t, "No results found.", format(nil, nil))
}
