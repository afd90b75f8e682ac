package serper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var got SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "serper-key", r.Header.Get("X-API-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{
			"organic": [
				{"title": "Topuria makes weight", "link": "https://example.com/a", "snippet": "Both fighters on weight.", "position": 1}
			],
			"news": [{"title": "Camp report", "link": "https://example.com/b", "snippet": "Sharp in camp", "date": "2 days ago"}]
		}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("serper-key", WithBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), SearchRequest{Query: "Volkanovski vs Topuria weigh-in", Num: 5, TimeRange: "qdr:w"})
	require.NoError(t, err)

	assert.Equal(t, "Volkanovski vs Topuria weigh-in", got.Query)
	assert.Equal(t, 5, got.Num)
	assert.Equal(t, "qdr:w", got.TimeRange)
	require.Len(t, resp.Organic, 1)
	assert.Equal(t, "Topuria makes weight", resp.Organic[0].Title)
	require.Len(t, resp.News, 1)
	assert.Equal(t, "2 days ago", resp.News[0].Date)
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Unauthorized."}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), SearchRequest{Query: "q"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}
