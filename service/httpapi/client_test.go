package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_DecodesResponseAndSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		json.NewEncoder(w).Encode(map[string]any{"symbol": "BONK", "decimals": 5})
	}))
	defer server.Close()

	c := NewClient(Options{Provider: "moralis"})

	var out struct {
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	}
	err := c.GetJSON(context.Background(), server.URL, map[string]string{"X-API-Key": "secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "BONK", out.Symbol)
	assert.Equal(t, 5, out.Decimals)
}

func TestPostJSON_SendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"mint1"}, body["mintAccounts"])
		w.Write([]byte(`[{"symbol":"abc"}]`))
	}))
	defer server.Close()

	c := NewClient(Options{Provider: "helius"})

	var out []map[string]any
	err := c.PostJSON(context.Background(), server.URL, nil, map[string][]string{"mintAccounts": {"mint1"}}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "abc", out[0]["symbol"])
}

func TestGetJSON_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer server.Close()

	c := NewClient(Options{Provider: "helius"})

	err := c.GetJSON(context.Background(), server.URL, nil, nil)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "slow down", se.Body)
}

func TestGetJSON_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewClient(Options{Provider: "jupiter"})

	var out map[string]any
	err := c.GetJSON(context.Background(), server.URL, nil, &out)
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
	assert.Contains(t, err.Error(), "failed to decode jupiter response")
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), 0))
}
