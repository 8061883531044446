package acme

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceCache_SingleUse(t *testing.T) {
	cache := newNonceCache("", &http.Client{}, noopLogger())
	cache.push("nonce-a")
	cache.push("nonce-b")

	first, err := cache.Nonce()
	require.NoError(t, err)
	second, err := cache.Nonce()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Empty(t, cache.stack, "both pushed nonces must be consumed, none reused")
}

func TestNonceCache_ExpiryDiscardsStaleEntries(t *testing.T) {
	cache := newNonceCache("", &http.Client{}, noopLogger())
	cache.stack = []nonceEntry{
		{value: "fresh", createdAt: time.Now()},
		{value: "stale", createdAt: time.Now().Add(-20 * time.Minute)},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "fallback")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	cache.newNonceURL = srv.URL
	cache.httpClient = srv.Client()

	n, err := cache.Nonce()
	require.NoError(t, err)
	assert.Equal(t, "fresh", n, "expired entry must be discarded, not dispensed")
}

func TestNonceCache_EmptyFetchesFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Replay-Nonce", "from-head")
	}))
	defer srv.Close()

	cache := newNonceCache(srv.URL, srv.Client(), noopLogger())
	n, err := cache.Nonce()
	require.NoError(t, err)
	assert.Equal(t, "from-head", n)
}

func TestNonceCache_BoundedSize(t *testing.T) {
	cache := newNonceCache("", &http.Client{}, noopLogger())
	for i := 0; i < nonceMaxEntries+10; i++ {
		cache.push("n")
	}
	assert.LessOrEqual(t, len(cache.stack), nonceMaxEntries)
}

func TestNonceHarvestingTransport_PushesReplayNonce(t *testing.T) {
	cache := newNonceCache("", &http.Client{}, noopLogger())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "harvested")
	}))
	defer srv.Close()

	transport := &nonceHarvestingTransport{inner: http.DefaultTransport, cache: cache}
	client := &http.Client{Transport: transport}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	n, err := cache.Nonce()
	require.NoError(t, err)
	assert.Equal(t, "harvested", n)
}
