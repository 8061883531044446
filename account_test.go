package acme

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountTestClient(srv *httptest.Server) *Client {
	return &Client{
		httpClient: srv.Client(),
		nonces:     newNonceCache(srv.URL+"/new-nonce", srv.Client(), noopLogger()),
		log:        noopLogger(),
	}
}

func TestClient_Rollover(t *testing.T) {
	mux := http.NewServeMux()
	var gotInner map[string]interface{}

	mux.HandleFunc("/new-nonce", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n1")
	})
	mux.HandleFunc("/key-change", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n2")
		var outer map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&outer))
		payload, ok := outer["payload"].(string)
		assert.True(t, ok)
		assert.NotEmpty(t, payload)
		gotInner = outer
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newAccountTestClient(srv)
	c.dir.KeyChange = srv.URL + "/key-change"

	oldKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	newKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	account := Account{URL: srv.URL + "/acct/1", PrivateKey: oldKey}
	rolled, err := c.Rollover(context.Background(), account, newKey)
	require.NoError(t, err)
	assert.Equal(t, newKey, rolled.PrivateKey)
	assert.NotNil(t, gotInner, "server must have received the outer key-change JWS")
}

func TestClient_Deactivate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/new-nonce", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n1")
	})
	mux.HandleFunc("/acct/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n2")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "deactivated"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newAccountTestClient(srv)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	account := Account{URL: srv.URL + "/acct/1", PrivateKey: key}
	updated, err := c.Deactivate(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "deactivated", updated.Status)
}
