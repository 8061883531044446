package acme

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchChallenge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/challenge/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Link", `<http://up.test/authz/1>; rel="up"`)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"type":   ChallengeTypeHTTP01,
			"status": "pending",
			"token":  "tok1",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{httpClient: srv.Client(), log: noopLogger()}

	challenge, err := c.FetchChallenge(context.Background(), srv.URL+"/challenge/1")
	require.NoError(t, err)
	assert.Equal(t, "pending", challenge.Status)
	assert.Equal(t, "http://up.test/authz/1", challenge.AuthorizationURL)
}

func TestClient_UpdateChallenge_PollsToValid(t *testing.T) {
	mux := http.NewServeMux()
	var mu sync.Mutex
	polls := 0

	mux.HandleFunc("/new-nonce", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n1")
	})
	mux.HandleFunc("/challenge/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n2")
		mu.Lock()
		defer mu.Unlock()

		status := "pending"
		if r.Method == http.MethodPost {
			polls = 0
		} else {
			polls++
			if polls >= 2 {
				status = "valid"
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"type":   ChallengeTypeHTTP01,
			"status": status,
			"token":  "tok1",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{
		httpClient:   srv.Client(),
		nonces:       newNonceCache(srv.URL+"/new-nonce", srv.Client(), noopLogger()),
		log:          noopLogger(),
		pollInterval: time.Millisecond,
		pollTimeout:  time.Second,
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	account := Account{URL: srv.URL + "/acct/1", PrivateKey: key}

	challenge, err := c.UpdateChallenge(context.Background(), account, Challenge{URL: srv.URL + "/challenge/1"})
	require.NoError(t, err)
	assert.Equal(t, "valid", challenge.Status)
}
