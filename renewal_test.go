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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateARICertID(t *testing.T) {
	certPEM := selfSignedPEM(t, "ari.example.test")
	certs, err := ParseCertificateChain(certPEM)
	require.NoError(t, err)

	id, err := generateARICertID(certs[0])
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, id, ".")
}

func TestGenerateARICertID_NilCertificate(t *testing.T) {
	_, err := generateARICertID(nil)
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	empty, err := parseRetryAfter("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	seconds, err := parseRetryAfter("120")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(120*time.Second), seconds, 2*time.Second)

	_, err = parseRetryAfter("not-a-date")
	assert.Error(t, err)
}

func TestClient_GetRenewalInfo(t *testing.T) {
	mux := http.NewServeMux()
	var gotCertID string
	mux.HandleFunc("/renewal-info/", func(w http.ResponseWriter, r *http.Request) {
		gotCertID = r.URL.Path[len("/renewal-info/"):]
		w.Header().Set("Retry-After", "60")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"suggestedWindow": map[string]interface{}{
				"start": time.Now().Format(time.RFC3339),
				"end":   time.Now().Add(time.Hour).Format(time.RFC3339),
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{httpClient: srv.Client(), log: noopLogger()}
	c.dir.RenewalInfo = srv.URL + "/renewal-info"

	certPEM := selfSignedPEM(t, "renew.example.test")
	certs, err := ParseCertificateChain(certPEM)
	require.NoError(t, err)

	info, err := c.GetRenewalInfo(context.Background(), certs[0])
	require.NoError(t, err)
	assert.NotEmpty(t, gotCertID)
	assert.WithinDuration(t, time.Now().Add(60*time.Second), info.RetryAfter, 2*time.Second)
}

func TestClient_GetRenewalInfo_NotSupported(t *testing.T) {
	c := &Client{log: noopLogger()}
	_, err := c.GetRenewalInfo(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRenewalInfoNotSupported)
}

func TestClient_UpdateRenewalInfo(t *testing.T) {
	mux := http.NewServeMux()
	var gotReplaced bool
	mux.HandleFunc("/new-nonce", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n1")
	})
	mux.HandleFunc("/renewal-info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n2")
		payload, err := decodeJWSBody(r)
		assert.NoError(t, err)
		assert.NotEmpty(t, payload)
		var body struct {
			Replaced bool `json:"replaced"`
		}
		assert.NoError(t, json.Unmarshal(payload, &body))
		gotReplaced = body.Replaced
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{
		httpClient: srv.Client(),
		nonces:     newNonceCache(srv.URL+"/new-nonce", srv.Client(), noopLogger()),
		log:        noopLogger(),
	}
	c.dir.RenewalInfo = srv.URL + "/renewal-info"

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	account := Account{URL: srv.URL + "/acct/1", PrivateKey: key}

	certPEM := selfSignedPEM(t, "renew2.example.test")
	certs, err := ParseCertificateChain(certPEM)
	require.NoError(t, err)

	err = c.UpdateRenewalInfo(context.Background(), account, certs[0], true)
	require.NoError(t, err)
	assert.True(t, gotReplaced)
}
