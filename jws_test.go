package acme

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
)

func TestSignatureAlgorithm_ECProducesES256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	alg, err := signatureAlgorithm(key)
	require.NoError(t, err)
	assert.Equal(t, jose.ES256, alg)
}

func TestSignatureAlgorithm_RSAProducesRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	alg, err := signatureAlgorithm(key)
	require.NoError(t, err)
	assert.Equal(t, jose.RS256, alg)
}

func TestSignJWS_KidAndJwkModesAreMutuallyExclusive(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	jwsKid, err := signJWS(nil, "https://example.test/acct/1", "https://example.test/acct/1", key, map[string]string{})
	require.NoError(t, err)
	assert.NotEmpty(t, jwsKid.FullSerialize())

	parsedKid, err := jose.ParseSigned(jwsKid.FullSerialize())
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/acct/1", parsedKid.Signatures[0].Protected.KeyID)
	assert.Nil(t, parsedKid.Signatures[0].Protected.JSONWebKey)

	jwsJWK, err := signJWS(nil, "https://example.test/new-account", "", key, map[string]string{})
	require.NoError(t, err)
	assert.NotEmpty(t, jwsJWK.FullSerialize())

	parsedJWK, err := jose.ParseSigned(jwsJWK.FullSerialize())
	require.NoError(t, err)
	assert.Empty(t, parsedJWK.Signatures[0].Protected.KeyID)
	assert.NotNil(t, parsedJWK.Signatures[0].Protected.JSONWebKey)
}
