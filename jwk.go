package acme

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"gopkg.in/square/go-jose.v2"
)

// JWKThumbprint returns the base64url(SHA-256(canonical JWK)) of a public key,
// per RFC 7638. go-jose's JSONWebKey.Thumbprint already produces the
// canonical-JSON digest, so no hand-rolled canonicalization is needed here.
func JWKThumbprint(pub crypto.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	digest, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("acme: computing jwk thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(digest), nil
}

// publicJWK returns a neutered (public-only, kid-stripped) JWK for signer's
// public key, the form sent embedded in a new-account request.
func publicJWK(signer crypto.Signer) jose.JSONWebKey {
	return jose.JSONWebKey{Key: signer.Public(), Algorithm: string(jwkAlgorithm(signer))}
}

func jwkAlgorithm(signer crypto.Signer) jose.SignatureAlgorithm {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return jose.ES256
	case *rsa.PrivateKey:
		return jose.RS256
	default:
		return ""
	}
}

// ImportKey parses a PEM-encoded EC or RSA private key (PKCS#1, SEC1, or
// PKCS#8) into a crypto.Signer usable as an account or domain keypair.
func ImportKey(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("acme: no PEM block found")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("acme: parsing private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("acme: PKCS8 key is not a crypto.Signer: %T", key)
	}
	return signer, nil
}
