package acme

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"gopkg.in/square/go-jose.v2"
)

// signJWS encapsulates payload into a JSON Web Signature for an ACME
// request. https://www.rfc-editor.org/rfc/rfc8555#section-6.2
//
// keyID and embedded-JWK signing are mutually exclusive: once an account has
// a kid, every request but new-account uses it; new-account is the sole
// jwk-mode request (spec.md §3 AccountKey invariant).
func signJWS(nonceSource jose.NonceSource, requestURL, keyID string, privateKey interface{}, payload interface{}) (*jose.JSONWebSignature, error) {
	alg, err := signatureAlgorithm(privateKey)
	if err != nil {
		return nil, err
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("acme: marshalling payload: %w", err)
	}

	opts := jose.SignerOptions{NonceSource: nonceSource}
	opts.WithHeader("url", requestURL)
	if keyID != "" {
		opts.WithHeader("kid", keyID)
	} else {
		opts.EmbedJWK = true
	}

	signer, err := jose.NewSigner(jose.SigningKey{Key: privateKey, Algorithm: alg}, &opts)
	if err != nil {
		return nil, fmt.Errorf("acme: creating signer: %w", err)
	}

	object, err := signer.Sign(rawPayload)
	if err != nil {
		return object, fmt.Errorf("acme: signing payload: %w", err)
	}

	return object, nil
}

// signatureAlgorithm picks the JWS alg for an account key: RS256 for RSA keys;
// ES256, ES384 or ES512 for EC keys on P-256, P-384 or P-521. Any other curve
// or key type is an error.
func signatureAlgorithm(privateKey interface{}) (jose.SignatureAlgorithm, error) {
	switch k := privateKey.(type) {
	case *rsa.PrivateKey:
		return jose.RS256, nil
	case *ecdsa.PrivateKey:
		switch k.Params().Name {
		case "P-256":
			return jose.ES256, nil
		case "P-384":
			return jose.ES384, nil
		case "P-521":
			return jose.ES512, nil
		default:
			return "", fmt.Errorf("acme: unsupported ecdsa curve: %s", k.Params().Name)
		}
	default:
		return "", fmt.Errorf("acme: unsupported private key type: %T", k)
	}
}

// signJWSEAB builds the inner External Account Binding JWS: a symmetric JWS
// over the new account's public JWK, protected header {alg, kid: keyID, url},
// signed with the CA-issued MAC key. https://www.rfc-editor.org/rfc/rfc8555#section-7.3.4
func signJWSEAB(accountPublicJWK jose.JSONWebKey, binding ExternalAccountBinding, requestURL string) (*jose.JSONWebSignature, error) {
	alg := jose.HS256
	if binding.Algorithm != "" {
		alg = jose.SignatureAlgorithm(binding.Algorithm)
	}

	payload, err := json.Marshal(accountPublicJWK)
	if err != nil {
		return nil, fmt.Errorf("acme: marshalling account jwk for eab: %w", err)
	}

	opts := jose.SignerOptions{}
	opts.WithHeader("url", requestURL)
	opts.WithHeader("kid", binding.KeyIdentifier)

	signer, err := jose.NewSigner(jose.SigningKey{
		Key:       binding.MacKey,
		Algorithm: alg,
	}, &opts)
	if err != nil {
		return nil, fmt.Errorf("acme: creating eab signer: %w", err)
	}

	object, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("acme: signing eab: %w", err)
	}

	return object, nil
}
