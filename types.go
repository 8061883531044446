package acme

import "time"

// Challenge types the engine knows how to derive. Only http-01 and dns-01 are
// verified by the self-test; for tls-alpn-01 the self-test checks nothing.
// https://www.rfc-editor.org/rfc/rfc8555#section-8
const (
	ChallengeTypeHTTP01    = "http-01"
	ChallengeTypeDNS01     = "dns-01"
	ChallengeTypeTLSALPN01 = "tls-alpn-01"
)

// Well known staging/production directory URLs, kept for caller convenience
// the same way the teacher library exports LetsEncryptStaging.
const (
	LetsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"
	LetsEncryptStaging    = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// Identifier is an identifier object used in order and authorization objects.
// https://www.rfc-editor.org/rfc/rfc8555#section-9.7.7
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ExternalAccountBinding carries the pre-shared credentials a CA issued out of
// band (e.g. ZeroSSL, Google Trust Services) so that NewAccount can prove the
// new ACME account key is authorized for an existing CA account.
type ExternalAccountBinding struct {
	KeyIdentifier string
	MacKey        []byte
	// Algorithm names the symmetric JWS algorithm used to sign the inner EAB
	// JWS. Defaults to HS256 if empty.
	Algorithm string
}

// CertBundle is the final artifact returned by Certificates.Create: the leaf
// certificate and the issuer chain behind it, plus enough order metadata for
// the caller to know what was issued and when it expires.
type CertBundle struct {
	Expires     time.Time
	Identifiers []Identifier
	Cert        string
	Chain       string
}
