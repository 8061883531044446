package acme

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
)

// FetchCertificate downloads the PEM-encoded certificate chain referenced by
// an order's Certificate URL. The default content negotiated is the full
// chain (leaf followed by intermediates) as one PEM bundle, per
// https://www.rfc-editor.org/rfc/rfc8555#section-7.4.2. If the server leaves
// the chain incomplete, any rel="up" Link is followed and appended.
func (c *Client) FetchCertificate(ctx context.Context, certificateURL string) (string, error) {
	resp, body, err := c.getRaw(ctx, certificateURL, http.StatusOK)
	if err != nil {
		return "", err
	}

	chain := string(body)
	if up := fetchLink(resp, "up"); up != "" {
		upChain, err := c.FetchCertificate(ctx, up)
		if err != nil {
			return chain, fmt.Errorf("acme: fetching up-linked issuer: %w", err)
		}
		chain = chain + "\n" + upChain
	}

	return chain, nil
}

// ParseCertificateChain parses every PEM CERTIFICATE block in chain, leaf first.
func ParseCertificateChain(chain string) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, block := range splitPemChain(chain) {
		der, err := pemToDER(block)
		if err != nil {
			return certs, err
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return certs, fmt.Errorf("acme: parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// RevokeCertificate revokes cert, signed by either the issuing account's key
// or cert's own private key (https://www.rfc-editor.org/rfc/rfc8555#section-7.6).
//
// Kept for API completeness; Certificates.Create never calls this, and
// post-issuance revocation is an explicit non-goal (spec.md §1).
func (c *Client) RevokeCertificate(ctx context.Context, account Account, cert *x509.Certificate, reason int) error {
	req := struct {
		Certificate string `json:"certificate"`
		Reason      int    `json:"reason"`
	}{
		Certificate: base64.RawURLEncoding.EncodeToString(cert.Raw),
		Reason:      reason,
	}

	_, err := c.post(ctx, c.dir.RevokeCert, account.URL, account.PrivateKey, req, nil, http.StatusOK)
	return err
}
