package acme

import (
	"context"
	_ "crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RenewalInfo is returned by Client.GetRenewalInfo.
// https://www.ietf.org/archive/id/draft-ietf-acme-ari-03.html
type RenewalInfo struct {
	SuggestedWindow struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"suggestedWindow"`
	ExplanationURL string `json:"explanationURL"`

	// RetryAfter is parsed from the response's Retry-After header, if present.
	RetryAfter time.Time `json:"-"`
}

// GetRenewalInfo returns the CA-suggested renewal window for cert, and a
// Retry-After hint if the server sent one.
func (c *Client) GetRenewalInfo(ctx context.Context, cert *x509.Certificate) (RenewalInfo, error) {
	if c.dir.RenewalInfo == "" {
		return RenewalInfo{}, ErrRenewalInfoNotSupported
	}

	certID, err := generateARICertID(cert)
	if err != nil {
		return RenewalInfo{}, fmt.Errorf("acme: generating renewal cert id: %w", err)
	}

	renewalURL := strings.TrimSuffix(c.dir.RenewalInfo, "/") + "/" + certID

	var info RenewalInfo
	resp, err := c.get(ctx, renewalURL, &info, http.StatusOK)
	if err != nil {
		return info, err
	}

	info.RetryAfter, err = parseRetryAfter(resp.Header.Get("Retry-After"))
	return info, err
}

// UpdateRenewalInfo tells the server that cert has been replaced, so it can
// stop suggesting renewal for it. replaced should always be true.
func (c *Client) UpdateRenewalInfo(ctx context.Context, account Account, cert *x509.Certificate, replaced bool) error {
	if c.dir.RenewalInfo == "" {
		return ErrRenewalInfoNotSupported
	}

	certID, err := generateARICertID(cert)
	if err != nil {
		return fmt.Errorf("acme: generating renewal cert id: %w", err)
	}

	req := struct {
		CertID   string `json:"certID"`
		Replaced bool   `json:"replaced"`
	}{CertID: certID, Replaced: replaced}

	_, err = c.post(ctx, c.dir.RenewalInfo, account.URL, account.PrivateKey, req, nil, http.StatusOK)
	return err
}

// generateARICertID builds the ARI certID: base64url(AKI).base64url(serial),
// per draft-ietf-acme-ari §4.1.
func generateARICertID(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", fmt.Errorf("acme: certificate is nil")
	}

	derBytes, err := asn1.Marshal(cert.SerialNumber)
	if err != nil {
		return "", fmt.Errorf("acme: encoding serial number: %w", err)
	}
	if len(derBytes) < 3 {
		return "", fmt.Errorf("acme: invalid DER encoding of serial number")
	}

	// Skip the ASN.1 INTEGER tag and length bytes, keeping only the value.
	serial := base64.RawURLEncoding.EncodeToString(derBytes[2:])
	aki := base64.RawURLEncoding.EncodeToString(cert.AuthorityKeyId)

	return fmt.Sprintf("%s.%s", aki, serial), nil
}

func parseRetryAfter(ra string) (time.Time, error) {
	ra = strings.TrimSpace(ra)
	if ra == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC1123, ra); err == nil {
		return t, nil
	}

	if seconds, err := strconv.Atoi(ra); err == nil {
		return time.Now().Add(time.Duration(seconds) * time.Second), nil
	}

	return time.Time{}, fmt.Errorf("acme: invalid Retry-After format: %s", ra)
}
