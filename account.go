package acme

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Account represents an ACME account resource.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.1.2
type Account struct {
	Status               string   `json:"status"`
	Contact              []string `json:"contact"`
	TermsOfServiceAgreed bool     `json:"termsOfServiceAgreed"`
	Orders               string   `json:"orders"`

	// URL is populated from the Location header on registration or fetch.
	URL string `json:"-"`

	// PrivateKey signs every subsequent kid-mode request made with this account.
	PrivateKey crypto.Signer `json:"-"`

	// Thumbprint is the RFC 7638 thumbprint of PrivateKey's public JWK, used to
	// build every challenge's keyAuthorization.
	Thumbprint string `json:"-"`

	ExternalAccountBinding *ExternalAccountBinding `json:"-"`
}

type newAccountRequest struct {
	OnlyReturnExisting     bool            `json:"onlyReturnExisting,omitempty"`
	TermsOfServiceAgreed   bool            `json:"termsOfServiceAgreed"`
	Contact                []string        `json:"contact,omitempty"`
	ExternalAccountBinding json.RawMessage `json:"externalAccountBinding,omitempty"`
}

// NewAccount registers a new account with the ACME service, or fetches the
// existing account for privateKey's public key if one is already registered
// (the server must return the same account for the same key, spec.md §4.2
// "Idempotence"). https://www.rfc-editor.org/rfc/rfc8555#section-7.3
func (c *Client) NewAccount(ctx context.Context, privateKey crypto.Signer, onlyReturnExisting, termsOfServiceAgreed bool, contact []string, eab *ExternalAccountBinding) (Account, error) {
	req := newAccountRequest{
		OnlyReturnExisting:   onlyReturnExisting,
		TermsOfServiceAgreed: termsOfServiceAgreed,
		Contact:              contact,
	}

	if eab != nil {
		jws, err := signJWSEAB(publicJWK(privateKey), *eab, c.dir.NewAccount)
		if err != nil {
			return Account{}, fmt.Errorf("acme: building external account binding: %w", err)
		}
		req.ExternalAccountBinding = json.RawMessage(jws.FullSerialize())
	}

	var account Account
	resp, err := c.post(ctx, c.dir.NewAccount, "", privateKey, req, &account, http.StatusOK, http.StatusCreated)
	if err != nil {
		return account, err
	}

	account.URL = resp.Header.Get("Location")
	account.PrivateKey = privateKey
	account.ExternalAccountBinding = eab

	if account.Thumbprint == "" {
		account.Thumbprint, err = JWKThumbprint(privateKey.Public())
		if err != nil {
			return account, err
		}
	}

	c.log.Info("account registered", zap.String("url", account.URL), zap.String("status", account.Status))
	return account, nil
}

// UpdateAccount updates an existing account's contacts/terms agreement, or
// simply re-fetches it when both are left at their zero values.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.3.2
func (c *Client) UpdateAccount(ctx context.Context, account Account, termsOfServiceAgreed bool, contact []string) (Account, error) {
	req := struct {
		TermsOfServiceAgreed bool     `json:"termsOfServiceAgreed,omitempty"`
		Contact              []string `json:"contact,omitempty"`
	}{
		TermsOfServiceAgreed: termsOfServiceAgreed,
		Contact:              contact,
	}

	url := account.URL
	if _, err := c.post(ctx, url, url, account.PrivateKey, req, &account, http.StatusOK); err != nil {
		return account, err
	}
	account.URL = url

	if account.Thumbprint == "" {
		thumb, err := JWKThumbprint(account.PrivateKey.Public())
		if err != nil {
			return account, err
		}
		account.Thumbprint = thumb
	}

	return account, nil
}

// Rollover replaces account's key with newPrivateKey.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.3.5
//
// Kept for API completeness (the teacher exposes the equivalent
// AccountKeyChange) but never called by Certificates.Create — key rollover is
// an explicit non-goal (spec.md §1).
func (c *Client) Rollover(ctx context.Context, account Account, newPrivateKey crypto.Signer) (Account, error) {
	innerReq := struct {
		Account string      `json:"account"`
		NewKey  interface{} `json:"newKey"`
	}{
		Account: account.URL,
		NewKey:  publicJWK(newPrivateKey),
	}

	innerJWS, err := signJWS(nil, c.dir.KeyChange, "", newPrivateKey, innerReq)
	if err != nil {
		return account, fmt.Errorf("acme: signing inner key-change jws: %w", err)
	}

	if _, err := c.post(ctx, c.dir.KeyChange, account.URL, account.PrivateKey, json.RawMessage(innerJWS.FullSerialize()), nil, http.StatusOK); err != nil {
		return account, err
	}

	account.PrivateKey = newPrivateKey
	return account, nil
}

// Deactivate deactivates account. https://www.rfc-editor.org/rfc/rfc8555#section-7.3.6
//
// Kept for API completeness; account deactivation after the fact is an
// explicit non-goal (spec.md §1) so Certificates.Create never calls this.
func (c *Client) Deactivate(ctx context.Context, account Account) (Account, error) {
	req := struct {
		Status string `json:"status"`
	}{Status: "deactivated"}

	_, err := c.post(ctx, account.URL, account.URL, account.PrivateKey, req, &account, http.StatusOK)
	return account, err
}
