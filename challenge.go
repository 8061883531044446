package acme

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Challenge represents an ACME challenge resource.
// https://www.rfc-editor.org/rfc/rfc8555#section-8
type Challenge struct {
	Type             string  `json:"type"`
	URL              string  `json:"url"`
	Status           string  `json:"status"`
	Validated        string  `json:"validated,omitempty"`
	Error            Problem `json:"error,omitempty"`
	Token            string  `json:"token"`
	KeyAuthorization string  `json:"-"`

	// AuthorizationURL is the rel="up" Link target returned alongside the
	// challenge, pointing back at its parent authorization.
	AuthorizationURL string `json:"-"`
}

// EncodeDNS01KeyAuthorization returns the value to publish in the
// _acme-challenge TXT record for a dns-01 challenge: base64url(SHA-256(keyAuth)).
// https://www.rfc-editor.org/rfc/rfc8555#section-8.4
func EncodeDNS01KeyAuthorization(keyAuth string) string {
	digest := sha256.Sum256([]byte(keyAuth))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// checkUpdatedChallengeStatus reports whether challenge has reached a
// terminal state, and its error if that state is "invalid".
func checkUpdatedChallengeStatus(challenge Challenge) (bool, error) {
	switch challenge.Status {
	case "pending", "processing":
		return false, nil
	case "valid":
		return true, nil
	case "invalid":
		if challenge.Error.Type != "" {
			return true, challenge.Error
		}
		return true, fmt.Errorf("acme: challenge invalid, no error provided")
	default:
		return true, fmt.Errorf("acme: unknown challenge status: %s", challenge.Status)
	}
}

// UpdateChallenge tells the server the client has published challenge's
// validation response, then polls the challenge to a terminal state.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.5.1
func (c *Client) UpdateChallenge(ctx context.Context, account Account, challenge Challenge) (Challenge, error) {
	req := struct {
		KeyAuthorization string `json:"keyAuthorization,omitempty"`
	}{}

	resp, err := c.post(ctx, challenge.URL, account.URL, account.PrivateKey, req, &challenge, http.StatusOK)
	if err != nil {
		return challenge, err
	}

	if loc := resp.Header.Get("Location"); loc != "" {
		challenge.URL = loc
	}
	challenge.AuthorizationURL = fetchLink(resp, "up")

	if done, err := checkUpdatedChallengeStatus(challenge); done {
		return challenge, err
	}

	end := time.Now().Add(c.pollTimeout)
	for {
		if time.Now().After(end) {
			return challenge, fmt.Errorf("acme: %w", ErrPollExceeded)
		}

		select {
		case <-ctx.Done():
			return challenge, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		resp, err := c.get(ctx, challenge.URL, &challenge, http.StatusOK)
		if err != nil {
			continue
		}

		if loc := resp.Header.Get("Location"); loc != "" {
			challenge.URL = loc
		}
		challenge.AuthorizationURL = fetchLink(resp, "up")

		if done, err := checkUpdatedChallengeStatus(challenge); done {
			return challenge, err
		}
	}
}

// FetchChallenge fetches an existing challenge by URL.
func (c *Client) FetchChallenge(ctx context.Context, challengeURL string) (Challenge, error) {
	var challenge Challenge
	resp, err := c.get(ctx, challengeURL, &challenge, http.StatusOK)
	if err != nil {
		return challenge, err
	}

	challenge.URL = resp.Header.Get("Location")
	challenge.AuthorizationURL = fetchLink(resp, "up")
	return challenge, nil
}
