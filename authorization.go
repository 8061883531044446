package acme

import (
	"context"
	"net/http"
	"time"
)

// Authorization represents an ACME authorization resource.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.1.4
type Authorization struct {
	Identifier Identifier  `json:"identifier"`
	Status     string      `json:"status"`
	Expires    time.Time   `json:"expires,omitempty"`
	Challenges []Challenge `json:"challenges"`
	Wildcard   bool        `json:"wildcard"`

	URL string `json:"-"`

	// ChallengeMap indexes Challenges by Type for O(1) lookup by the
	// challenge chooser (spec.md §4.3).
	ChallengeMap map[string]Challenge `json:"-"`

	// ChallengeTypes lists the keys of ChallengeMap in the server's original order.
	ChallengeTypes []string `json:"-"`
}

// FetchAuthorization fetches an authorization referenced from an order, and
// fills in each challenge's KeyAuthorization using account's thumbprint
// when the server omitted it. https://www.rfc-editor.org/rfc/rfc8555#section-7.5
func (c *Client) FetchAuthorization(ctx context.Context, account Account, authURL string) (Authorization, error) {
	auth := Authorization{URL: authURL}
	if _, err := c.get(ctx, authURL, &auth, http.StatusOK); err != nil {
		return auth, err
	}

	for i := range auth.Challenges {
		if auth.Challenges[i].KeyAuthorization == "" {
			auth.Challenges[i].KeyAuthorization = auth.Challenges[i].Token + "." + account.Thumbprint
		}
	}

	auth.ChallengeMap = map[string]Challenge{}
	auth.ChallengeTypes = nil
	for _, ch := range auth.Challenges {
		auth.ChallengeMap[ch.Type] = ch
		auth.ChallengeTypes = append(auth.ChallengeTypes, ch.Type)
	}

	return auth, nil
}

// DeactivateAuthorization deactivates authURL.
// https://www.rfc-editor.org/rfc/rfc8555#section-7.5.2
func (c *Client) DeactivateAuthorization(ctx context.Context, account Account, authURL string) (Authorization, error) {
	req := struct {
		Status string `json:"status"`
	}{Status: "deactivated"}

	auth := Authorization{URL: authURL}
	if _, err := c.post(ctx, authURL, account.URL, account.PrivateKey, req, &auth, http.StatusOK); err != nil {
		return auth, err
	}
	return auth, nil
}
