package acme

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Problem is an RFC 7807 problem document as returned by an ACME server for
// any non-2xx response. It also satisfies the error interface so it can be
// returned and inspected directly by callers.
// https://www.rfc-editor.org/rfc/rfc8555#section-6.7
type Problem struct {
	Status      int    `json:"status"`
	Type        string `json:"type"`
	Detail      string `json:"detail"`
	Instance    string `json:"instance"`
	SubProblems []struct {
		Type       string     `json:"type"`
		Detail     string     `json:"detail"`
		Identifier Identifier `json:"identifier"`
	} `json:"subproblems"`
}

func (p Problem) Error() string {
	s := fmt.Sprintf("acme: error code %d %q: %s", p.Status, p.Type, p.Detail)
	for _, v := range p.SubProblems {
		s += fmt.Sprintf(", problem %q: %s", v.Type, v.Detail)
	}
	if p.Instance != "" {
		s += ", url: " + p.Instance
	}
	return s
}

// isBadNonce reports whether the problem is the urn:ietf:params:acme:error:badNonce
// type, the one server error the JWS request layer is allowed to retry on its
// own (spec open question, resolved: retry once internally).
func (p Problem) isBadNonce() bool {
	return p.Type == "urn:ietf:params:acme:error:badNonce"
}

// checkError validates a response's status code against the set the caller
// expected, parsing and returning an ACME problem document for any 4xx/5xx
// outside that set.
func checkError(resp *http.Response, expectedStatuses ...int) error {
	for _, statusCode := range expectedStatuses {
		if resp.StatusCode == statusCode {
			return nil
		}
	}

	if resp.StatusCode < 400 || resp.StatusCode >= 600 {
		return fmt.Errorf("acme: expected status codes %v, got %d %s", expectedStatuses, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("acme: reading error body: %w", err)
	}

	var problem Problem
	if err := json.Unmarshal(body, &problem); err != nil {
		return fmt.Errorf("acme: parsing error body: %w - %s", err, string(body))
	}

	return problem
}

// Engine errors named in the specification. Each is returned wrapped with
// %w so errors.Is(err, acme.ErrStateInvalid) matches regardless of how much
// context has been added on the way up.
var (
	// ErrAgreeTOS is returned when the caller's AgreeToTerms callback returns a
	// URL different from the one the directory's meta.termsOfService advertised.
	ErrAgreeTOS = errors.New("E_AGREE_TOS: terms of service url mismatch")

	// ErrFailDryChallenge is returned when the pre-flight self-test (dry run)
	// could not observe the published challenge response.
	ErrFailDryChallenge = errors.New("E_FAIL_DRY_CHALLENGE: challenge self-test failed")

	// ErrStateEmpty is returned when a challenge poll response has no status field.
	ErrStateEmpty = errors.New("E_STATE_EMPTY: challenge status missing from response")

	// ErrStateInvalid is returned when a challenge reaches status "invalid".
	ErrStateInvalid = errors.New("E_STATE_INVALID: challenge is invalid")

	// ErrStateUnknown is returned when a challenge reaches an unrecognized status.
	ErrStateUnknown = errors.New("E_STATE_UKN: unrecognized challenge status")

	// ErrPollExceeded is returned when a challenge exceeds its poll iteration ceiling
	// while stuck in pending/processing.
	ErrPollExceeded = errors.New("acme: stuck in bad pending/processing state")

	// ErrNoAuthorizations is returned when a newly created order has no authorizations.
	ErrNoAuthorizations = errors.New("acme: order has no authorizations")

	// ErrFinalizeFailed is returned when an order does not reach "valid" after
	// finalization. An "invalid" order that carries a problem document returns
	// that Problem instead.
	ErrFinalizeFailed = errors.New("acme: order finalization failed")

	// ErrNoChallenge is returned when none of the caller's preferred challenge types
	// are offered for an identifier (e.g. a wildcard without dns-01).
	ErrNoChallenge = errors.New("acme: no acceptable challenge type offered")

	// ErrRenewalInfoNotSupported is returned by GetRenewalInfo/UpdateRenewalInfo
	// when the directory has no renewalInfo endpoint.
	ErrRenewalInfoNotSupported = errors.New("acme: renewal information endpoint not supported")
)
