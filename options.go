package acme

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ClientOption configures a Client at construction time.
// https://www.rfc-editor.org/rfc/rfc8555 leaves transport and tuning
// entirely up to the implementation; this follows the teacher library's
// OptionFunc pattern (options.go) generalized to the full tuning surface
// spec.md §6 names.
type ClientOption func(client *Client) error

// WithHTTPClient sets a custom http.Client for all ACME connections. Useful
// for injecting a custom Transport (proxying, mTLS, test doubles). The
// client's Transport is wrapped to keep Replay-Nonce harvesting working;
// pass nil Transport to get httpClient's existing default behavior.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return errors.New("acme: http client must not be nil")
		}
		inner := httpClient.Transport
		if inner == nil {
			inner = http.DefaultTransport
		}
		httpClient.Transport = &nonceHarvestingTransport{inner: inner, cache: c.nonces}
		c.httpClient = httpClient
		return nil
	}
}

// WithHTTPTimeout sets a timeout on the client's http.Client.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Intended for
// testing against a local pebble/boulder instance with a self-signed chain —
// never enable this against a production directory.
func WithInsecureSkipVerify() ClientOption {
	return func(c *Client) error {
		inner := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		c.httpClient.Transport = &nonceHarvestingTransport{inner: inner, cache: c.nonces}
		return nil
	}
}

// WithUserAgentSuffix appends text to the User-Agent header sent with every request.
func WithUserAgentSuffix(suffix string) ClientOption {
	return func(c *Client) error {
		c.userAgentSuffix = suffix
		return nil
	}
}

// WithLogger attaches a structured logger. HTTP requests and responses, nonce
// fetches, badNonce retries, skipped already-valid authorizations and self-test
// mismatches log at Debug; directory load and account registration log at
// Info. DNS queries, callback invocations and poll ticks are not logged.
// Absent this option, logging is a no-op.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("acme: logger must not be nil")
		}
		c.log = logger
		return nil
	}
}

// WithDNSResolver overrides the resolver used for dns-01 self-tests.
func WithDNSResolver(resolver DNSResolver) ClientOption {
	return func(c *Client) error {
		if resolver == nil {
			return errors.New("acme: dns resolver must not be nil")
		}
		c.dnsResolver = resolver
		return nil
	}
}

// WithPollTimeout bounds how long FinalizeOrder/UpdateChallenge will poll a
// single resource before giving up.
func WithPollTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.pollTimeout = d
		return nil
	}
}

// WithPollInterval sets the delay between polls of a single resource.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.pollInterval = d
		return nil
	}
}

// WithRetryInterval sets the Certificates.Create authorization driver's wait
// between polling a challenge (spec.md §6 retryInterval, default 1s).
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.retryInterval = d
		return nil
	}
}

// WithRetryPoll sets the Certificates.Create authorization driver's poll
// iteration ceiling per challenge (spec.md §6 retryPoll, default 8).
func WithRetryPoll(n int) ClientOption {
	return func(c *Client) error {
		if n < 1 {
			return errors.New("acme: retryPoll must be > 0")
		}
		c.retryPoll = n
		return nil
	}
}

// WithRetryPending sets how many consecutive "pending" polls are tolerated
// before the driver deactivates and restarts a challenge (spec.md §6
// retryPending, default 4).
func WithRetryPending(n int) ClientOption {
	return func(c *Client) error {
		if n < 1 {
			return errors.New("acme: retryPending must be > 0")
		}
		c.retryPending = n
		return nil
	}
}

// WithDeauthWait sets the pause after deactivating a stuck challenge before
// re-requesting validation (spec.md §6 deauthWait, default 10s).
func WithDeauthWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.deauthWait = d
		return nil
	}
}

// WithSetChallengeWait sets the pause after calling the caller's
// ChallengePublisher before asking the server to validate (spec.md §6
// setChallengeWait, default 500ms).
func WithSetChallengeWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.setChallengeWait = d
		return nil
	}
}

// WithSkipChallengeTest bypasses the dry-run self-test (spec.md §4.4) before
// challenges are submitted to the server. Not recommended against a rate
// limited CA: a failed self-test saves a validation attempt.
func WithSkipChallengeTest() ClientOption {
	return func(c *Client) error {
		c.skipChallengeTest = true
		return nil
	}
}
