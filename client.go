// Package acme implements the core protocol engine of an ACME (RFC 8555)
// client: directory discovery, account registration, order creation,
// authorization/challenge orchestration and order finalization, all signed
// as JWS requests against a nonce-protected transport.
//
// Low-level cryptographic primitives are provided by gopkg.in/square/go-jose.v2
// and the standard library crypto/x509 packages; HTTP transport is the
// standard library's http.Client (itself injectable via WithHTTPClient);
// DNS lookups for the dns-01 self-test are injectable via WithDNSResolver.
package acme

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// defaultPollInterval/defaultPollTimeout retain the teacher's client-wide
// polling defaults for operations (FinalizeOrder, UpdateChallenge) that poll
// a single resource to a terminal state directly, distinct from the
// Certificates.Create driver's own retryInterval/retryPoll tuning.
const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollTimeout  = 30 * time.Second
)

// Client is the entry point for all ACME operations against one directory.
// A Client is safe for concurrent use: its nonce cache is mutex-guarded, and
// the directory is immutable after New returns.
type Client struct {
	httpClient *http.Client
	nonces     *nonceCache
	dir        Directory
	log        *zap.Logger

	userAgentSuffix string
	dnsResolver     DNSResolver

	pollInterval time.Duration
	pollTimeout  time.Duration

	retryInterval     time.Duration
	retryPoll         int
	retryPending      int
	deauthWait        time.Duration
	setChallengeWait  time.Duration
	skipChallengeTest bool
}

// New fetches the ACME directory at directoryURL and returns a ready-to-use
// Client. https://www.rfc-editor.org/rfc/rfc8555#section-7.1.1
func New(directoryURL string, opts ...ClientOption) (*Client, error) {
	cache := &nonceCache{}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	httpClient.Transport = &nonceHarvestingTransport{inner: http.DefaultTransport, cache: cache}

	c := &Client{
		httpClient:       httpClient,
		nonces:           cache,
		log:              noopLogger(),
		dnsResolver:      newDefaultDNSResolver(),
		pollInterval:     defaultPollInterval,
		pollTimeout:      defaultPollTimeout,
		retryInterval:    time.Second,
		retryPoll:        8,
		retryPending:     4,
		deauthWait:       10 * time.Second,
		setChallengeWait: 500 * time.Millisecond,
	}
	cache.httpClient = httpClient

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("acme: applying client option: %w", err)
		}
	}
	// an option may have replaced httpClient wholesale (WithHTTPClient); make
	// sure the nonce cache's fallback HEAD newNonce still goes through it.
	cache.httpClient = c.httpClient
	cache.log = c.log

	if _, err := c.get(context.Background(), directoryURL, &c.dir); err != nil {
		return nil, fmt.Errorf("acme: fetching directory: %w", err)
	}
	c.dir.url = directoryURL
	c.nonces.newNonceURL = c.dir.NewNonce

	c.log.Info("loaded acme directory",
		zap.String("url", directoryURL),
		zap.String("newAccount", c.dir.NewAccount),
		zap.String("newOrder", c.dir.NewOrder))

	return c, nil
}

// Directory returns the directory resource the client was constructed with.
func (c *Client) Directory() Directory {
	return c.dir
}

func (c *Client) userAgent() string {
	ua := "acmeengine/1.0 Go-http-client/1.1"
	if c.userAgentSuffix != "" {
		ua += " " + c.userAgentSuffix
	}
	return ua
}

// do is the single point through which every HTTP request to an ACME
// resource passes; it attaches the user agent and logs the request/response
// at debug level.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", c.userAgent())

	c.log.Debug("http request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resp, err
	}
	c.log.Debug("http response", zap.String("url", req.URL.String()), zap.Int("status", resp.StatusCode))
	return resp, nil
}

// getRaw performs a GET and returns the raw response body.
func (c *Client) getRaw(ctx context.Context, url string, expectedStatus ...int) (*http.Response, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("acme: building request: %w", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return resp, nil, fmt.Errorf("acme: performing request: %w", err)
	}
	defer resp.Body.Close()

	if len(expectedStatus) == 0 {
		expectedStatus = []int{http.StatusOK}
	}
	if err := checkError(resp, expectedStatus...); err != nil {
		return resp, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, body, fmt.Errorf("acme: reading response body: %w", err)
	}

	return resp, body, nil
}

// get performs a GET against an ACME resource and unmarshals its JSON body.
func (c *Client) get(ctx context.Context, url string, out interface{}, expectedStatus ...int) (*http.Response, error) {
	resp, body, err := c.getRaw(ctx, url, expectedStatus...)
	if err != nil {
		return resp, err
	}

	if len(body) > 0 && out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("acme: parsing response body: %w", err)
		}
	}

	return resp, nil
}

// postRaw performs a POST of an already-serialized JWS body.
func (c *Client) postRaw(ctx context.Context, requestURL string, payload io.Reader, expectedStatus ...int) (*http.Response, []byte, error) {
	req, err := http.NewRequest(http.MethodPost, requestURL, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("acme: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/jose+json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return resp, nil, fmt.Errorf("acme: performing request: %w", err)
	}
	defer resp.Body.Close()

	if len(expectedStatus) == 0 {
		expectedStatus = []int{http.StatusOK}
	}
	if err := checkError(resp, expectedStatus...); err != nil {
		return resp, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, body, fmt.Errorf("acme: reading response body: %w", err)
	}

	return resp, body, nil
}

// post signs payload as a JWS (keyID mode if keyID is non-empty, embedded-JWK
// mode otherwise — the two are mutually exclusive per RFC 8555 §6.2), POSTs
// it to requestURL, and unmarshals the JSON response into out. A single
// badNonce response is retried once: the harvested Replay-Nonce from the
// failed attempt is already in the cache, so the retry's signer picks it up
// automatically (spec.md §9 open question, resolved in SPEC_FULL.md §11).
func (c *Client) post(ctx context.Context, requestURL, keyID string, privateKey interface{}, payload interface{}, out interface{}, expectedStatus ...int) (*http.Response, error) {
	const maxBadNonceRetries = 1

	var lastErr error
	for attempt := 0; attempt <= maxBadNonceRetries; attempt++ {
		object, err := signJWS(c.nonces, requestURL, keyID, privateKey, payload)
		if err != nil {
			return nil, err
		}

		resp, body, err := c.postRaw(ctx, requestURL, strings.NewReader(object.FullSerialize()), expectedStatus...)
		if err != nil {
			if problem, ok := err.(Problem); ok && problem.isBadNonce() && attempt < maxBadNonceRetries {
				c.log.Debug("retrying request after badNonce", zap.String("url", requestURL))
				lastErr = err
				continue
			}
			return resp, err
		}

		if len(body) > 0 && out != nil {
			if jsonErr := json.Unmarshal(body, out); jsonErr != nil {
				return resp, fmt.Errorf("acme: parsing response: %w - %s", jsonErr, string(body))
			}
		}
		return resp, nil
	}

	return nil, lastErr
}

var linkHeaderRE = regexp.MustCompile(`<(.+?)>;\s*rel="(.+?)"`)

// fetchLink extracts a single rel="name" target from a response's Link headers.
func fetchLink(resp *http.Response, name string) string {
	for _, header := range resp.Header["Link"] {
		for _, match := range linkHeaderRE.FindAllStringSubmatch(header, -1) {
			if len(match) == 3 && match[2] == name {
				return match[1]
			}
		}
	}
	return ""
}
