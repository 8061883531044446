package acme

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dryRunDelay is how long selfTest waits after setChallenge before checking,
// to allow DNS propagation; only paid when dns-01 is the type under test.
const dryRunDelay = 1500 * time.Millisecond

// selfTest verifies, before asking the CA to validate, that publisher has
// actually made the chosen challenge type observable — an HTTP GET for
// http-01, a DNS TXT lookup for dns-01 — against a synthesized Auth that
// never touches the real ACME server (spec.md §4.4). A failure here saves a
// CA-side invalid-validation attempt, which counts against rate limits.
func (c *Client) selfTest(ctx context.Context, identifier Identifier, challengeType string, thumbprint string, publish ChallengePublisher, remove ChallengeRemover) error {
	suffix, err := dryRunSuffix()
	if err != nil {
		return fmt.Errorf("acme: generating dry-run suffix: %w", err)
	}

	token := "dryrun-" + suffix
	fakeChallenge := Challenge{Type: challengeType, Token: token}
	auth := deriveAuth(identifier, fakeChallenge, thumbprint, "greenlock-dryrun-"+suffix)
	auth.DryRun = true

	if err := publish(ctx, auth); err != nil {
		return fmt.Errorf("acme: self-test publish: %w", err)
	}
	defer remove(ctx, auth)

	if challengeType == ChallengeTypeDNS01 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dryRunDelay):
		}
	}

	switch challengeType {
	case ChallengeTypeHTTP01:
		return c.selfTestHTTP01(ctx, auth)
	case ChallengeTypeDNS01:
		return c.selfTestDNS01(ctx, auth)
	default:
		return nil
	}
}

func (c *Client) selfTestHTTP01(ctx context.Context, auth Auth) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, auth.ChallengeURL, nil)
	if err != nil {
		return fmt.Errorf("acme: %w: building request: %v", ErrFailDryChallenge, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("acme: %w: GET %s failed: %v (try: curl -sSL %s)", ErrFailDryChallenge, auth.ChallengeURL, err, auth.ChallengeURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("acme: %w: reading response: %v", ErrFailDryChallenge, err)
	}

	got := strings.TrimSpace(string(body))
	if got != auth.KeyAuthorization {
		c.log.Debug("self-test http-01 mismatch", zap.String("url", auth.ChallengeURL), zap.String("got", got))
		return fmt.Errorf("acme: %w: %s returned %q, expected %q (try: curl -sSL %s)",
			ErrFailDryChallenge, auth.ChallengeURL, got, auth.KeyAuthorization, auth.ChallengeURL)
	}

	return nil
}

func (c *Client) selfTestDNS01(ctx context.Context, auth Auth) error {
	records, err := c.dnsResolver.LookupTXT(ctx, auth.DNSHost)
	if err != nil {
		return fmt.Errorf("acme: %w: TXT lookup for %s failed: %v (try: dig +short TXT %s)", ErrFailDryChallenge, auth.DNSHost, err, auth.DNSHost)
	}

	for _, r := range records {
		if r == auth.DNSAuthorization {
			return nil
		}
	}

	return fmt.Errorf("acme: %w: no TXT record at %s matched expected value (try: dig +short TXT %s)", ErrFailDryChallenge, auth.DNSHost, auth.DNSHost)
}

// dryRunSuffix returns an 8 hex-char non-cryptographic-strength suffix for
// the "greenlock-dryrun-<suffix>" DNS prefix (spec.md §9 notes this need not
// be CSPRNG-grade). The suffix is the first 8 hex characters of a random
// UUIDv4; the rest of the UUID is discarded.
func dryRunSuffix() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "")[:8], nil
}
