package acme

import "strings"

// Auth fuses an Authorization with a chosen Challenge and the account's
// key-derived material into everything a ChallengePublisher needs to
// install a validation response, and everything the self-test (selftest.go)
// needs to verify it landed. Built fresh per authorization and discarded
// once that authorization's challenge reaches a terminal state (spec.md §3).
type Auth struct {
	Identifier Identifier
	Hostname   string
	Altname    string
	Wildcard   bool

	Type   string
	Status string
	URL    string
	Token  string

	Thumbprint       string
	KeyAuthorization string

	// ChallengeURL is the http-01 install target.
	ChallengeURL string

	// DNSHost is the dns-01 TXT record name: "_acme-challenge.<hostname>" in
	// production, "greenlock-dryrun-<hex>.<hostname>" during a self-test.
	DNSHost string

	// DNSAuthorization is the dns-01 TXT record value.
	DNSAuthorization string

	// DryRun marks an Auth synthesized for the pre-flight self-test rather
	// than a real server-issued challenge.
	DryRun bool
}

// bareHostname strips a leading "*." wildcard label.
func bareHostname(hostname string) (bare string, wildcard bool) {
	if strings.HasPrefix(hostname, "*.") {
		return strings.TrimPrefix(hostname, "*."), true
	}
	return hostname, false
}

// deriveAuth builds the Auth value for identifier's chosen challenge, per
// spec.md §4.3. dnsHostOverride, when non-empty, replaces the production
// "_acme-challenge." prefix — used by the self-test to avoid poisoning
// recursive resolver caches with a real-looking record name.
func deriveAuth(identifier Identifier, challenge Challenge, thumbprint string, dnsHostOverride string) Auth {
	bare, wildcard := bareHostname(identifier.Value)

	keyAuth := challenge.KeyAuthorization
	if keyAuth == "" {
		keyAuth = challenge.Token + "." + thumbprint
	}

	dnsHost := "_acme-challenge." + bare
	if dnsHostOverride != "" {
		dnsHost = dnsHostOverride + "." + bare
	}

	return Auth{
		Identifier:       identifier,
		Hostname:         bare,
		Altname:          identifier.Value,
		Wildcard:         wildcard,
		Type:             challenge.Type,
		Status:           challenge.Status,
		URL:              challenge.URL,
		Token:            challenge.Token,
		Thumbprint:       thumbprint,
		KeyAuthorization: keyAuth,
		ChallengeURL:     "http://" + bare + "/.well-known/acme-challenge/" + challenge.Token,
		DNSHost:          dnsHost,
		DNSAuthorization: EncodeDNS01KeyAuthorization(keyAuth),
	}
}

// chooseChallenge returns the first challenge in preferred order that the
// server offers, honoring the wildcard-requires-dns-01 rule (spec.md §4.3,
// testable property 6): for a wildcard identifier, only dns-01 is ever
// considered, regardless of what else is preferred.
func chooseChallenge(auth Authorization, preferred []string) (Challenge, error) {
	_, wildcard := bareHostname(auth.Identifier.Value)
	wildcard = wildcard || auth.Wildcard

	for _, t := range preferred {
		if wildcard && t != ChallengeTypeDNS01 {
			continue
		}
		if ch, ok := auth.ChallengeMap[t]; ok {
			return ch, nil
		}
	}

	return Challenge{}, ErrNoChallenge
}
