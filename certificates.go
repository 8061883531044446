package acme

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Certificates is the top-level orchestration surface: given an account and
// domain keypair plus a domain list, it drives the full RFC 8555 issuance
// flow end to end (spec.md §4.5). Obtain one from Client.Certificates.
type Certificates struct {
	client *Client
}

// Certificates returns the order/authorization driver bound to c.
func (c *Client) Certificates() *Certificates {
	return &Certificates{client: c}
}

// CreateCertificateInput is the full set of parameters Certificates.Create
// needs to take a domain list from zero state to an issued certificate.
type CreateCertificateInput struct {
	// Account's PrivateKey signs every account-scoped request. If Account.URL
	// is empty, Create registers a new account first (spec.md §4.5 step 2).
	Account Account

	// DomainKeypair signs the CSR; never transmitted to the server.
	DomainKeypair crypto.Signer

	// Domains is the identifier list to request a certificate for. Must be
	// non-empty.
	Domains []string

	// Subject, if present in Domains, is sorted to index 0 so it becomes the
	// certificate's CSR Common Name (spec.md §4.5 step 4, testable property 5).
	Subject string

	// ChallengeTypes is the caller's preference-ordered acceptable challenge
	// type list. Must be non-empty.
	ChallengeTypes []string

	SetChallenge    ChallengePublisher
	RemoveChallenge ChallengeRemover
	AgreeToTerms    AgreeToTermsFunc

	Contact              []string
	ExternalAccount      *ExternalAccountBinding
	TermsOfServiceAgreed bool
}

func (in CreateCertificateInput) validate() error {
	if len(in.Domains) == 0 {
		return fmt.Errorf("acme: domains must not be empty")
	}
	if len(in.ChallengeTypes) == 0 {
		return fmt.Errorf("acme: challengeTypes must not be empty")
	}
	if in.SetChallenge == nil || in.RemoveChallenge == nil {
		return fmt.Errorf("acme: SetChallenge and RemoveChallenge must be provided")
	}
	return nil
}

// Create runs the full issuance flow described in spec.md §4.5: ensure an
// account, self-test the provisioner, sort domains, create the order, drive
// every authorization through publish-then-accept-and-poll, finalize with a
// CSR, and return the leaf certificate plus its issuer chain.
func (cs *Certificates) Create(ctx context.Context, in CreateCertificateInput) (CertBundle, error) {
	if err := in.validate(); err != nil {
		return CertBundle{}, err
	}

	account, err := cs.ensureAccount(ctx, in)
	if err != nil {
		return CertBundle{}, err
	}

	if !cs.client.skipChallengeTest {
		if err := cs.runSelfTest(ctx, in, account.Thumbprint); err != nil {
			return CertBundle{}, err
		}
	}

	domains := sortDomains(in.Domains, in.Subject)
	identifiers := make([]Identifier, len(domains))
	for i, d := range domains {
		identifiers[i] = Identifier{Type: "dns", Value: d}
	}

	order, err := cs.client.NewOrder(ctx, account, identifiers)
	if err != nil {
		return CertBundle{}, err
	}
	if len(order.Authorizations) == 0 {
		return CertBundle{}, fmt.Errorf("acme: %w", ErrNoAuthorizations)
	}

	if err := cs.driveAuthorizations(ctx, account, order, in); err != nil {
		return CertBundle{}, err
	}

	csr, err := buildCSR(in.DomainKeypair, domains)
	if err != nil {
		return CertBundle{}, fmt.Errorf("acme: building csr: %w", err)
	}

	finalized, err := cs.client.FinalizeOrder(ctx, account, order, csr)
	if err != nil {
		return CertBundle{}, fmt.Errorf("acme: finalizing order (requested %v, order identifiers %v): %w", domains, finalized.Identifiers, err)
	}

	chain, err := cs.client.FetchCertificate(ctx, finalized.Certificate)
	if err != nil {
		return CertBundle{}, err
	}

	blocks := splitPemChain(chain)
	if len(blocks) == 0 {
		return CertBundle{}, fmt.Errorf("acme: certificate response contained no PEM blocks")
	}

	return CertBundle{
		Expires:     finalized.NotAfter,
		Identifiers: identifiers,
		Cert:        blocks[0],
		Chain:       formatPemChain(blocks[1:]),
	}, nil
}

func (cs *Certificates) ensureAccount(ctx context.Context, in CreateCertificateInput) (Account, error) {
	if in.Account.URL != "" {
		account := in.Account
		if account.Thumbprint == "" && account.PrivateKey != nil {
			thumb, err := JWKThumbprint(account.PrivateKey.Public())
			if err != nil {
				return account, err
			}
			account.Thumbprint = thumb
		}
		return account, nil
	}
	if in.Account.PrivateKey == nil {
		return Account{}, fmt.Errorf("acme: account private key is required")
	}

	if in.AgreeToTerms != nil {
		got, err := in.AgreeToTerms(ctx, cs.client.dir.Meta.TermsOfService)
		if err != nil {
			return Account{}, err
		}
		if got != cs.client.dir.Meta.TermsOfService {
			return Account{}, fmt.Errorf("acme: %w", ErrAgreeTOS)
		}
	}

	return cs.client.NewAccount(ctx, in.Account.PrivateKey, false, in.TermsOfServiceAgreed, in.Contact, in.ExternalAccount)
}

// runSelfTest exercises the dry-run self-test (spec.md §4.4) for every
// requested domain using the first acceptable challenge type for that
// domain's wildcardness, without ever contacting the ACME server.
func (cs *Certificates) runSelfTest(ctx context.Context, in CreateCertificateInput, thumbprint string) error {
	for _, domain := range in.Domains {
		_, wildcard := bareHostname(domain)

		types := in.ChallengeTypes
		if wildcard {
			types = nil
			for _, t := range in.ChallengeTypes {
				if t == ChallengeTypeDNS01 {
					types = append(types, t)
				}
			}
		}
		if len(types) == 0 {
			return fmt.Errorf("acme: %w: no dns-01 offered for wildcard domain %s", ErrNoChallenge, domain)
		}

		identifier := Identifier{Type: "dns", Value: domain}
		if err := cs.client.selfTest(ctx, identifier, types[0], thumbprint, in.SetChallenge, in.RemoveChallenge); err != nil {
			return err
		}
	}
	return nil
}

// driveAuthorizations runs the two serial passes spec.md §4.5 step 6
// requires: every authorization is published before any is accepted, so a
// slow DNS propagation on one domain cannot be masked by interleaving with
// a fast one.
func (cs *Certificates) driveAuthorizations(ctx context.Context, account Account, order Order, in CreateCertificateInput) error {
	type pending struct {
		authURL string
		auth    Auth
	}
	var queue []pending

	// Pass A: publish.
	for _, authURL := range order.Authorizations {
		authz, err := cs.client.FetchAuthorization(ctx, account, authURL)
		if err != nil {
			return err
		}

		if alreadyValid(authz) {
			cs.client.log.Debug("authorization already valid, skipping", zap.String("url", authURL))
			continue
		}

		challenge, err := chooseChallenge(authz, in.ChallengeTypes)
		if err != nil {
			return err
		}

		auth := deriveAuth(authz.Identifier, challenge, account.Thumbprint, "")
		if authz.Wildcard && !auth.Wildcard {
			auth.Wildcard = true
			auth.Altname = "*." + auth.Hostname
		}

		if err := in.SetChallenge(ctx, auth); err != nil {
			return fmt.Errorf("acme: publishing challenge for %s: %w", auth.Hostname, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cs.client.setChallengeWait):
		}

		queue = append(queue, pending{authURL: authURL, auth: auth})
	}

	// Pass B: accept and poll.
	for _, p := range queue {
		if err := cs.acceptAndPoll(ctx, account, p.auth); err != nil {
			return err
		}
		_ = in.RemoveChallenge(ctx, p.auth)
	}

	return nil
}

func alreadyValid(authz Authorization) bool {
	for _, ch := range authz.Challenges {
		if ch.Status == "valid" {
			return true
		}
	}
	return false
}

// acceptAndPoll implements spec.md §4.5 Pass B's state machine: accept,
// then poll with bounded pending-retry and a deactivate/re-accept escape
// hatch once retryPending consecutive pending polls have been seen.
func (cs *Certificates) acceptAndPoll(ctx context.Context, account Account, auth Auth) error {
	c := cs.client

	accept := func() (Challenge, error) {
		req := struct{}{}
		var challenge Challenge
		_, err := c.post(ctx, auth.URL, account.URL, account.PrivateKey, req, &challenge, http.StatusOK)
		return challenge, err
	}

	challenge, err := accept()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.retryInterval):
	}

	pendingCount := 0
	for pollCount := 0; ; pollCount++ {
		if pollCount >= c.retryPoll {
			return fmt.Errorf("acme: %w", ErrPollExceeded)
		}

		if _, err := c.get(ctx, challenge.URL, &challenge, http.StatusOK); err != nil {
			return err
		}

		switch challenge.Status {
		case "":
			return fmt.Errorf("acme: %w", ErrStateEmpty)
		case "processing":
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryInterval):
			}
		case "pending":
			pendingCount++
			if pendingCount >= c.retryPending {
				if _, err := c.post(ctx, auth.URL, account.URL, account.PrivateKey,
					struct {
						Status string `json:"status"`
					}{Status: "deactivated"}, nil, http.StatusOK); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.deauthWait):
				}
				pendingCount = 0
			}
			if challenge, err = accept(); err != nil {
				return err
			}
		case "valid":
			return nil
		case "invalid":
			if challenge.Error.Type != "" {
				return fmt.Errorf("acme: %w: %s", ErrStateInvalid, challenge.Error.Error())
			}
			return fmt.Errorf("acme: %w", ErrStateInvalid)
		default:
			return fmt.Errorf("acme: %w: %s", ErrStateUnknown, challenge.Status)
		}
	}
}

// sortDomains reorders domains so that subject (if present) becomes index 0,
// the certificate's Common Name (spec.md §4.5 step 4, testable property 5).
func sortDomains(domains []string, subject string) []string {
	sorted := make([]string, len(domains))
	copy(sorted, domains)

	if subject == "" {
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i] == subject && sorted[j] != subject
	})
	return sorted
}

// buildCSR generates a PKCS#10 request over domains, signed by key.
func buildCSR(key crypto.Signer, domains []string) (*x509.CertificateRequest, error) {
	template := &x509.CertificateRequest{
		Subject:  pkixNameFor(domains[0]),
		DNSNames: domains,
	}

	der, err := x509.CreateCertificateRequest(randReader(), template, key)
	if err != nil {
		return nil, err
	}

	return x509.ParseCertificateRequest(der)
}
