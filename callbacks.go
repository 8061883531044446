package acme

import "context"

// AgreeToTermsFunc is invoked with the directory's advertised terms-of-service
// URL during account registration; it must return that same URL to indicate
// consent, or an error to abort. https://www.rfc-editor.org/rfc/rfc8555#section-7.3
//
// spec.md §9 notes the source detects legacy multi-arg callback forms by
// function arity; this module collapses that into the one canonical
// signature below and does not propagate arity sniffing into the engine.
type AgreeToTermsFunc func(ctx context.Context, termsOfServiceURL string) (string, error)

// ChallengePublisher installs a challenge's validation response — the HTTP
// token file for http-01, the DNS TXT record for dns-01 — so it is
// observable before Certificates.Create asks the server to validate.
type ChallengePublisher func(ctx context.Context, auth Auth) error

// ChallengeRemover tears down whatever ChallengePublisher installed.
// Errors are best-effort and explicitly swallowed by the caller (spec.md
// §7): cleanup failures must never turn a successful issuance into an error.
type ChallengeRemover func(ctx context.Context, auth Auth) error
