package acme

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// nonceMaxAge bounds how long a cached nonce is considered usable, per
// spec.md §3's 15 minute logical expiry.
const nonceMaxAge = 15 * time.Minute

// nonceMaxEntries bounds the cache so that an unused inflow of Replay-Nonce
// headers cannot grow it without limit (spec.md §9).
const nonceMaxEntries = 32

type nonceEntry struct {
	value     string
	createdAt time.Time
}

// nonceCache is a process-local LIFO of server-issued anti-replay nonces. It
// implements jose.NonceSource so it can be handed straight to a go-jose
// signer, and is also the thing the HTTP transport layer pushes freshly
// harvested Replay-Nonce headers into. A mutex guards both operations so
// that two concurrent Certificates.Create calls sharing one Client can never
// be handed the same nonce (spec.md §5).
type nonceCache struct {
	newNonceURL string
	httpClient  *http.Client
	log         *zap.Logger

	mu    sync.Mutex
	stack []nonceEntry
}

func newNonceCache(newNonceURL string, httpClient *http.Client, log *zap.Logger) *nonceCache {
	return &nonceCache{
		newNonceURL: newNonceURL,
		httpClient:  httpClient,
		log:         log,
	}
}

// push stores a freshly harvested nonce, discarding the oldest entry if the
// cache is already at nonceMaxEntries.
func (nc *nonceCache) push(v string) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	if len(nc.stack) >= nonceMaxEntries {
		nc.stack = nc.stack[1:]
	}
	nc.stack = append(nc.stack, nonceEntry{value: v, createdAt: time.Now()})
}

// Nonce implements gopkg.in/square/go-jose.v2's NonceSource interface. It
// pops the most recent cached nonce, skipping (and discarding) any that have
// aged out, and falls back to a fresh HEAD newNonce when the cache is empty.
func (nc *nonceCache) Nonce() (string, error) {
	nc.mu.Lock()
	for len(nc.stack) > 0 {
		n := len(nc.stack) - 1
		entry := nc.stack[n]
		nc.stack = nc.stack[:n]
		if time.Since(entry.createdAt) <= nonceMaxAge {
			nc.mu.Unlock()
			return entry.value, nil
		}
		nc.log.Debug("discarding expired nonce")
	}
	nc.mu.Unlock()

	return nc.fetch()
}

func (nc *nonceCache) fetch() (string, error) {
	if nc.newNonceURL == "" {
		return "", errors.New("acme: no newNonce url configured")
	}

	req, err := http.NewRequest(http.MethodHead, nc.newNonceURL, nil)
	if err != nil {
		return "", fmt.Errorf("acme: building newNonce request: %w", err)
	}

	resp, err := nc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("acme: fetching new nonce: %w", err)
	}
	defer resp.Body.Close()

	nonce := resp.Header.Get("Replay-Nonce")
	if nonce == "" {
		return "", errors.New("acme: newNonce response carried no Replay-Nonce header")
	}

	// a harvesting transport has already pushed this nonce into the cache;
	// drop that copy so the value is dispensed only once.
	nc.mu.Lock()
	for i := len(nc.stack) - 1; i >= 0; i-- {
		if nc.stack[i].value == nonce {
			nc.stack = append(nc.stack[:i], nc.stack[i+1:]...)
			break
		}
	}
	nc.mu.Unlock()

	nc.log.Debug("fetched fresh nonce via HEAD newNonce")
	return nonce, nil
}

// nonceHarvestingTransport wraps an inner http.RoundTripper and pushes any
// Replay-Nonce header found on a response into the cache, so that every
// request performed through the client — not just signed ones — replenishes
// the pool (spec.md §4.1: "amortized one HEAD per session rather than per
// request").
type nonceHarvestingTransport struct {
	inner http.RoundTripper
	cache *nonceCache
}

func (t *nonceHarvestingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if nonce := resp.Header.Get("Replay-Nonce"); nonce != "" {
		t.cache.push(nonce)
	}
	return resp, nil
}
