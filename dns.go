package acme

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DNSResolver looks up TXT records, the collaborator the dns-01 self-test
// (spec.md §4.4) depends on. Injectable via
// WithDNSResolver; defaults to a miekg/dns client against the system
// resolver's configured nameservers.
type DNSResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// defaultDNSResolver issues plain UDP TXT queries with miekg/dns, following
// the pattern cert-manager's dns/util package uses for its own dns-01 solvers
// (dns.Client + dns.Msg against a resolved nameserver list), rather than the
// standard library's net.Resolver. It answers TXT queries only.
type defaultDNSResolver struct {
	nameservers []string
	client      *dns.Client
}

func newDefaultDNSResolver() *defaultDNSResolver {
	nameservers := systemNameservers()
	return &defaultDNSResolver{
		nameservers: nameservers,
		client:      &dns.Client{Timeout: 10 * time.Second},
	}
}

func systemNameservers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	var servers []string
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers
}

func (r *defaultDNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	msg.RecursionDesired = true

	var lastErr error
	for _, ns := range r.nameservers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, ns)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("acme: dns query for %s returned rcode %d", name, resp.Rcode)
			continue
		}

		var records []string
		for _, rr := range resp.Answer {
			if txt, ok := rr.(*dns.TXT); ok {
				records = append(records, joinTXT(txt.Txt))
			}
		}
		return records, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("acme: no nameservers configured")
	}
	return nil, fmt.Errorf("acme: looking up TXT %s: %w", name, lastErr)
}

// joinTXT concatenates the individual character-strings of a TXT record, the
// way a DNS TXT record with multiple strings is conventionally treated as one
// value by ACME dns-01 validators.
func joinTXT(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}
