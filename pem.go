package acme

import (
	"encoding/pem"
	"fmt"
	"strings"
)

// splitPemChain splits a multi-certificate PEM bundle into its individual
// "-----BEGIN CERTIFICATE-----...-----END CERTIFICATE-----" blocks, the
// inverse of the concatenation FetchCertificate performs when following a
// rel="up" Link (spec.md §4.6, testable property 7: splitting then
// rejoining a chain reproduces it byte-for-byte modulo whitespace).
func splitPemChain(chain string) []string {
	var blocks []string
	rest := []byte(chain)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		blocks = append(blocks, string(pem.EncodeToMemory(block)))
	}
	return blocks
}

// formatPemChain re-joins individually PEM-encoded certificate blocks into
// one bundle suitable for writing to a fullchain file.
func formatPemChain(blocks []string) string {
	trimmed := make([]string, len(blocks))
	for i, b := range blocks {
		trimmed[i] = strings.TrimRight(b, "\n")
	}
	return strings.Join(trimmed, "\n") + "\n"
}

// pemToDER decodes a single PEM CERTIFICATE block to its raw DER bytes.
func pemToDER(block string) ([]byte, error) {
	p, _ := pem.Decode([]byte(block))
	if p == nil {
		return nil, fmt.Errorf("acme: no PEM block found in certificate chain")
	}
	return p.Bytes, nil
}
