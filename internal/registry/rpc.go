package registry

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Deployments lists every built-in deployment.
func Deployments() []Chain {
	return []Chain{CitreaTestnet()}
}

// DefaultRPCURL returns the public endpoint of the built-in deployment with
// the given chain id.
func DefaultRPCURL(chainID int64) (string, bool) {
	chain, ok := lo.Find(Deployments(), func(c Chain) bool { return c.ChainID == chainID })
	if !ok || chain.RPCURL == "" {
		return "", false
	}
	return chain.RPCURL, true
}

// ResolveRPCURL prefers the override and falls back to the built-in endpoint.
// Only http(s) and ws(s) endpoints are accepted.
func ResolveRPCURL(override string, chainID int64) (string, error) {
	raw := strings.TrimSpace(override)
	if raw == "" {
		value, ok := DefaultRPCURL(chainID)
		if !ok {
			return "", fmt.Errorf("no default rpc configured for chain id %d; provide --rpc-url", chainID)
		}
		raw = value
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse rpc url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return "", fmt.Errorf("rpc url %q must use http, https, ws or wss", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("rpc url %q has no host", raw)
	}
	return raw, nil
}
