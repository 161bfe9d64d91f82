package policy

import (
	"net"
	"net/url"
	"strings"

	"github.com/seproj/chatbackend/internal/platform/errors"
)

// Policy gates which hosts remote generation backends may contact.
type Policy struct {
	NetEnabled   bool
	AllowDomains []string
}

// RequireNetworkAllowed returns a policy error if networking is disabled or the host is not allowed.
// Host may include a port; it will be normalized.
func (p Policy) RequireNetworkAllowed(host string) error {
	if !p.NetEnabled {
		return errors.NewPolicy("network access is disabled (network.disabled=true)")
	}

	hostOnly := normalizeHost(host)
	if hostOnly == "" {
		return errors.NewPolicy("invalid host for network request")
	}

	// Empty allowlist allows every host.
	if len(p.AllowDomains) == 0 {
		return nil
	}

	for _, allowed := range p.AllowDomains {
		a := strings.TrimSpace(strings.ToLower(allowed))
		if a == "" {
			continue
		}
		if strings.EqualFold(hostOnly, a) {
			return nil
		}
		// Allow subdomains of an allowed domain.
		if strings.HasSuffix(hostOnly, "."+a) {
			return nil
		}
	}

	return errors.NewPolicy("engine host not allowed by network.allow_hosts: " + hostOnly)
}

// RequireURLAllowed applies RequireNetworkAllowed to the host of rawURL.
func (p Policy) RequireURLAllowed(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return errors.NewPolicy("invalid engine url: " + rawURL)
	}
	return p.RequireNetworkAllowed(u.Host)
}

func normalizeHost(host string) string {
	h := strings.TrimSpace(host)
	if h == "" {
		return ""
	}
	h = strings.ToLower(h)

	// net.SplitHostPort requires brackets for IPv6; handle best-effort.
	if strings.Contains(h, ":") {
		if hostOnly, _, err := net.SplitHostPort(h); err == nil && hostOnly != "" {
			return strings.Trim(hostOnly, "[]")
		}
	}

	return strings.Trim(h, "[]")
}
