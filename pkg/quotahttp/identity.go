package quotahttp

import (
	"errors"
	"net/http"
	"strings"
)

// DefaultTenantHeader is read by the default Identity.
const DefaultTenantHeader = "X-Tenant-ID"

// Identity extracts the tenant ID of the caller. An empty ID with a nil error
// means the request carries no tenant. The ID is trusted as is.
type Identity interface {
	Resolve(r *http.Request) (string, error)
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func(r *http.Request) (string, error)

func (f IdentityFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// HeaderIdentity reads the tenant ID from a request header.
type HeaderIdentity struct {
	Header string
}

// NewHeaderIdentity returns an Identity reading header, or DefaultTenantHeader when empty.
func NewHeaderIdentity(header string) HeaderIdentity {
	if header == "" {
		header = DefaultTenantHeader
	}
	return HeaderIdentity{Header: header}
}

func (h HeaderIdentity) Resolve(r *http.Request) (string, error) {
	return strings.TrimSpace(r.Header.Get(h.Header)), nil
}

// SubdomainIdentity takes the tenant ID from the first label of the host,
// e.g. "acme" from "acme.forms.example.com" with Suffix ".forms.example.com".
// Hosts without a subdomain and the "www" label resolve to no tenant.
type SubdomainIdentity struct {
	Suffix string
}

func (s SubdomainIdentity) Resolve(r *http.Request) (string, error) {
	host := r.Host
	if i := strings.LastIndexByte(host, ':'); i != -1 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.ToLower(host)

	var label string
	if s.Suffix != "" {
		suffix := strings.ToLower(s.Suffix)
		if !strings.HasSuffix(host, suffix) || len(host) == len(suffix) {
			return "", nil
		}
		rest := strings.TrimSuffix(host, suffix)
		label, _, _ = strings.Cut(rest, ".")
	} else {
		// subdomain.domain.tld at minimum
		if strings.Count(host, ".") < 2 {
			return "", nil
		}
		label, _, _ = strings.Cut(host, ".")
	}

	if label == "www" {
		return "", nil
	}
	return label, nil
}

// FirstOf tries each Identity in order and returns the first non-empty tenant ID.
// Errors are only reported when no Identity produced an ID.
func FirstOf(ids ...Identity) Identity {
	return IdentityFunc(func(r *http.Request) (string, error) {
		var errs []error
		for _, id := range ids {
			tenantID, err := id.Resolve(r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if tenantID != "" {
				return tenantID, nil
			}
		}
		return "", errors.Join(errs...)
	})
}
