package web

import (
	"net"
	"net/http"
	"strings"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

// Realm is advertised in WWW-Authenticate challenges
const Realm = "netcheck"

// BasicAuth reads HTTP basic credentials from requests
type BasicAuth struct{}

// CurrentCredentials returns the presented credentials, or nil when none were sent
func (BasicAuth) CurrentCredentials(r *http.Request) *entity.Credentials {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil
	}
	return &entity.Credentials{Username: username, Password: password}
}

// Challenge writes the basic auth challenge header
func (BasicAuth) Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
}

// ClientIdentity returns the caller address used to derive the rate-limit key
func ClientIdentity(r *http.Request, trustProxyHeader bool) string {
	if trustProxyHeader {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
