package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/recipe-cli/internal/quota"
)

// TokenCookie carries the anonymous rate-limit token. Clients can clear it
// to get a fresh allowance; the quota is a soft limit for anonymous users.
const TokenCookie = "sr_token"

const (
	tokenMaxAge   = 365 * 24 * 60 * 60
	maxTokenBytes = 128
)

// Authenticator resolves a verified user id from a request.
type Authenticator interface {
	UserID(r *http.Request) (string, bool)
}

// HeaderAuthenticator trusts a header set by an upstream auth proxy. With
// no header configured nobody is authenticated.
type HeaderAuthenticator struct {
	Header string
}

func (h HeaderAuthenticator) UserID(r *http.Request) (string, bool) {
	if h.Header == "" {
		return "", false
	}
	id := strings.TrimSpace(r.Header.Get(h.Header))
	return id, id != ""
}

// identify returns who the request is charged to, minting an anonymous
// token cookie when the client has none. It must run before the response
// status is written.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) quota.Identity {
	if s.auth != nil {
		if id, ok := s.auth.UserID(r); ok {
			return quota.Identity{ID: id, Authenticated: true}
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil && validToken(c.Value) {
		return quota.Identity{ID: c.Value}
	}

	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   tokenMaxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return quota.Identity{ID: token}
}

func validToken(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && len(v) <= maxTokenBytes
}
