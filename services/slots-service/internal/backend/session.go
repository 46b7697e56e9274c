package backend

import (
	"net/http"
	"strings"
)

// TokenCookie is the cookie the web front end stores the backend token in.
const TokenCookie = "token"

// Session carries the caller's credentials to the backend. It is passed explicitly to
// every call instead of being read from ambient state.
type Session struct {
	Token string
}

// SessionFromRequest takes the bearer token from the Authorization header, falling back
// to the front end's token cookie. Tokens are forwarded as-is, never verified here.
func SessionFromRequest(r *http.Request) Session {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return Session{Token: strings.TrimSpace(token)}
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return Session{Token: strings.TrimSpace(c.Value)}
	}
	return Session{}
}

func (s Session) apply(req *http.Request) {
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
}
