package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

const HeaderAPIKey = "X-Api-Key"

var ErrUnauthorized = errors.New("invalid api key")

// Authenticator checks a single shared secret presented either in the
// X-Api-Key header or as a bearer token.
type Authenticator struct {
	secret []byte
}

func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Check(h http.Header) error {
	key := ExtractKey(h.Get(HeaderAPIKey), h.Get("Authorization"))
	if key == "" || len(a.secret) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(key), a.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// ExtractKey prefers a non-blank X-Api-Key value over the Authorization
// header. Only the Bearer scheme is accepted.
func ExtractKey(apiKey, authorization string) string {
	if k := strings.TrimSpace(apiKey); k != "" {
		return k
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
