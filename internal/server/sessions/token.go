package sessions

import (
	"net/http"
	"strings"

	"github.com/janus-sso/janus/internal/common"
)

// SessionIDSize is the length in bytes of a session identifier. The encoded
// identifier is the bearer token, so it must be long enough to make guessing
// infeasible.
const SessionIDSize = 64

// AuthorizationScheme is the Authorization header scheme under which clients
// present a session token.
const AuthorizationScheme = "SessionID"

// EncodeID renders a raw session ID as the opaque token handed to clients.
func EncodeID(id []byte) string {
	return common.Base64.EncodeToString(id)
}

// DecodeID parses a client-presented token back into a raw session ID. Any
// malformed or wrong-length token is common.ErrNoSession; the caller learns
// nothing about why.
func DecodeID(token string) ([]byte, error) {
	id, err := common.Base64.DecodeString(token)
	if err != nil || len(id) != SessionIDSize {
		return nil, common.ErrNoSession
	}
	return id, nil
}

// TokenFromAuthorization extracts a session token from Authorization header
// values of the form "SessionID <token>".
func TokenFromAuthorization(values []string) (string, bool) {
	for _, v := range values {
		scheme, token, ok := strings.Cut(strings.TrimSpace(v), " ")
		if ok && scheme == AuthorizationScheme && token != "" {
			return token, true
		}
	}
	return "", false
}

// TokenFromCookie extracts a session token from a raw Cookie header.
func TokenFromCookie(cookieHeader, cookieName string) (string, bool) {
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return "", false
	}
	for _, c := range cookies {
		if c.Name == cookieName && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}
