package jwt

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNoToken is returned when a request carries no connection token at all.
var ErrNoToken = errors.New("no token provided")

// TokenFromRequest extracts the raw connection token from an HTTP request.
// The Authorization header ("Bearer <token>") takes precedence; browser
// WebSocket clients that cannot set headers fall back to the "token" query
// parameter. Returns "" when no token is present.
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	return r.URL.Query().Get("token")
}

// VerifyRequest extracts and validates the connection token from the request,
// returning the parsed claims.
func VerifyRequest(r *http.Request, secretKey string) (*Payload, error) {
	tokenString := TokenFromRequest(r)
	if tokenString == "" {
		return nil, ErrNoToken
	}

	return ParseToken(tokenString, secretKey)
}
