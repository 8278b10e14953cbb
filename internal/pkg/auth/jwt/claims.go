package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims attached to every connection token.
// Tokens are issued by the external auth service; this server only verifies
// them and extracts the durable user identity.
type Payload struct {
	// StandardClaims embeds the standard JWT fields (Exp, Iat, Iss) used for
	// validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the durable user record identifier the connection acts as.
	UserID string `json:"userId"`
}
