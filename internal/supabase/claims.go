package supabase

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the claims GoTrue puts in its access tokens.
type accessClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// parseAccessToken decodes token. With a secret the HS256 signature and expiry are
// verified; without one the claims are only decoded.
func parseAccessToken(token string, secret []byte) (*accessClaims, error) {
	claims := &accessClaims{}

	if len(secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("decode access token: %w", err)
		}
		return claims, nil
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid access token")
	}
	return claims, nil
}

func metadataString(md map[string]any, key string) string {
	if v, ok := md[key].(string); ok {
		return v
	}
	return ""
}
