package auth

import "context"

type accessTokenKey struct{}

// WithAccessToken returns a context carrying the signed-in user's access token, for
// lookups the backend authorizes as that user.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFrom returns the access token stored by WithAccessToken, or "".
func AccessTokenFrom(ctx context.Context) string {
	if token, ok := ctx.Value(accessTokenKey{}).(string); ok {
		return token
	}
	return ""
}
