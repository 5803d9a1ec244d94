package appleid

import "context"

type accessTokenKey struct{}

// BindAccessToken stores a constructed access token inside the context for downstream consumers.
func BindAccessToken(ctx context.Context, token *AccessToken) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext retrieves an access token previously stored in the context.
func AccessTokenFromContext(ctx context.Context) (*AccessToken, bool) {
	if ctx == nil {
		return nil, false
	}
	token, ok := ctx.Value(accessTokenKey{}).(*AccessToken)
	if !ok || token == nil {
		return nil, false
	}
	return token, true
}
