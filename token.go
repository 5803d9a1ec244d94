package appleid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Options is a token endpoint response. "access_token" is required, and
// "id_token" is required whenever "refresh_token" is present.
type Options map[string]any

// Keys consumed by the base token; everything else is kept in Values.
var baseOptionKeys = []string{"access_token", "resource_owner_id", "refresh_token", "expires_in", "expires"}

// Values at or above this are absolute unix timestamps; below it "expires" is relative.
const expirationTimestampThreshold = 10 * 365 * 24 * 60 * 60

var timeNow = time.Now

// AccessToken is an OAuth2 access token issued by Apple, together with the
// identity verified from its id_token.
type AccessToken struct {
	base            *oauth2.Token
	resourceOwnerID string
	values          map[string]any

	idToken        string
	email          string
	isPrivateEmail *bool
}

// NewAccessToken builds an access token from a token endpoint response. When a
// refresh token is present, the id_token is verified and the resource owner,
// email and private-email flag come from its claims.
func (v *Verifier) NewAccessToken(ctx context.Context, options Options) (*AccessToken, error) {
	if optionString(options, "access_token") == "" {
		return nil, missingOption("access_token")
	}

	opts := options.clone()
	// Only a verified email claim may become the account email.
	delete(opts, "email")

	var claims *IdentityClaims
	if _, ok := opts["refresh_token"]; ok {
		idToken := optionString(opts, "id_token")
		if idToken == "" {
			return nil, missingOption("id_token")
		}
		verified, err := v.VerifyIdentityToken(ctx, idToken)
		if err != nil {
			return nil, err
		}
		opts["resource_owner_id"] = verified.Subject
		if email, ok := verified.TrustedEmail(); ok {
			opts["email"] = email
		}
		claims = verified
	}

	tok, err := newBaseToken(opts)
	if err != nil {
		return nil, err
	}
	if claims != nil {
		tok.idToken = optionString(opts, "id_token")
		tok.email = optionString(opts, "email")
		if claims.IsPrivateEmail != nil {
			private := *claims.IsPrivateEmail
			tok.isPrivateEmail = &private
		}
	}
	return tok, nil
}

// FromOAuth2Token builds an access token from a token returned by an
// oauth2.Config exchange. The id_token is read from the token's extra fields.
func (v *Verifier) FromOAuth2Token(ctx context.Context, token *oauth2.Token) (*AccessToken, error) {
	if token == nil {
		return nil, missingOption("access_token")
	}
	opts := Options{"access_token": token.AccessToken}
	if token.TokenType != "" {
		opts["token_type"] = token.TokenType
	}
	if token.RefreshToken != "" {
		opts["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		opts["expires"] = token.Expiry.Unix()
	}
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		opts["id_token"] = idToken
	}
	return v.NewAccessToken(ctx, opts)
}

func newBaseToken(opts Options) (*AccessToken, error) {
	base := &oauth2.Token{
		AccessToken:  optionString(opts, "access_token"),
		RefreshToken: optionString(opts, "refresh_token"),
		TokenType:    optionString(opts, "token_type"),
	}

	if raw, ok := opts["expires_in"]; ok {
		seconds, ok := toInt64(raw)
		if !ok {
			return nil, newError(ErrCodeInvalidOption, errors.New(`"expires_in" must be an integer`))
		}
		if seconds != 0 {
			base.ExpiresIn = seconds
			base.Expiry = timeNow().Add(time.Duration(seconds) * time.Second)
		}
	} else if raw, ok := opts["expires"]; ok {
		expires, ok := toInt64(raw)
		if !ok {
			return nil, newError(ErrCodeInvalidOption, errors.New(`"expires" must be an integer`))
		}
		if expires != 0 {
			if expires < expirationTimestampThreshold {
				expires += timeNow().Unix()
			}
			base.Expiry = time.Unix(expires, 0)
		}
	}

	values := opts.clone()
	for _, key := range baseOptionKeys {
		delete(values, key)
	}

	return &AccessToken{
		base:            base.WithExtra(map[string]any(values)),
		resourceOwnerID: optionString(opts, "resource_owner_id"),
		values:          values,
	}, nil
}

// Token returns the opaque bearer token.
func (t *AccessToken) Token() string {
	return t.base.AccessToken
}

func (t *AccessToken) RefreshToken() string {
	return t.base.RefreshToken
}

func (t *AccessToken) TokenType() string {
	return t.base.TokenType
}

// Expiry returns the zero time when the response carried no expiry.
func (t *AccessToken) Expiry() time.Time {
	return t.base.Expiry
}

// Expired reports whether the token has an expiry that has passed.
func (t *AccessToken) Expired() bool {
	return !t.base.Expiry.IsZero() && !timeNow().Before(t.base.Expiry)
}

// ResourceOwnerID is the Apple user identifier (the id_token "sub").
func (t *AccessToken) ResourceOwnerID() string {
	return t.resourceOwnerID
}

// Values returns the response fields not consumed by the token itself.
func (t *AccessToken) Values() map[string]any {
	out := make(map[string]any, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// OAuth2 returns the token as an *oauth2.Token, with Values as its extra fields.
func (t *AccessToken) OAuth2() *oauth2.Token {
	clone := *t.base
	return &clone
}

// IDToken returns the verified identity token, or "" if none was verified.
func (t *AccessToken) IDToken() string {
	return t.idToken
}

// Email returns the verified email, or "" if Apple did not verify one.
func (t *AccessToken) Email() string {
	return t.email
}

// PrivateEmail reports the is_private_email claim. known is false when the
// claim was absent.
func (t *AccessToken) PrivateEmail() (private, known bool) {
	if t.isPrivateEmail == nil {
		return false, false
	}
	return *t.isPrivateEmail, true
}

// MarshalJSON encodes the token in token endpoint response form.
func (t *AccessToken) MarshalJSON() ([]byte, error) {
	out := t.Values()
	out["access_token"] = t.base.AccessToken
	if t.base.RefreshToken != "" {
		out["refresh_token"] = t.base.RefreshToken
	}
	if !t.base.Expiry.IsZero() {
		out["expires"] = t.base.Expiry.Unix()
	}
	if t.resourceOwnerID != "" {
		out["resource_owner_id"] = t.resourceOwnerID
	}
	if t.isPrivateEmail != nil {
		out["is_private_email"] = *t.isPrivateEmail
	}
	return json.Marshal(out)
}

func (o Options) clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

func optionString(opts Options, key string) string {
	switch v := opts[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}
