package appleid

import (
	"strconv"
	"time"
)

// IdentityClaims represents the verified payload of an Apple identity token.
type IdentityClaims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time

	Email          string
	EmailVerified  bool
	IsPrivateEmail *bool

	Raw map[string]any
}

// TrustedEmail returns the email claim only when Apple marked it verified.
func (c *IdentityClaims) TrustedEmail() (string, bool) {
	if c == nil || !c.EmailVerified || c.Email == "" {
		return "", false
	}
	return c.Email, true
}

func claimsFromPayload(payload map[string]any) *IdentityClaims {
	claims := &IdentityClaims{
		Subject: stringClaim(payload["sub"]),
		Issuer:  stringClaim(payload["iss"]),
		Email:   stringClaim(payload["email"]),
		Raw:     make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		claims.Raw[k] = v
	}
	claims.Audience = normalizeAudience(payload["aud"])
	if t, ok := payload["exp"].(time.Time); ok {
		claims.ExpiresAt = t
	}
	if t, ok := payload["iat"].(time.Time); ok {
		claims.IssuedAt = t
	}
	if verified, ok := boolClaim(payload["email_verified"]); ok {
		claims.EmailVerified = verified
	}
	if private, ok := boolClaim(payload["is_private_email"]); ok {
		claims.IsPrivateEmail = &private
	}
	return claims
}

func stringClaim(value any) string {
	s, _ := value.(string)
	return s
}

// boolClaim accepts JSON booleans and the "true"/"false" strings Apple sends.
func boolClaim(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

func normalizeAudience(value any) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
		return nil
	default:
		return nil
	}
}
