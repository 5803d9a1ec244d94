package appleid

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestClaimsFromPayload(t *testing.T) {
	exp := time.Unix(1_700_003_600, 0).UTC()
	iat := time.Unix(1_700_000_000, 0).UTC()
	truth := true
	falsehood := false

	tests := []struct {
		name    string
		payload map[string]any
		want    *IdentityClaims
	}{
		{
			name: "apple payload",
			payload: map[string]any{
				"iss":              "https://appleid.apple.com",
				"aud":              []string{"com.example.app"},
				"sub":              "001234.abcdef",
				"exp":              exp,
				"iat":              iat,
				"email":            "relay@privaterelay.appleid.com",
				"email_verified":   "true",
				"is_private_email": "true",
			},
			want: &IdentityClaims{
				Subject:        "001234.abcdef",
				Issuer:         "https://appleid.apple.com",
				Audience:       []string{"com.example.app"},
				ExpiresAt:      exp,
				IssuedAt:       iat,
				Email:          "relay@privaterelay.appleid.com",
				EmailVerified:  true,
				IsPrivateEmail: &truth,
			},
		},
		{
			name: "boolean claims",
			payload: map[string]any{
				"sub":              "user-1",
				"aud":              "com.example.app",
				"email":            "a@b.com",
				"email_verified":   false,
				"is_private_email": false,
			},
			want: &IdentityClaims{
				Subject:        "user-1",
				Audience:       []string{"com.example.app"},
				Email:          "a@b.com",
				IsPrivateEmail: &falsehood,
			},
		},
		{
			name:    "unparsable flags are ignored",
			payload: map[string]any{"sub": "user-1", "email_verified": "yes", "is_private_email": 1},
			want:    &IdentityClaims{Subject: "user-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := claimsFromPayload(tt.payload)
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(IdentityClaims{}, "Raw"), cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("claims mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.payload, got.Raw); diff != "" {
				t.Fatalf("raw payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTrustedEmail(t *testing.T) {
	tests := []struct {
		name   string
		claims *IdentityClaims
		want   string
		ok     bool
	}{
		{name: "verified", claims: &IdentityClaims{Email: "a@b.com", EmailVerified: true}, want: "a@b.com", ok: true},
		{name: "unverified", claims: &IdentityClaims{Email: "a@b.com"}},
		{name: "verified without email", claims: &IdentityClaims{EmailVerified: true}},
		{name: "nil claims"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.claims.TrustedEmail()
			if got != tt.want || ok != tt.ok {
				t.Fatalf("TrustedEmail() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
