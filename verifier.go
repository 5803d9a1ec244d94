package appleid

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sirupsen/logrus"
)

// Verifier validates Apple identity tokens and builds access tokens from
// token endpoint responses.
type Verifier struct {
	mu       sync.RWMutex
	cacheKey string
	cacheTTL time.Duration

	cfg        Config
	cache      Cache
	httpClient HTTPClient
	logger     logrus.FieldLogger
}

// New builds a Verifier from the given configuration.
func New(cfg Config) (*Verifier, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Verifier{
		cacheKey:   cfg.CacheKey,
		cacheTTL:   cfg.CacheTTL,
		cfg:        cfg,
		cache:      cfg.Cache,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// SetCacheKey changes the key used for later key set lookups.
// Tokens that were already constructed are not affected.
func (v *Verifier) SetCacheKey(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cacheKey = key
}

// SetCacheTTL changes how long later fetches stay cached.
func (v *Verifier) SetCacheTTL(ttl time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cacheTTL = ttl
}

func (v *Verifier) cacheSettings() (string, time.Duration) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cacheKey, v.cacheTTL
}

// VerifyIdentityToken checks the token signature against Apple's keys and
// returns its claims.
func (v *Verifier) VerifyIdentityToken(ctx context.Context, idToken string) (*IdentityClaims, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, missingOption("id_token")
	}
	set, err := v.keySet(ctx)
	if err != nil {
		v.logger.WithError(err).Warn("verifying identity token without Apple keys")
	}
	payload, err := v.verify(ctx, idToken, set)
	if err != nil {
		return nil, err
	}
	return claimsFromPayload(payload), nil
}

// keyAttempt is the outcome of verifying the token with one candidate key.
type keyAttempt struct {
	token jwt.Token
	err   error
}

// verify tries each key in set order. Only the last key's failure is returned.
func (v *Verifier) verify(ctx context.Context, idToken string, set jwk.Set) (map[string]any, error) {
	var last keyAttempt
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		last = v.tryKey(idToken, key)
		fields := logrus.Fields{"key_id": key.KeyID(), "key_index": i}
		if last.err == nil {
			v.logger.WithFields(fields).Debug("identity token verified with Apple key")
			break
		}
		v.logger.WithFields(fields).WithError(last.err).Debug("identity token rejected by Apple key")
	}

	if last.err != nil {
		IdentityTokenVerificationsTotal.WithLabelValues("failed").Inc()
		return nil, newError(ErrCodeTokenVerification, last.err)
	}
	if last.token == nil {
		IdentityTokenVerificationsTotal.WithLabelValues("empty").Inc()
		return nil, newError(ErrCodeEmptyPayload, nil)
	}
	payload, err := last.token.AsMap(ctx)
	if err != nil || len(payload) == 0 {
		IdentityTokenVerificationsTotal.WithLabelValues("empty").Inc()
		return nil, newError(ErrCodeEmptyPayload, err)
	}
	IdentityTokenVerificationsTotal.WithLabelValues("verified").Inc()
	return payload, nil
}

func (v *Verifier) tryKey(idToken string, key jwk.Key) keyAttempt {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.RS256, key),
		jwt.WithAcceptableSkew(v.cfg.ClockSkew),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	token, err := jwt.Parse([]byte(idToken), opts...)
	return keyAttempt{token: token, err: err}
}
