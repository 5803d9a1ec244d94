package appleid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
)

// Apple's key set is a handful of RSA keys; anything larger is not a key set.
const maxKeySetBytes = 1 << 20

// KeySet returns the current candidate keys. The returned set is never nil.
// A non-nil error reports why the set is empty and is for diagnostics only.
func (v *Verifier) KeySet(ctx context.Context) (jwk.Set, error) {
	return v.keySet(ctx)
}

// Warmup fetches the key set and populates the cache, if one is configured.
func (v *Verifier) Warmup(ctx context.Context) error {
	refreshCtx := ctx
	if v.cfg.HTTPTimeout > 0 {
		var cancel context.CancelFunc
		refreshCtx, cancel = context.WithTimeout(ctx, v.cfg.HTTPTimeout)
		defer cancel()
	}
	_, err := v.keySet(refreshCtx)
	return err
}

func (v *Verifier) keySet(ctx context.Context) (jwk.Set, error) {
	cacheKey, cacheTTL := v.cacheSettings()
	log := v.logger.WithFields(logrus.Fields{"cache_key": cacheKey, "url": v.cfg.KeysURL})

	if v.cache != nil {
		if raw, ok := v.cache.Fetch(ctx, cacheKey); ok {
			set, err := jwk.Parse(raw)
			if err == nil && set.Len() > 0 {
				KeySetLookupsTotal.WithLabelValues("cache", "OK").Inc()
				return set, nil
			}
			log.WithError(err).Debug("ignoring unusable cached key set")
		}
	}

	raw, err := v.fetchKeySet(ctx)
	if err != nil {
		KeySetLookupsTotal.WithLabelValues("remote", "fetch error").Inc()
		return jwk.NewSet(), newError(ErrCodeKeySetUnavailable, err)
	}
	set, err := jwk.Parse(raw)
	if err != nil {
		KeySetLookupsTotal.WithLabelValues("remote", "parse error").Inc()
		return jwk.NewSet(), newError(ErrCodeKeySetUnavailable, fmt.Errorf("parse key set: %w", err))
	}
	if set.Len() == 0 {
		KeySetLookupsTotal.WithLabelValues("remote", "empty").Inc()
		return set, newError(ErrCodeKeySetUnavailable, errors.New("key set contains no keys"))
	}
	KeySetLookupsTotal.WithLabelValues("remote", "OK").Inc()

	if v.cache != nil {
		if err := v.cache.Store(ctx, cacheKey, raw, cacheTTL); err != nil {
			log.WithError(err).Warn("failed to cache Apple key set")
		}
	}
	log.WithField("keys", set.Len()).Debug("fetched Apple key set")
	return set, nil
}

func (v *Verifier) fetchKeySet(ctx context.Context) ([]byte, error) {
	t := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.KeysURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		KeySetFetchDuration.WithLabelValues("transport error").Observe(time.Since(t).Seconds())
		return nil, fmt.Errorf("request %s: %w", v.cfg.KeysURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		KeySetFetchDuration.WithLabelValues("status error").Observe(time.Since(t).Seconds())
		return nil, fmt.Errorf("keys endpoint returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		KeySetFetchDuration.WithLabelValues("read error").Observe(time.Since(t).Seconds())
		return nil, fmt.Errorf("read key set: %w", err)
	}
	KeySetFetchDuration.WithLabelValues("OK").Observe(time.Since(t).Seconds())
	return body, nil
}
