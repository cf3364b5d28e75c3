/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// CachedProvider memoizes a Provider's output per incident ID for ttl (the
// prompt, catalog and model are not part of the key), and trips a circuit breaker around the underlying call so a
// degraded reasoning backend fails fast instead of stacking up timeouts
// across every incident in flight (spec §4.4: "reasoning must never
// become a bottleneck on the critical path").
type CachedProvider struct {
	inner   Provider
	rdb     *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewCachedProvider wraps inner with a Redis response cache and a circuit
// breaker. rdb may be a *redis.Client pointed at a real Redis instance or,
// in tests, one backed by miniredis.
func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reasoning-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &CachedProvider{inner: inner, rdb: rdb, ttl: ttl, breaker: cb}
}

func cacheKey(incident IncidentContext) string {
	return fmt.Sprintf("airra:reasoning:%s", incident.IncidentID)
}

// Generate serves a cached response when present, otherwise calls inner
// through the circuit breaker and caches a successful result for ttl.
func (c *CachedProvider) Generate(ctx context.Context, incident IncidentContext, catalog []string) ([]types.RawHypothesis, error) {
	key := cacheKey(incident)

	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var raw []types.RawHypothesis
		if jsonErr := json.Unmarshal([]byte(cached), &raw); jsonErr == nil {
			return raw, nil
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Generate(ctx, incident, catalog)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reasoning provider call")
	}

	raw := result.([]types.RawHypothesis)

	if encoded, jsonErr := json.Marshal(raw); jsonErr == nil {
		c.rdb.Set(ctx, key, encoded, c.ttl)
	}

	return raw, nil
}
