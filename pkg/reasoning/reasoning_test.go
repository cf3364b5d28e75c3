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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkrriders/airra/pkg/types"
)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func TestHTTPProvider_GeneratesValidatedHypotheses(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/generate", r.URL.Path)

		var reqBody GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "test-model", reqBody.Model)

		payload := hypothesisPayload{Hypotheses: []types.RawHypothesis{
			{Description: "leak", Category: "memory_leak", EvidenceRefs: []string{"heap_bytes"}},
			{Description: "bogus", Category: "not_a_category", EvidenceRefs: []string{"heap_bytes"}},
			{Description: "out of catalog", Category: "cpu_spike", EvidenceRefs: []string{"unknown_metric"}},
		}}
		text, _ := json.Marshal(payload)

		resp := GenerateResponse{Text: string(text)}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer mockServer.Close()

	p := NewHTTPProvider(mockServer.URL, "test-model", 0.3, 500, 5*time.Second, newTestLogger())
	hyps, err := p.Generate(context.Background(), IncidentContext{IncidentID: "inc-1", Service: "checkout"}, []string{"heap_bytes"})
	require.NoError(t, err)
	require.Len(t, hyps, 1)
	assert.Equal(t, "memory_leak", hyps[0].Category)
}

func TestCachedProvider_ServesCachedResponseWithoutCallingInner(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := 0
	inner := providerFunc(func(ctx context.Context, incident IncidentContext, catalog []string) ([]types.RawHypothesis, error) {
		calls++
		return []types.RawHypothesis{{Description: "live", Category: "cpu_spike"}}, nil
	})

	cached := NewCachedProvider(inner, rdb, time.Minute)
	ic := IncidentContext{IncidentID: "inc-42"}

	first, err := cached.Generate(context.Background(), ic, nil)
	require.NoError(t, err)
	second, err := cached.Generate(context.Background(), ic, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestDegradedHypotheses_PicksTopDeviationSignal(t *testing.T) {
	ic := IncidentContext{
		Signals: []types.Signal{
			{MetricName: "cpu", DeviationSigma: 3.2},
			{MetricName: "heap_bytes", DeviationSigma: -7.1},
		},
	}
	hyps := DegradedHypotheses(ic)
	require.Len(t, hyps, 1)
	assert.Equal(t, []string{"heap_bytes"}, hyps[0].EvidenceRefs)
	assert.Equal(t, string(types.CategoryOther), hyps[0].Category)
}

type providerFunc func(ctx context.Context, incident IncidentContext, catalog []string) ([]types.RawHypothesis, error)

func (f providerFunc) Generate(ctx context.Context, incident IncidentContext, catalog []string) ([]types.RawHypothesis, error) {
	return f(ctx, incident, catalog)
}
