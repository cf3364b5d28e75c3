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

package metricsbackend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRange_ParsesMatrixResult(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query_range", r.URL.Path)
		assert.Equal(t, `heap_bytes{service="checkout"}`, r.URL.Query().Get("query"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"data": {
				"resultType": "matrix",
				"result": [{
					"metric": {"service": "checkout"},
					"values": [[1700000000, "512.5"], [1700000060, "640.2"]]
				}]
			}
		}`))
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 15*time.Second, 5*time.Second)
	points, err := c.QueryRange(context.Background(), "checkout", "heap_bytes", time.Hour)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 512.5, points[0].Value)
	assert.Equal(t, 640.2, points[1].Value)
}

func TestQueryRange_RejectsBackendErrorStatus(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "data": {"resultType": "matrix", "result": []}}`))
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 15*time.Second, 5*time.Second)
	_, err := c.QueryRange(context.Background(), "checkout", "heap_bytes", time.Hour)
	require.Error(t, err)
}

func TestQueryRange_RejectsHTTPError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 15*time.Second, 5*time.Second)
	_, err := c.QueryRange(context.Background(), "checkout", "heap_bytes", time.Hour)
	require.Error(t, err)
}

func TestQueryRange_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 15*time.Second, 5*time.Second)
	for i := 0; i < 5; i++ {
		_, err := c.QueryRange(context.Background(), "checkout", "heap_bytes", time.Hour)
		require.Error(t, err)
	}

	_, err := c.QueryRange(context.Background(), "checkout", "heap_bytes", time.Hour)
	require.Error(t, err)
	assert.Equal(t, gobreakerOpenStateName, c.breaker.State().String())
}

const gobreakerOpenStateName = "open"
