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

package effector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkrriders/airra/pkg/types"
)

func testAction() types.Action {
	return types.Action{
		ID:            "act-1",
		IncidentID:    "inc-1",
		ActionType:    types.ActionScaleUp,
		Parameters:    map[string]interface{}{"replicas": 3},
		ExecutionMode: types.ExecutionDryRun,
	}
}

func TestExecute_ReturnsAttemptIDOnStarted(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actions/execute", r.URL.Path)

		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, types.ActionScaleUp, req.ActionType)

		json.NewEncoder(w).Encode(executeResponse{Status: "started", AttemptID: 42})
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 5*time.Second)
	attemptID, err := c.Execute(context.Background(), testAction())
	require.NoError(t, err)
	assert.Equal(t, int64(42), attemptID)
}

func TestExecute_RejectedReturnsError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(executeResponse{Status: "rejected", Error: "unknown action_type"})
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 5*time.Second)
	_, err := c.Execute(context.Background(), testAction())
	require.Error(t, err)
}

func TestStatus_RunningIsNotDone(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actions/42", r.URL.Path)
		json.NewEncoder(w).Encode(statusResponse{Status: "running"})
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 5*time.Second)
	done, err := c.Status(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStatus_SucceededAndFailedAreDone(t *testing.T) {
	for _, status := range []string{"succeeded", "failed"} {
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(statusResponse{Status: status, Detail: "done"})
		}))

		c := New(mockServer.URL, 5*time.Second)
		done, err := c.Status(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, done)

		mockServer.Close()
	}
}

func TestStatus_UnexpectedStatusIsError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{Status: "bogus"})
	}))
	defer mockServer.Close()

	c := New(mockServer.URL, 5*time.Second)
	_, err := c.Status(context.Background(), 1)
	require.Error(t, err)
}
