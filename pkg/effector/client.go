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

// Package effector implements the outbound client contract for the external
// action effector (spec §6): POST /actions/execute to start an attempt, GET
// /actions/{attempt_id} to poll it. It implements pkg/execution.Effector;
// AIRRA never performs the side effect itself (spec §1 Non-goals).
package effector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

type executeRequest struct {
	ActionType    types.ActionType       `json:"action_type"`
	Parameters    map[string]interface{} `json:"parameters"`
	ExecutionMode types.ExecutionMode    `json:"execution_mode"`
}

type executeResponse struct {
	Status    string `json:"status"` // started | rejected
	AttemptID int64  `json:"attempt_id"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"` // running | succeeded | failed
	Detail string `json:"detail,omitempty"`
}

// Client talks to the effector over HTTP, circuit-breaking so a wedged
// effector doesn't block every pending approved action.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New constructs a Client against endpoint, bounding each call by timeout.
func New(endpoint string, timeout time.Duration) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "effector",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// Execute implements pkg/execution.Effector. A "rejected" response is
// surfaced as an error; the caller treats it the same as a transport
// failure since no attempt is in flight to poll.
func (c *Client) Execute(ctx context.Context, action types.Action) (int64, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doExecute(ctx, action)
	})
	if err != nil {
		return 0, errors.NetworkError("start action execution", c.endpoint, err)
	}
	return result.(int64), nil
}

func (c *Client) doExecute(ctx context.Context, action types.Action) (int64, error) {
	body, err := json.Marshal(executeRequest{
		ActionType:    action.ActionType,
		Parameters:    action.Parameters,
		ExecutionMode: action.ExecutionMode,
	})
	if err != nil {
		return 0, errors.FailedTo("marshal execute request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/actions/execute", bytes.NewReader(body))
	if err != nil {
		return 0, errors.FailedTo("build execute request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var er executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return 0, errors.ParseError("execute response", "json", err)
	}

	if er.Status == "rejected" {
		return 0, fmt.Errorf("effector rejected action %s: %s", action.ActionType, er.Error)
	}
	if er.Status != "started" {
		return 0, fmt.Errorf("effector returned unexpected status %q", er.Status)
	}
	return er.AttemptID, nil
}

// Status implements pkg/execution.Effector. done is true once the attempt
// reaches a terminal state (succeeded or failed); a non-nil error is only
// returned for transport or contract failures, not a "failed" outcome.
func (c *Client) Status(ctx context.Context, attemptID int64) (bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doStatus(ctx, attemptID)
	})
	if err != nil {
		return false, errors.NetworkError("poll action status", c.endpoint, err)
	}
	return result.(bool), nil
}

func (c *Client) doStatus(ctx context.Context, attemptID int64) (bool, error) {
	url := c.endpoint + "/actions/" + strconv.FormatInt(attemptID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, errors.FailedTo("build status request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("effector status endpoint returned %d", resp.StatusCode)
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return false, errors.ParseError("status response", "json", err)
	}

	switch sr.Status {
	case "running":
		return false, nil
	case "succeeded", "failed":
		return true, nil
	default:
		return false, fmt.Errorf("effector returned unexpected status %q", sr.Status)
	}
}
