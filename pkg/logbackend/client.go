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

// Package logbackend implements the outbound client contract for the
// optional log query backend (spec §6): HTTP GET /logs. When no endpoint is
// configured, callers get a NoopClient instead — log evidence enrichment is
// additive, never a hard dependency of the pipeline (spec §1 Non-goals).
package logbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kkrriders/airra/pkg/shared/errors"
)

// Entry is one log line returned by the backend.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels"`
}

type queryResponse struct {
	Items []Entry `json:"items"`
}

// Querier looks up recent log lines for a service, used to supply extra
// evidence_refs candidates to reasoning beyond what perception's metrics
// surface.
type Querier interface {
	Query(ctx context.Context, service string, start, end time.Time, limit int) ([]Entry, error)
}

// Client queries a configured log backend over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New constructs a Client against endpoint, bounding each call by timeout.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{endpoint: endpoint, httpClient: &http.Client{Timeout: timeout}}
}

// Query implements Querier.
func (c *Client) Query(ctx context.Context, service string, start, end time.Time, limit int) ([]Entry, error) {
	url := c.endpoint + "/logs?service=" + service +
		"&start=" + strconv.FormatInt(start.Unix(), 10) +
		"&end=" + strconv.FormatInt(end.Unix(), 10) +
		"&limit=" + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.FailedTo("build log backend request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NetworkError("query log backend", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NetworkError("query log backend", c.endpoint, errStatus(resp.StatusCode))
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, errors.ParseError("log backend response", "json", err)
	}
	return qr.Items, nil
}

type errStatus int

func (e errStatus) Error() string {
	return "unexpected status " + strconv.Itoa(int(e))
}

// NoopClient satisfies Querier without a configured backend: every call
// returns an empty result, leaving reasoning to rely on metric-derived
// evidence alone.
type NoopClient struct{}

// Query always returns no entries.
func (NoopClient) Query(ctx context.Context, service string, start, end time.Time, limit int) ([]Entry, error) {
	return nil, nil
}
