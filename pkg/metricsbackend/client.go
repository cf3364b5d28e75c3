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

// Package metricsbackend implements the outbound client contract for the
// external metrics store (spec §6): HTTP GET /query_range, Prometheus's own
// response shape. It implements pkg/perception.MetricsBackend; the backend
// itself, and everything behind its API, is out of scope (spec §1).
package metricsbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kkrriders/airra/pkg/perception"
	"github.com/kkrriders/airra/pkg/shared/errors"
)

// rangeResponse is the usual Prometheus query_range shape.
type rangeResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Values [][2]interface{}  `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// Client queries the metrics backend over HTTP, circuit-breaking repeated
// failures so a degraded backend doesn't stall every perception poll cycle.
type Client struct {
	endpoint   string
	step       time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New constructs a Client against endpoint, sampling at step resolution and
// bounding each call by timeout.
func New(endpoint string, step, timeout time.Duration) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metricsbackend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		endpoint:   endpoint,
		step:       step,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// QueryRange implements pkg/perception.MetricsBackend: it runs a PromQL
// selector scoped to service over window, ending now.
func (c *Client) QueryRange(ctx context.Context, service, metric string, window time.Duration) ([]perception.MetricPoint, error) {
	end := time.Now()
	start := end.Add(-window)
	query := fmt.Sprintf(`%s{service=%q}`, metric, service)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doQueryRange(ctx, query, start, end)
	})
	if err != nil {
		return nil, errors.NetworkError("query metrics backend", c.endpoint, err)
	}
	return result.([]perception.MetricPoint), nil
}

func (c *Client) doQueryRange(ctx context.Context, query string, start, end time.Time) ([]perception.MetricPoint, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", strconv.FormatFloat(c.step.Seconds(), 'f', -1, 64))

	reqURL := c.endpoint + "/query_range?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.FailedTo("build metrics backend request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics backend returned status %d", resp.StatusCode)
	}

	var rr rangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, errors.ParseError("metrics backend response", "json", err)
	}
	if rr.Status != "success" {
		return nil, fmt.Errorf("metrics backend reported status %q", rr.Status)
	}
	if rr.Data.ResultType != "matrix" && rr.Data.ResultType != "vector" {
		return nil, fmt.Errorf("unsupported metrics backend result type %q", rr.Data.ResultType)
	}

	var points []perception.MetricPoint
	for _, series := range rr.Data.Result {
		for _, v := range series.Values {
			ts, ok := v[0].(float64)
			if !ok {
				continue
			}
			valStr, ok := v[1].(string)
			if !ok {
				continue
			}
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				continue
			}
			points = append(points, perception.MetricPoint{
				Timestamp: time.Unix(int64(ts), 0),
				Value:     val,
			})
		}
	}
	return points, nil
}
