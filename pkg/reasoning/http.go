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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// GenerateRequest is the body POSTed to the generic reasoning model's
// /generate endpoint (self-hosted LocalAI/vLLM-style deployments, not the
// hosted Anthropic API).
type GenerateRequest struct {
	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt"`
	Model        string  `json:"model"`
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

// GenerateUsage reports token accounting for one /generate call.
type GenerateUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse is the /generate response body. Text must itself be a
// JSON document; see hypothesisPayload.
type GenerateResponse struct {
	Text  string        `json:"text"`
	Usage GenerateUsage `json:"usage"`
}

// hypothesisPayload is the JSON shape the model is prompted to emit inside
// GenerateResponse.Text: a list of hypotheses, not a single recommendation.
type hypothesisPayload struct {
	Hypotheses []types.RawHypothesis `json:"hypotheses"`
}

// HTTPProvider calls a self-hosted reasoning model over the generic
// /generate contract.
type HTTPProvider struct {
	endpoint    string
	model       string
	temperature float32
	maxTokens   int
	httpClient  *http.Client
	log         *logrus.Logger
}

// NewHTTPProvider constructs an HTTPProvider.
func NewHTTPProvider(endpoint, model string, temperature float32, maxTokens int, timeout time.Duration, log *logrus.Logger) *HTTPProvider {
	return &HTTPProvider{
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

// Generate prompts the model with the incident context and evidence
// catalog and parses its JSON hypothesis list.
func (p *HTTPProvider) Generate(ctx context.Context, incident IncidentContext, catalog []string) ([]types.RawHypothesis, error) {
	req := GenerateRequest{
		SystemPrompt: systemPrompt(),
		UserPrompt:   buildPrompt(incident, catalog),
		Model:        p.model,
		Temperature:  p.temperature,
		MaxTokens:    p.maxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.FailedTo("marshal reasoning request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.FailedTo("build reasoning request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	p.log.WithFields(logrus.Fields{"component": "reasoning", "provider": "http", "incident_id": incident.IncidentID}).Debug("calling reasoning model")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NetworkError("call reasoning model", p.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reasoning model returned status %d", resp.StatusCode)
	}

	var gr GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, errors.ParseError("reasoning response", "json", err)
	}

	var payload hypothesisPayload
	if err := json.Unmarshal([]byte(gr.Text), &payload); err != nil {
		return nil, errors.ParseError("reasoning payload", "json", err)
	}

	return ValidateRawHypotheses(payload.Hypotheses, catalog)
}

func systemPrompt() string {
	return "You are an incident root-cause analyst. Respond only with JSON: " +
		`{"hypotheses":[{"description":"...","category":"...","evidence_refs":["..."],"reasoning":"..."}]}. ` +
		"category must be one of the provided closed set; evidence_refs must come only from the provided catalog."
}

func buildPrompt(incident IncidentContext, catalog []string) string {
	return fmt.Sprintf(
		"Incident %s on service %s, severity %s.\nAffected components: %v\nEvidence catalog: %v\nPropose up to 5 ranked root-cause hypotheses.",
		incident.IncidentID, incident.Service, incident.Severity, incident.AffectedComponents, catalog,
	)
}
