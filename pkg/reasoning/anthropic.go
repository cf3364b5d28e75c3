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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// AnthropicProvider calls the hosted Claude API for incidents where the
// operator has opted into a managed model over a self-hosted LocalAI
// endpoint.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *logrus.Logger
}

// NewAnthropicProvider constructs an AnthropicProvider. model should
// generally be a fixed, pinned model string rather than a "-latest" alias
// so hypothesis generation stays reproducible across reloads.
func NewAnthropicProvider(apiKey, model string, maxTokens int, log *logrus.Logger) *AnthropicProvider {
	return &AnthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
		log:       log,
	}
}

// Generate prompts Claude with the incident context and evidence catalog
// and parses its JSON hypothesis list out of the text response.
func (p *AnthropicProvider) Generate(ctx context.Context, incident IncidentContext, catalog []string) ([]types.RawHypothesis, error) {
	p.log.WithFields(logrus.Fields{"component": "reasoning", "provider": "anthropic", "incident_id": incident.IncidentID}).Debug("calling reasoning model")

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(incident, catalog))),
		},
	})
	if err != nil {
		return nil, errors.NetworkError("call reasoning model", "anthropic", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("reasoning model returned no content blocks")
	}

	var payload hypothesisPayload
	if err := json.Unmarshal([]byte(message.Content[0].Text), &payload); err != nil {
		return nil, errors.ParseError("reasoning payload", "json", err)
	}

	return ValidateRawHypotheses(payload.Hypotheses, catalog)
}
