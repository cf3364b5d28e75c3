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

package errors

import "fmt"

// Kind is the closed error taxonomy used consistently in logs and API
// response bodies across the pipeline (control-plane spec §7).
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindExternalUnavailable Kind = "external_unavailable"
	KindStaleState         Kind = "stale_state"
	KindRateLimited        Kind = "rate_limited"
	KindApprovalTimeout    Kind = "approval_timeout"
	KindStageTimeout       Kind = "stage_timeout"
	KindDataIntegrity      Kind = "data_integrity"
	KindDuplicate          Kind = "duplicate"
)

// PipelineError is the error shape surfaced to API callers and timeline
// events: a Kind plus an operator-safe message and optional incident/action
// identifiers.
type PipelineError struct {
	Kind       Kind
	Message    string
	IncidentID string
	ActionID   string
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError constructs a PipelineError of the given kind.
func NewPipelineError(kind Kind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

// WithIncident attaches an incident id to the error, returning the same
// pointer for chaining.
func (e *PipelineError) WithIncident(id string) *PipelineError {
	e.IncidentID = id
	return e
}

// WithAction attaches an action id to the error, returning the same pointer
// for chaining.
func (e *PipelineError) WithAction(id string) *PipelineError {
	e.ActionID = id
	return e
}

// APIBody is the {error_kind, message, incident_id?, action_id?} JSON shape
// required by spec §7 for user-visible API failures.
type APIBody struct {
	ErrorKind  Kind   `json:"error_kind"`
	Message    string `json:"message"`
	IncidentID string `json:"incident_id,omitempty"`
	ActionID   string `json:"action_id,omitempty"`
}

// ToAPIBody renders the PipelineError into its wire shape.
func (e *PipelineError) ToAPIBody() APIBody {
	return APIBody{
		ErrorKind:  e.Kind,
		Message:    e.Message,
		IncidentID: e.IncidentID,
		ActionID:   e.ActionID,
	}
}

// KindOf returns err's Kind if it wraps a *PipelineError, or
// KindExternalUnavailable for any other non-nil error -- most orchestrator
// failures originate from an external collaborator call.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if pe, ok := AsPipelineError(err); ok {
		return pe.Kind
	}
	return KindExternalUnavailable
}

// NotFoundError reports that resource identified by id does not exist.
func NotFoundError(resource, id string) error {
	return NewPipelineError(KindDataIntegrity, fmt.Sprintf("%s %q not found", resource, id), nil)
}

// AsPipelineError unwraps err looking for a *PipelineError, the way
// errors.As would, without importing the stdlib errors package twice under
// the same name as this package.
func AsPipelineError(err error) (*PipelineError, bool) {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return pe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}
