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

// Package logging provides a Fields builder shared by every
// component's logging calls, and small helpers that pre-populate fields for
// common subsystems (database, HTTP, Kubernetes-era naming kept for parity,
// AI, metrics, security, performance) plus the AIRRA-specific pipeline
// domains (incident, hypothesis, action).
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is a loosely-typed field bag threaded through both logrus-based
// loggers (via ToLogrus) and logr.Logger calls (flattened to key/value
// pairs by callers).
type Fields map[string]interface{}

// NewFields returns an empty field bag.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, resourceName string) Fields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus adapts the field bag to logrus.Fields for use with
// logger.WithFields.
func (f Fields) ToLogrus() logrus.Fields {
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		lf[k] = v
	}
	return lf
}

// KeysAndValues flattens the field bag into the alternating key/value slice
// expected by logr.Logger.Info/Error.
func (f Fields) KeysAndValues() []interface{} {
	kv := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		kv = append(kv, k, v)
	}
	return kv
}

// DatabaseFields prefills component/operation/resource fields for a
// database call.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields prefills component/method/url/status fields for an HTTP call.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// WorkflowFields prefills fields for a workflow-engine operation.
func WorkflowFields(operation, workflowID string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", workflowID)
}

// KubernetesFields prefills fields for a Kubernetes-resource-shaped
// operation (kept for parity with the teacher's logging conventions; no
// package in this module calls it).
func KubernetesFields(operation, resourceType, resourceName, namespace string) Fields {
	f := NewFields().Component("kubernetes").Operation(operation).Resource(resourceType, resourceName)
	if namespace != "" {
		f["namespace"] = namespace
	}
	return f
}

// AIFields prefills fields for a reasoning-model call.
func AIFields(operation, model string) Fields {
	f := NewFields().Component("ai").Operation(operation)
	f["model"] = model
	return f
}

// MetricsFields prefills fields for a metrics-backend observation.
func MetricsFields(operation, metricName string, value float64) Fields {
	f := NewFields().Component("metrics").Operation(operation)
	f["metric_name"] = metricName
	f["value"] = value
	return f
}

// SecurityFields prefills fields for an authn/authz-flavored event. AIRRA's
// core has no authentication of its own (see Non-goals) and no package in
// this module calls it.
func SecurityFields(operation, subject string) Fields {
	f := NewFields().Component("security").Operation(operation)
	f["subject"] = subject
	return f
}

// PerformanceFields prefills fields for a timed operation's outcome.
func PerformanceFields(operation string, d time.Duration, success bool) Fields {
	f := NewFields().Component("performance").Operation(operation).Duration(d)
	f["success"] = success
	return f
}

// IncidentFields prefills fields identifying an incident for pipeline logs.
func IncidentFields(incidentID, service, status string) Fields {
	f := NewFields().Component("incident").Resource("incident", incidentID)
	f["service"] = service
	f["status"] = status
	return f
}

// HypothesisFields prefills fields identifying a hypothesis for scoring
// logs.
func HypothesisFields(incidentID string, rank int, category string, confidence float64) Fields {
	f := NewFields().Component("hypothesis").Resource("incident", incidentID)
	f["rank"] = rank
	f["category"] = category
	f["confidence"] = confidence
	return f
}

// ActionFields prefills fields identifying an action for execution logs.
func ActionFields(actionID, actionType, status string) Fields {
	f := NewFields().Component("action").Resource("action", actionID)
	f["action_type"] = actionType
	f["status"] = status
	return f
}

// PipelineFields prefills fields identifying a pipeline stage's progress on
// one incident.
func PipelineFields(stage, incidentID string) Fields {
	return NewFields().Component("pipeline").Operation(stage).Resource("incident", incidentID)
}
