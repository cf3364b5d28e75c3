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

package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// NewPipelineLogger builds the logr.Logger handed to the pipeline core
// (perception through verification). It wraps a zap.Logger so hot-path
// stages pay structured-logging cost without binding the package API to
// zap directly.
func NewPipelineLogger(development bool) (logr.Logger, error) {
	var zl *zap.Logger
	var err error
	if development {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// NewNopPipelineLogger returns a logr.Logger that discards everything,
// used by unit tests that don't want to assert on log output.
func NewNopPipelineLogger() logr.Logger {
	return logr.Discard()
}
