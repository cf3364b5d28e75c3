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

// Package learning appends ConfidenceOutcomeRecords and OperatorFeedback
// to a line-delimited JSON log, the only write-back path from execution
// outcomes into future confidence scoring (spec §4.8). Entries are never
// rewritten once appended; pkg/scoring's PriorSource reads an in-memory
// aggregation seeded from this log at startup and updated as outcomes are
// appended, never the log itself.
package learning

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// Store appends records to a single JSONL file, safe for concurrent
// appenders (spec's concurrency model allows overlapping action
// verification across incidents).
type Store struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open opens (creating if absent) the JSONL file at path for appending.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.FailedToWithDetails("open learning store", "learning", path, err)
	}
	return &Store{path: path, file: f}, nil
}

type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// AppendOutcome appends a ConfidenceOutcomeRecord.
func (s *Store) AppendOutcome(rec types.ConfidenceOutcomeRecord) error {
	return s.append("outcome", rec)
}

// AppendFeedback appends an OperatorFeedback record.
func (s *Store) AppendFeedback(fb types.OperatorFeedback) error {
	return s.append("feedback", fb)
}

func (s *Store) append(kind string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.FailedTo("marshal learning record", err)
	}
	line, err := json.Marshal(envelope{Kind: kind, Payload: body})
	if err != nil {
		return errors.FailedTo("marshal learning envelope", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return errors.FailedToWithDetails("append learning record", "learning", s.path, err)
	}
	return s.file.Sync()
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ReadAll replays every record in the store at path, used by aggregation
// at startup and by tests. It never holds the whole file as a single
// in-memory []byte; it scans line by line.
func ReadAll(path string) (outcomes []types.ConfidenceOutcomeRecord, feedback []types.OperatorFeedback, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.FailedToWithDetails("read learning store", "learning", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var env envelope
		if jsonErr := json.Unmarshal(scanner.Bytes(), &env); jsonErr != nil {
			continue
		}
		switch env.Kind {
		case "outcome":
			var rec types.ConfidenceOutcomeRecord
			if jsonErr := json.Unmarshal(env.Payload, &rec); jsonErr == nil {
				outcomes = append(outcomes, rec)
			}
		case "feedback":
			var fb types.OperatorFeedback
			if jsonErr := json.Unmarshal(env.Payload, &fb); jsonErr == nil {
				feedback = append(feedback, fb)
			}
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return outcomes, feedback, errors.FailedTo("scan learning store", scanErr)
	}
	return outcomes, feedback, nil
}
