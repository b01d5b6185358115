// Copyright 2020 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package dictevents

import "time"

// Outcome classifies how one queue round trip concluded.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// RefreshEvent is an immutable record of one Submit/Await round trip,
// published once the round trip concludes regardless of outcome, whether
// Submit or Await ended it.
type RefreshEvent struct {
	Dictionary string    `json:"dictionary"`
	Key        string    `json:"key"`
	Outcome    Outcome   `json:"outcome"`
	Latency    time.Duration `json:"latency_ns"`
	ErrorCode  string    `json:"error_code,omitempty"`
	At         time.Time `json:"at"`
}
