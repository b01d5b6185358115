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

// Package dictevents publishes an observational record of each completed
// cache refresh to Kafka. It sits strictly downstream of the update
// queue: nothing in pkg/dictqueue imports it, and a Sink that cannot keep
// up drops events rather than pushing back on the cache layer.
package dictevents
