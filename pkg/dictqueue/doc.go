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

// Package dictqueue implements a bounded, multi-worker update queue that
// serialises refresh work for a lookup cache whose entries expire and must
// be repopulated from an external source.
//
// A submitter builds an UpdateUnit, calls Submit to enqueue it (subject to
// a push-side admission timeout), then calls Await to block until a worker
// has run the UpdateCallback against it (subject to a query-side
// completion timeout). The queue owns no knowledge of what the cache or
// the source look like; it only serialises access to a bounded backlog and
// delivers the callback's outcome back to the unique submitter that is
// waiting on it.
package dictqueue
