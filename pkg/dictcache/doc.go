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

// Package dictcache is the cache-dictionary layer: a Redis-backed
// key/value front end that owns entry expiry and refreshes stale or
// missing entries through a dictqueue.UpdateQueue. It is the only caller
// of Submit and Await in a running deployment, and the only place
// concurrent lookups for the same key are coalesced into a single
// refresh.
package dictcache
