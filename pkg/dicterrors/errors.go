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

// Package dicterrors defines the typed error taxonomy shared by the update
// queue and its collaborators.
package dicterrors

import (
	"github.com/pingcap/errors"
)

// errors raised directly by pkg/dictqueue, the update-queue core.
var (
	ErrQueueFinished = errors.Normalize(
		"update queue for dictionary '%s' already finished",
		errors.RFCCodeText("DICT:ErrQueueFinished"),
	)
	ErrPushTimedOut = errors.Normalize(
		"cannot push to internal update queue in dictionary '%s'. "+
			"Timelimit of %s exceeded. Current queue size is %d",
		errors.RFCCodeText("DICT:ErrPushTimedOut"),
	)
	ErrQueryTimedOut = errors.Normalize(
		"dictionary '%s' source seems unavailable, because %s timeout exceeded",
		errors.RFCCodeText("DICT:ErrQueryTimedOut"),
	)
	ErrUpdateFailed = errors.Normalize(
		"update failed for dictionary '%s': %s",
		errors.RFCCodeText("DICT:ErrUpdateFailed"),
	)
	ErrDoubleStop = errors.Normalize(
		"update queue for dictionary '%s' was already stopped by a previous Stop call",
		errors.RFCCodeText("DICT:ErrDoubleStop"),
	)
)

// errors raised by the collaborators (pkg/dictcache, pkg/dictsource,
// pkg/dictconfig, pkg/dictevents). These sit outside the update-queue core
// but share its error-construction convention.
var (
	ErrCacheUnavailable = errors.Normalize(
		"cache backend unavailable: %s",
		errors.RFCCodeText("DICT:ErrCacheUnavailable"),
	)
	ErrSourceUnavailable = errors.Normalize(
		"dictionary source unavailable after %d attempts: %s",
		errors.RFCCodeText("DICT:ErrSourceUnavailable"),
	)
	ErrInvalidConfig = errors.Normalize(
		"invalid configuration: %s",
		errors.RFCCodeText("DICT:ErrInvalidConfig"),
	)
	ErrEventSinkClosed = errors.Normalize(
		"refresh event sink already closed",
		errors.RFCCodeText("DICT:ErrEventSinkClosed"),
	)
)
