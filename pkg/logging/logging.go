// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging provides the zerolog conventions shared by all sigint packages.
package logging

import (
	"reflect"
	"strings"
	"time"

	commonsreflect "github.com/oysterpack/sigint.go/pkg/commons/reflect"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger fields
const (
	PACKAGE     = "pkg"
	TYPE        = "type"
	FUNC        = "func"
	NAME        = "name"
	EVENT       = "event"
	ID          = "id"
	STATE       = "state"
	HEALTHCHECK = "healthcheck"
)

// Event names a logged occurrence, e.g., conn_ready, msg_dropped.
// It is logged using the EVENT field.
type Event string

func (a Event) String() string {
	return string(a)
}

// Log returns e with the event field set
func (a Event) Log(e *zerolog.Event) *zerolog.Event {
	return e.Str(EVENT, string(a))
}

// NewPackageLogger returns a new logger with pkg={pkg}
// where {pkg} is o's package path
// o must be a struct - the pattern is to use an empty struct
func NewPackageLogger(o interface{}) zerolog.Logger {
	if _, err := commonsreflect.Struct(reflect.TypeOf(o)); err != nil {
		panic("NewPackageLogger can only be created for a struct")
	}
	return log.With().Str(PACKAGE, string(commonsreflect.ObjectPackage(o))).Logger()
}

// Level is the logging level
type Level string

// log levels
const (
	DEBUG Level = "debug"
	INFO  Level = "info"
	WARN  Level = "warn"
	ERROR Level = "error"
)

// ParseLevel maps [DEBUG,INFO,WARN,ERROR] (case insensitive) to the zerolog level.
// Anything else maps to WARN.
func ParseLevel(level string) zerolog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(level))) {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
