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

// Package message defines the immutable emission messages: announcements, counters and timers.
package message

import (
	"fmt"
	"time"
)

// SchemaVersion is the wire schema version stamped on every message
const SchemaVersion = 1

// Type is the message type tag. It is also used as the publish routing key.
type Type string

// message types
const (
	Announcement Type = "a"
	Counter      Type = "c"
	Timer        Type = "t"
)

func (a Type) String() string {
	return string(a)
}

// Valid returns true for the known message types
func (a Type) Valid() bool {
	switch a {
	case Announcement, Counter, Timer:
		return true
	default:
		return false
	}
}

// Source identifies the emitting application instance
type Source struct {
	NodeName string
	AppName  string
}

// Component is a named, versioned dependency listed in an announcement stack
type Component struct {
	Name    string
	Version string
}

// Message is an immutable emission.
// The type specific accessors return zero values for the other types.
type Message struct {
	source    Source
	timestamp time.Time
	typ       Type
	operation string
	target    string

	version  string
	stack    []Component
	count    int64
	duration time.Duration
}

// Option applies optional message fields
type Option func(*Message)

// WithTarget names the application the message is emitted against
func WithTarget(app string) Option {
	return func(m *Message) {
		m.target = app
	}
}

// NewAnnouncement announces the application version and its component stack
func NewAnnouncement(source Source, timestamp time.Time, version string, stack []Component, opts ...Option) Message {
	m := Message{
		source:    source,
		timestamp: timestamp,
		typ:       Announcement,
		version:   version,
		stack:     copyStack(stack),
	}
	return m.apply(opts)
}

// NewCounter counts count occurrences of operation
func NewCounter(source Source, timestamp time.Time, operation string, count int64, opts ...Option) Message {
	m := Message{
		source:    source,
		timestamp: timestamp,
		typ:       Counter,
		operation: operation,
		count:     count,
	}
	return m.apply(opts)
}

// NewTimer records how long operation took. The duration is carried with millisecond precision.
func NewTimer(source Source, timestamp time.Time, operation string, duration time.Duration, opts ...Option) Message {
	m := Message{
		source:    source,
		timestamp: timestamp,
		typ:       Timer,
		operation: operation,
		duration:  duration.Truncate(time.Millisecond),
	}
	return m.apply(opts)
}

func (a Message) apply(opts []Option) Message {
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// SchemaVersion is always 1
func (a Message) SchemaVersion() int { return SchemaVersion }

// Source returns the emitting application identity
func (a Message) Source() Source { return a.source }

// Timestamp is when the message was created
func (a Message) Timestamp() time.Time { return a.timestamp }

// Type returns the type tag
func (a Message) Type() Type { return a.typ }

// Operation returns the counter or timer operation name
func (a Message) Operation() string { return a.operation }

// Target returns the target application name, or "" if the message was not emitted against a target
func (a Message) Target() string { return a.target }

// Version returns the announced application version
func (a Message) Version() string { return a.version }

// Stack returns a copy of the announced component stack
func (a Message) Stack() []Component { return copyStack(a.stack) }

// Count returns the counter value
func (a Message) Count() int64 { return a.count }

// Duration returns the timer duration
func (a Message) Duration() time.Duration { return a.duration }

func (a Message) String() string {
	var payload string
	switch a.typ {
	case Announcement:
		payload = fmt.Sprintf("version=%s stack=%v", a.version, a.stack)
	case Counter:
		payload = fmt.Sprintf("count=%d", a.count)
	case Timer:
		payload = fmt.Sprintf("duration=%v", a.duration)
	}
	s := fmt.Sprintf("%s %s/%s %s op=%q %s", a.typ, a.source.NodeName, a.source.AppName, a.timestamp.Format(time.RFC3339Nano), a.operation, payload)
	if a.target != "" {
		s += " target=" + a.target
	}
	return s
}

func copyStack(stack []Component) []Component {
	if len(stack) == 0 {
		return nil
	}
	c := make([]Component, len(stack))
	copy(c, stack)
	return c
}
