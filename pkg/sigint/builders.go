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

package sigint

import (
	"time"

	"github.com/Masterminds/semver"
	"github.com/oysterpack/sigint.go/pkg/message"
)

// envelope holds the fields shared by all message kinds
type envelope struct {
	client    *Client
	timestamp time.Time
	target    string
}

func (a envelope) options() []message.Option {
	if a.target == "" {
		return nil
	}
	return []message.Option{message.WithTarget(a.target)}
}

// AnnouncementBuilder builds announcements
type AnnouncementBuilder struct {
	envelope
	version string
	stack   []message.Component
}

// AppVersion sets the announced application version
func (a AnnouncementBuilder) AppVersion(version string) AnnouncementBuilder {
	a.version = version
	return a
}

// SemVer sets the announced application version from a semantic version
func (a AnnouncementBuilder) SemVer(version *semver.Version) AnnouncementBuilder {
	if version == nil {
		return a
	}
	return a.AppVersion(version.String())
}

// StackItem appends a component to the announced stack
func (a AnnouncementBuilder) StackItem(name, version string) AnnouncementBuilder {
	stack := make([]message.Component, len(a.stack), len(a.stack)+1)
	copy(stack, a.stack)
	a.stack = append(stack, message.Component{Name: name, Version: version})
	return a
}

// Stack appends the components to the announced stack
func (a AnnouncementBuilder) Stack(components []message.Component) AnnouncementBuilder {
	stack := make([]message.Component, 0, len(a.stack)+len(components))
	stack = append(stack, a.stack...)
	a.stack = append(stack, components...)
	return a
}

// At overrides the timestamp
func (a AnnouncementBuilder) At(t time.Time) AnnouncementBuilder {
	a.timestamp = t
	return a
}

// Against names the target application
func (a AnnouncementBuilder) Against(app string) AnnouncementBuilder {
	a.target = app
	return a
}

// Message returns the built message
func (a AnnouncementBuilder) Message() message.Message {
	return message.NewAnnouncement(a.client.source, a.timestamp, a.version, a.stack, a.options()...)
}

// Emit enqueues the built message
func (a AnnouncementBuilder) Emit() {
	a.client.Emit(a.Message())
}

// CounterBuilder builds counters
type CounterBuilder struct {
	envelope
	operation string
	count     int64
}

// Times sets the count
func (a CounterBuilder) Times(n int64) CounterBuilder {
	a.count = n
	return a
}

// At overrides the timestamp
func (a CounterBuilder) At(t time.Time) CounterBuilder {
	a.timestamp = t
	return a
}

// Against names the target application
func (a CounterBuilder) Against(app string) CounterBuilder {
	a.target = app
	return a
}

// Message returns the built message
func (a CounterBuilder) Message() message.Message {
	return message.NewCounter(a.client.source, a.timestamp, a.operation, a.count, a.options()...)
}

// Emit enqueues the built message
func (a CounterBuilder) Emit() {
	a.client.Emit(a.Message())
}

// TimerBuilder builds timers
type TimerBuilder struct {
	envelope
	operation string
	duration  time.Duration
}

// Duration sets the timed duration
func (a TimerBuilder) Duration(d time.Duration) TimerBuilder {
	a.duration = d
	return a
}

// At overrides the timestamp
func (a TimerBuilder) At(t time.Time) TimerBuilder {
	a.timestamp = t
	return a
}

// Against names the target application
func (a TimerBuilder) Against(app string) TimerBuilder {
	a.target = app
	return a
}

// Message returns the built message
func (a TimerBuilder) Message() message.Message {
	return message.NewTimer(a.client.source, a.timestamp, a.operation, a.duration, a.options()...)
}

// Emit enqueues the built message
func (a TimerBuilder) Emit() {
	a.client.Emit(a.Message())
}

// Start starts a stopwatch. Its Emit emits the timer with the elapsed duration.
func (a TimerBuilder) Start() Stopwatch {
	return Stopwatch{timer: a, started: a.client.clock.Now()}
}

// Stopwatch times an operation
type Stopwatch struct {
	timer   TimerBuilder
	started time.Time
}

// Elapsed returns the time since the stopwatch was started
func (a Stopwatch) Elapsed() time.Duration {
	return a.timer.client.clock.Since(a.started)
}

// Message returns the timer message with the elapsed duration
func (a Stopwatch) Message() message.Message {
	return a.timer.Duration(a.Elapsed()).Message()
}

// Emit emits the timer with the elapsed duration
func (a Stopwatch) Emit() {
	a.timer.client.Emit(a.Message())
}
