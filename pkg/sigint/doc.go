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

/*
Package sigint is the application facing API for emitting announcements, counters and timers.

	client, err := sigint.New(config)
	...
	defer client.Close()

	client.Announce().AppVersion("1.2.3").StackItem("nats", "1.43.0").Emit()
	client.Count("login").Emit()
	client.Count("login").Times(3).Against("auth").Emit()
	client.Time("validate_token").Duration(12 * time.Millisecond).Emit()

	stopwatch := client.Time("query").Start()
	...
	stopwatch.Emit()

Builders are immutable values: every method returns a new builder, so partially built messages can be shared and
reused. Emit never blocks and never fails: messages are buffered until a broker connection is ready.
*/
package sigint
