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

package emission

import (
	"time"

	"github.com/oysterpack/sigint.go/pkg/broker"
)

// SupervisorInfo snapshot
type SupervisorInfo struct {
	ID       string
	Endpoint broker.Endpoint
	Created  time.Time
	State    string

	Readies       int
	LastReadyTime time.Time

	Disconnects        int
	LastDisconnectTime time.Time

	Errors        int
	LastErrorTime time.Time
}

func (a *SupervisorInfo) String() string {
	// ignoring error, because marshalling should never fail
	bytes, _ := json.Marshal(a)
	return string(bytes)
}

// Info returns a snapshot of the supervisor's connection history
func (a *Supervisor) Info() *SupervisorInfo {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return &SupervisorInfo{
		ID:       a.id,
		Endpoint: a.endpoint,
		Created:  a.created,
		State:    a.state.String(),

		Readies:       a.readies,
		LastReadyTime: a.lastReadyTime,

		Disconnects:        a.disconnects,
		LastDisconnectTime: a.lastDisconnectTime,

		Errors:        a.errors,
		LastErrorTime: a.lastErrorTime,
	}
}

func (a *Supervisor) String() string {
	return a.Info().String()
}
