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

import "math/rand"

// rotation spreads publishes across ready supervisors.
// The ready set is shuffled into a cyclic order, which is kept until the ready set changes. While the ready set is
// stable, any N consecutive picks cover all N ready supervisors, across drain passes.
type rotation struct {
	rand  *rand.Rand
	order []*Supervisor
	pos   int
}

func newRotation(r *rand.Rand) *rotation {
	return &rotation{rand: r}
}

// next returns the next ready supervisor that is not excluded, or nil if none remains.
// Supervisors found not ready are added to excluded.
func (a *rotation) next(supervisors []*Supervisor, excluded map[*Supervisor]bool) *Supervisor {
	a.sync(supervisors)
	for i := 0; i < len(a.order); i++ {
		s := a.order[a.pos]
		a.pos = (a.pos + 1) % len(a.order)
		if excluded[s] {
			continue
		}
		if !s.IsConnected() {
			excluded[s] = true
			continue
		}
		return s
	}
	return nil
}

// sync reshuffles the order if the ready set changed
func (a *rotation) sync(supervisors []*Supervisor) {
	var ready []*Supervisor
	for _, s := range supervisors {
		if s.IsConnected() {
			ready = append(ready, s)
		}
	}
	if sameMembers(ready, a.order) {
		return
	}
	a.rand.Shuffle(len(ready), func(i, j int) {
		ready[i], ready[j] = ready[j], ready[i]
	})
	a.order = ready
	a.pos = 0
}

func sameMembers(a, b []*Supervisor) bool {
	if len(a) != len(b) {
		return false
	}
	members := make(map[*Supervisor]bool, len(b))
	for _, s := range b {
		members[s] = true
	}
	for _, s := range a {
		if !members[s] {
			return false
		}
	}
	return true
}
