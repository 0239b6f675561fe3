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
	"testing"
	"time"

	"github.com/oysterpack/sigint.go/pkg/message"
)

func counter(op string) message.Message {
	return message.NewCounter(message.Source{NodeName: "n", AppName: "a"}, time.Now(), op, 1)
}

func ops(messages []message.Message) []string {
	result := make([]string, len(messages))
	for i, m := range messages {
		result[i] = m.Operation()
	}
	return result
}

func TestFIFO(t *testing.T) {
	q := newFIFO(3)
	for _, op := range []string{"A", "B", "C"} {
		if _, evicted := q.PushBack(counter(op)); evicted {
			t.Errorf("*** ERROR *** nothing should be evicted before the fifo is full")
		}
	}
	evicted, ok := q.PushBack(counter("D"))
	if !ok || evicted.Operation() != "A" {
		t.Errorf("*** ERROR *** the oldest message should have been evicted : %v", evicted)
	}
	if got := ops(q.Snapshot()); len(got) != 3 || got[0] != "B" || got[2] != "D" {
		t.Errorf("*** ERROR *** unexpected contents : %v", got)
	}
	if q.PushFront(counter("X")) {
		t.Error("*** ERROR *** PushFront must fail when full")
	}

	m, _ := q.PopFront()
	if m.Operation() != "B" {
		t.Errorf("*** ERROR *** expected B : %v", m)
	}
	if !q.PushFront(m) {
		t.Error("*** ERROR *** PushFront should succeed")
	}
	if got := ops(q.Snapshot()); got[0] != "B" || got[1] != "C" || got[2] != "D" {
		t.Errorf("*** ERROR *** B should be back at the head : %v", got)
	}

	if n := q.Clear(); n != 3 || q.Len() != 0 {
		t.Errorf("*** ERROR *** clear failed : %d : %d", n, q.Len())
	}
	if _, ok := q.PopFront(); ok {
		t.Error("*** ERROR *** the fifo should be empty")
	}
}
