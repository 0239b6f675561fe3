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

package message_test

import (
	"testing"
	"time"

	"github.com/oysterpack/sigint.go/pkg/message"
)

var source = message.Source{NodeName: "app1node0", AppName: "app1"}

func TestNewAnnouncement_CopiesStack(t *testing.T) {
	stack := []message.Component{{Name: "sigint", Version: "1.0.0"}}
	m := message.NewAnnouncement(source, time.Now(), "2.1.0", stack)
	stack[0].Version = "9.9.9"
	if m.Stack()[0].Version != "1.0.0" {
		t.Error("*** ERROR *** the message must not share the stack slice it was created with")
	}
	returned := m.Stack()
	returned[0].Name = "changed"
	if m.Stack()[0].Name != "sigint" {
		t.Error("*** ERROR *** the message must not expose its stack slice")
	}
	if m.Type() != message.Announcement || m.Version() != "2.1.0" || m.Target() != "" {
		t.Errorf("*** ERROR *** unexpected announcement : %v", m)
	}
}

func TestNewCounter(t *testing.T) {
	m := message.NewCounter(source, time.Now(), "login", 3, message.WithTarget("auth"))
	if m.Type() != message.Counter || m.Operation() != "login" || m.Count() != 3 || m.Target() != "auth" {
		t.Errorf("*** ERROR *** unexpected counter : %v", m)
	}
	if m.SchemaVersion() != 1 {
		t.Errorf("*** ERROR *** schema version must be 1 : %d", m.SchemaVersion())
	}
	t.Log(m)
}

func TestNewTimer_MillisecondPrecision(t *testing.T) {
	m := message.NewTimer(source, time.Now(), "query", 1500*time.Microsecond)
	if m.Duration() != time.Millisecond {
		t.Errorf("*** ERROR *** duration should be truncated to millis : %v", m.Duration())
	}
}

func TestType_Valid(t *testing.T) {
	for _, typ := range []message.Type{message.Announcement, message.Counter, message.Timer} {
		if !typ.Valid() {
			t.Errorf("*** ERROR *** %v should be valid", typ)
		}
	}
	if message.Type("x").Valid() {
		t.Error("*** ERROR *** x is not a message type")
	}
}
