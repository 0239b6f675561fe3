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

package message

import (
	"fmt"
	"time"
)

// Record is the serialized form of a Message:
//
//	{v: 1, s: {n: node_name, a: app_name}, w: epoch-millis, t: type, o?: operation, g?: target, d: payload}
//
// The payload is an AnnouncementRecord for announcements, the count for counters and milliseconds for timers.
type Record struct {
	V int          `msgpack:"v" json:"v"`
	S SourceRecord `msgpack:"s" json:"s"`
	W int64        `msgpack:"w" json:"w"`
	T string       `msgpack:"t" json:"t"`
	O string       `msgpack:"o,omitempty" json:"o,omitempty"`
	G string       `msgpack:"g,omitempty" json:"g,omitempty"`
	D interface{}  `msgpack:"d" json:"d"`
}

// SourceRecord is the serialized Source
type SourceRecord struct {
	N string `msgpack:"n" json:"n"`
	A string `msgpack:"a" json:"a"`
}

// AnnouncementRecord is the serialized announcement payload
type AnnouncementRecord struct {
	V string            `msgpack:"v" json:"v"`
	S []ComponentRecord `msgpack:"s" json:"s"`
}

// ComponentRecord is the serialized Component
type ComponentRecord struct {
	N string `msgpack:"n" json:"n"`
	V string `msgpack:"v" json:"v"`
}

// NewRecord maps the message to its wire record
func NewRecord(m Message) Record {
	record := Record{
		V: SchemaVersion,
		S: SourceRecord{N: m.source.NodeName, A: m.source.AppName},
		W: m.timestamp.UnixMilli(),
		T: string(m.typ),
		O: m.operation,
		G: m.target,
	}
	switch m.typ {
	case Announcement:
		stack := make([]ComponentRecord, len(m.stack))
		for i, c := range m.stack {
			stack[i] = ComponentRecord{N: c.Name, V: c.Version}
		}
		record.D = AnnouncementRecord{V: m.version, S: stack}
	case Counter:
		record.D = m.count
	case Timer:
		record.D = m.duration.Milliseconds()
	}
	return record
}

// decodePayload decodes the raw record payload into v
type decodePayload func(v interface{}) error

func toMessage(v int, s SourceRecord, w int64, t, o, g string, d decodePayload) (Message, error) {
	if v != SchemaVersion {
		return Message{}, fmt.Errorf("%w : %d", ErrUnsupportedSchemaVersion, v)
	}
	source := Source{NodeName: s.N, AppName: s.A}
	timestamp := time.UnixMilli(w)
	var opts []Option
	if g != "" {
		opts = append(opts, WithTarget(g))
	}
	switch Type(t) {
	case Announcement:
		var payload AnnouncementRecord
		if err := d(&payload); err != nil {
			return Message{}, err
		}
		stack := make([]Component, len(payload.S))
		for i, c := range payload.S {
			stack[i] = Component{Name: c.N, Version: c.V}
		}
		return NewAnnouncement(source, timestamp, payload.V, stack, opts...), nil
	case Counter:
		var count int64
		if err := d(&count); err != nil {
			return Message{}, err
		}
		return NewCounter(source, timestamp, o, count, opts...), nil
	case Timer:
		var millis int64
		if err := d(&millis); err != nil {
			return Message{}, err
		}
		return NewTimer(source, timestamp, o, time.Duration(millis)*time.Millisecond, opts...), nil
	default:
		return Message{}, fmt.Errorf("%w : %q", ErrUnknownType, t)
	}
}
