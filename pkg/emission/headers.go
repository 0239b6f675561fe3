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

import "github.com/oysterpack/sigint.go/pkg/message"

// wire headers
const (
	HeaderSource    = "X-SIGINT-SRC"
	HeaderType      = "X-SIGINT-TYPE"
	HeaderOperation = "X-SIGINT-OP"
	HeaderTarget    = "X-SIGINT-TRGT"
)

// Headers builds the publish headers for the message.
// The operation and target headers are only present when set on the message.
func Headers(m message.Message) map[string]string {
	headers := map[string]string{
		HeaderSource: m.Source().AppName,
		HeaderType:   string(m.Type()),
	}
	if op := m.Operation(); op != "" {
		headers[HeaderOperation] = op
	}
	if target := m.Target(); target != "" {
		headers[HeaderTarget] = target
	}
	return headers
}

// RoutingKey is the message type tag
func RoutingKey(m message.Message) string {
	return string(m.Type())
}
