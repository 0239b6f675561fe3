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

import "github.com/oysterpack/sigint.go/pkg/logging"

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// log events
const (
	EVENT_CONN_CONNECTING   = logging.Event("conn_connecting")
	EVENT_CONN_READY        = logging.Event("conn_ready")
	EVENT_CONN_ERR          = logging.Event("conn_err")
	EVENT_CONN_CLOSED       = logging.Event("conn_closed")
	EVENT_CONN_TERMINATED   = logging.Event("conn_terminated")
	EVENT_EXCHANGE_BIND_ERR = logging.Event("exchange_bind_err")
	EVENT_MSG_DROPPED       = logging.Event("msg_dropped")
	EVENT_MSG_PUBLISH_ERR   = logging.Event("msg_publish_err")
	EVENT_BUFFER_CREATED    = logging.Event("buffer_created")
	EVENT_BUFFER_CLOSED     = logging.Event("buffer_closed")
)

// log fields
const (
	SUPERVISOR_ID = "supervisor"
	BUFFER_ID     = "buffer"
	HOST          = "host"
	EXCHANGE      = "exchange"
	MSG_TYPE      = "msg_type"
	QUEUED        = "queued"
	DISCARDED     = "discarded"
)
