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
Package broker defines the capability a message broker client must provide to the emission core.

A Connector creates a Conn for an Endpoint. The Conn reports lifecycle notifications through Handlers:

	Ready  - the connection is established, exchanges may be bound
	Error  - a connection level error occurred, the connection may still recover
	Closed - the connection was lost or destroyed

Notifications may be delivered on any goroutine, including synchronously from within a Conn or Exchange call.
Handlers must therefore never block and must never assume they hold a lock.
*/
package broker
