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

import "errors"

var (
	// ErrUnknownStyle is returned when the configured style is not one of amqp, nats or noop
	ErrUnknownStyle = errors.New("style must be one of amqp, nats or noop")
	// ErrNodeNameRequired is returned when node_name is blank
	ErrNodeNameRequired = errors.New("node_name is required")
	// ErrAppNameRequired is returned when app_name is blank
	ErrAppNameRequired = errors.New("app_name is required")
	// ErrEndpointsRequired is returned when the configured style has no endpoints
	ErrEndpointsRequired = errors.New("at least one endpoint is required")
	// ErrInvalidEndpoint is returned for endpoints with a blank host or exchange
	ErrInvalidEndpoint = errors.New("endpoint host and exchange are required")
	// ErrInvalidHost is returned for endpoint hosts the broker client cannot parse
	ErrInvalidHost = errors.New("endpoint host is not a valid broker URL")
	// ErrInvalidMaxQueueSize is returned for a negative maxQueueSize
	ErrInvalidMaxQueueSize = errors.New("maxQueueSize must not be negative")
	// ErrConnectorRequired is returned when a non noop Buffer is created without a broker.Connector
	ErrConnectorRequired = errors.New("broker.Connector is required")
	// ErrUnsupportedConfigFile is returned by LoadConfig for file extensions other than .yaml, .yml or .json
	ErrUnsupportedConfigFile = errors.New("config file must be .yaml, .yml or .json")
)
