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

package broker

import "fmt"

// ExchangeType is the broker routing model used by an exchange
type ExchangeType string

// HeadersExchange routes on message headers
const HeadersExchange ExchangeType = "headers"

// DeliveryMode maps to the AMQP delivery mode
type DeliveryMode uint8

// DeliveryMode enum values
const (
	Transient  DeliveryMode = 1
	Persistent DeliveryMode = 2
)

// Endpoint identifies a broker host and the exchange messages are published to
type Endpoint struct {
	Host     string `json:"host" yaml:"host"`
	Exchange string `json:"exchange" yaml:"exchange"`
}

func (a Endpoint) String() string {
	return fmt.Sprintf("%s/%s", a.Host, a.Exchange)
}

// ExchangeOptions are applied when binding an exchange
type ExchangeOptions struct {
	Type    ExchangeType
	Durable bool
}

// PublishOptions are applied per published message
type PublishOptions struct {
	Headers      map[string]string
	DeliveryMode DeliveryMode
	ContentType  string
}

// Handlers receive connection lifecycle notifications. Nil handlers are ignored.
type Handlers struct {
	Ready  func()
	Error  func(err error)
	Closed func(err error)
}

// FireReady invokes the Ready handler if set
func (a Handlers) FireReady() {
	if a.Ready != nil {
		a.Ready()
	}
}

// FireError invokes the Error handler if set
func (a Handlers) FireError(err error) {
	if a.Error != nil {
		a.Error(err)
	}
}

// FireClosed invokes the Closed handler if set
func (a Handlers) FireClosed(err error) {
	if a.Closed != nil {
		a.Closed(err)
	}
}

// Connector creates connections to broker endpoints.
// Connect must not block on network I/O: the outcome is reported via the handlers.
type Connector interface {
	Connect(endpoint Endpoint, handlers Handlers) Conn
}

// Conn is a logical connection to a broker endpoint
type Conn interface {
	// Exchange binds the named exchange. The callback receives either the bound exchange or the error.
	Exchange(name string, opts ExchangeOptions, callback func(Exchange, error))

	// Reconnect requests a new connection attempt after the connection was lost.
	Reconnect()

	// Destroy tears the connection down for good. It is idempotent.
	Destroy()
}

// Exchange is a bound exchange
type Exchange interface {
	Name() string
	Publish(routingKey string, body []byte, opts PublishOptions) error
}
