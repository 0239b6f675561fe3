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

package sigint

import (
	"github.com/benbjohnson/clock"
	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/broker/amqp"
	"github.com/oysterpack/sigint.go/pkg/broker/nats"
	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/logging"
	"github.com/oysterpack/sigint.go/pkg/message"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// Option configures a Client
type Option func(*Client)

// WithClock sets the clock used to timestamp messages and to time stopwatches
func WithClock(c clock.Clock) Option {
	return func(client *Client) {
		client.clock = c
	}
}

// WithBufferOptions are passed on to the emission Buffer
func WithBufferOptions(opts ...emission.BufferOption) Option {
	return func(client *Client) {
		client.bufferOptions = append(client.bufferOptions, opts...)
	}
}

// Client emits messages into an emission Buffer
type Client struct {
	source        message.Source
	clock         clock.Clock
	bufferOptions []emission.BufferOption
	buffer        *emission.Buffer
}

// Connector returns the broker capability for the style: nil for noop
func Connector(style emission.Style) broker.Connector {
	switch style {
	case emission.AMQP:
		return amqp.NewConnector()
	case emission.NATS:
		return nats.NewConnector()
	default:
		return nil
	}
}

// New creates a Client using the broker capability selected by the config style
func New(config emission.Config, opts ...Option) (*Client, error) {
	return NewWithConnector(config, Connector(config.Style), opts...)
}

// NewWithConnector creates a Client using the provided broker capability
func NewWithConnector(config emission.Config, connector broker.Connector, opts ...Option) (*Client, error) {
	client := &Client{
		source: message.Source{NodeName: config.NodeName, AppName: config.AppName},
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(client)
	}
	buffer, err := emission.NewBuffer(config, connector, client.bufferOptions...)
	if err != nil {
		return nil, err
	}
	client.buffer = buffer
	logger.Info().Str("node", config.NodeName).Str("app", config.AppName).Str("style", string(config.Style)).Msg("client created")
	return client, nil
}

// Source returns the identity stamped on every message
func (a *Client) Source() message.Source {
	return a.source
}

// Buffer exposes the emission buffer for monitoring
func (a *Client) Buffer() *emission.Buffer {
	return a.buffer
}

// Emit enqueues a prebuilt message
func (a *Client) Emit(m message.Message) {
	a.buffer.Enqueue(m)
}

// Close stops accepting messages and releases the broker connections. Queued messages are discarded.
func (a *Client) Close() {
	a.buffer.Close()
}

// Announce starts building an announcement
func (a *Client) Announce() AnnouncementBuilder {
	return AnnouncementBuilder{envelope: a.envelope()}
}

// Count starts building a counter for operation with a count of 1
func (a *Client) Count(operation string) CounterBuilder {
	return CounterBuilder{envelope: a.envelope(), operation: operation, count: 1}
}

// Time starts building a timer for operation
func (a *Client) Time(operation string) TimerBuilder {
	return TimerBuilder{envelope: a.envelope(), operation: operation}
}

func (a *Client) envelope() envelope {
	return envelope{client: a, timestamp: a.clock.Now()}
}
