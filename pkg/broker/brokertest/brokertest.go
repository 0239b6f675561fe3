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

// Package brokertest provides an in-memory broker for testing.
//
// Connections never become ready on their own: tests drive the lifecycle explicitly via
// SimulateReady, SimulateError and SimulateClose. Exchange binding completes synchronously.
package brokertest

import (
	"errors"
	"sync"

	"github.com/oysterpack/sigint.go/pkg/broker"
)

// ErrNotConnected is returned by Exchange.Publish when the underlying connection is down
var ErrNotConnected = errors.New("brokertest: connection is down")

// Publication records a message that was published
type Publication struct {
	Host       string
	Exchange   string
	RoutingKey string
	Body       []byte
	Options    broker.PublishOptions
}

// Connector creates and tracks Conns
type Connector struct {
	mutex sync.Mutex
	conns []*Conn
}

// NewConnector creates a new in-memory Connector
func NewConnector() *Connector {
	return &Connector{}
}

// Connect implements broker.Connector
func (a *Connector) Connect(endpoint broker.Endpoint, handlers broker.Handlers) broker.Conn {
	conn := &Conn{
		endpoint:  endpoint,
		handlers:  handlers,
		exchanges: map[string]*Exchange{},
	}
	a.mutex.Lock()
	a.conns = append(a.conns, conn)
	a.mutex.Unlock()
	return conn
}

// Conns returns all connections created, in creation order
func (a *Connector) Conns() []*Conn {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	conns := make([]*Conn, len(a.conns))
	copy(conns, a.conns)
	return conns
}

// Conn returns the most recent connection created for the host, or nil
func (a *Connector) Conn(host string) *Conn {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for i := len(a.conns) - 1; i >= 0; i-- {
		if a.conns[i].endpoint.Host == host {
			return a.conns[i]
		}
	}
	return nil
}

// Publications returns the publications across all connections
func (a *Connector) Publications() []Publication {
	var publications []Publication
	for _, conn := range a.Conns() {
		publications = append(publications, conn.Publications()...)
	}
	return publications
}

// Conn is an in-memory broker.Conn
type Conn struct {
	mutex sync.Mutex

	endpoint broker.Endpoint
	handlers broker.Handlers

	connected  bool
	destroyed  bool
	reconnects int

	exchanges    map[string]*Exchange
	publications []Publication
	publishErr   error
	exchangeErr  error
	onPublish    func(Publication)
}

// Endpoint returns the endpoint the connection was created for
func (a *Conn) Endpoint() broker.Endpoint {
	return a.endpoint
}

// SimulateReady marks the connection as established and fires the Ready notification
func (a *Conn) SimulateReady() {
	a.mutex.Lock()
	if a.destroyed {
		a.mutex.Unlock()
		return
	}
	a.connected = true
	a.mutex.Unlock()
	a.handlers.FireReady()
}

// SimulateError fires the Error notification
func (a *Conn) SimulateError(err error) {
	a.handlers.FireError(err)
}

// SimulateClose marks the connection as down and fires the Closed notification
func (a *Conn) SimulateClose(err error) {
	a.mutex.Lock()
	a.connected = false
	a.mutex.Unlock()
	a.handlers.FireClosed(err)
}

// SetPublishError makes every subsequent publish fail with err. nil restores normal behavior.
func (a *Conn) SetPublishError(err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.publishErr = err
}

// SetExchangeError makes every subsequent exchange binding fail with err. nil restores normal behavior.
func (a *Conn) SetExchangeError(err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.exchangeErr = err
}

// OnPublish registers a hook invoked after each recorded publication.
// The hook runs on the publishing goroutine without any brokertest lock held.
func (a *Conn) OnPublish(hook func(Publication)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onPublish = hook
}

// Exchange implements broker.Conn
func (a *Conn) Exchange(name string, opts broker.ExchangeOptions, callback func(broker.Exchange, error)) {
	a.mutex.Lock()
	if a.destroyed {
		a.mutex.Unlock()
		callback(nil, broker.ErrDestroyed)
		return
	}
	if a.exchangeErr != nil {
		err := a.exchangeErr
		a.mutex.Unlock()
		callback(nil, err)
		return
	}
	exchange := &Exchange{conn: a, name: name, opts: opts}
	a.exchanges[name] = exchange
	a.mutex.Unlock()
	callback(exchange, nil)
}

// BoundExchange returns the exchange bound under name, or nil
func (a *Conn) BoundExchange(name string) *Exchange {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.exchanges[name]
}

// Reconnect implements broker.Conn. It only counts the request, use SimulateReady to complete it.
func (a *Conn) Reconnect() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.reconnects++
}

// Reconnects returns the number of times Reconnect was called
func (a *Conn) Reconnects() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.reconnects
}

// Destroy implements broker.Conn. The first call fires the Closed notification.
func (a *Conn) Destroy() {
	a.mutex.Lock()
	if a.destroyed {
		a.mutex.Unlock()
		return
	}
	a.destroyed = true
	a.connected = false
	a.mutex.Unlock()
	a.handlers.FireClosed(nil)
}

// Destroyed returns true once Destroy was called
func (a *Conn) Destroyed() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.destroyed
}

// Connected returns true while the simulated connection is up
func (a *Conn) Connected() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.connected
}

// Publications returns a copy of the recorded publications
func (a *Conn) Publications() []Publication {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	publications := make([]Publication, len(a.publications))
	copy(publications, a.publications)
	return publications
}

// Exchange is an in-memory broker.Exchange
type Exchange struct {
	conn *Conn
	name string
	opts broker.ExchangeOptions
}

// Name implements broker.Exchange
func (a *Exchange) Name() string {
	return a.name
}

// Options returns the options the exchange was bound with
func (a *Exchange) Options() broker.ExchangeOptions {
	return a.opts
}

// Publish implements broker.Exchange
func (a *Exchange) Publish(routingKey string, body []byte, opts broker.PublishOptions) error {
	conn := a.conn
	conn.mutex.Lock()
	if !conn.connected {
		conn.mutex.Unlock()
		return ErrNotConnected
	}
	if conn.publishErr != nil {
		err := conn.publishErr
		conn.mutex.Unlock()
		return err
	}
	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers
	publication := Publication{
		Host:       conn.endpoint.Host,
		Exchange:   a.name,
		RoutingKey: routingKey,
		Body:       append([]byte(nil), body...),
		Options:    opts,
	}
	conn.publications = append(conn.publications, publication)
	hook := conn.onPublish
	conn.mutex.Unlock()
	if hook != nil {
		hook(publication)
	}
	return nil
}
