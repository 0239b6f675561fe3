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

// Package nats implements the broker capability over NATS.
//
// NATS has no exchanges: an exchange binding maps to a subject prefix and messages are published on
// {exchange}.{routingKey}. Message headers carry the publish headers plus Content-Type and Delivery-Mode.
// Reconnection is delegated to the NATS client, which retries forever. The connection loop only redials
// once the client has given up, and dial attempts are paced by a rate limiter.
package nats

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/logging"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v2"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// header names added to every message
const (
	HeaderContentType  = "Content-Type"
	HeaderDeliveryMode = "Delivery-Mode"
)

// Defaults applied by NewConnector
const (
	DefaultReconnectWait     = time.Second
	DefaultReconnectInterval = time.Second
)

// log events
const (
	EVENT_DIAL_FAILED       = logging.Event("nats_dial_failed")
	EVENT_CONN_READY        = logging.Event("nats_conn_ready")
	EVENT_CONN_DISCONNECTED = logging.Event("nats_conn_disconnected")
	EVENT_CONN_CLOSED       = logging.Event("nats_conn_closed")
	EVENT_CONN_ERR          = logging.Event("nats_conn_err")
)

// Subject returns the subject messages are published on
func Subject(exchange, routingKey string) string {
	return exchange + "." + routingKey
}

// ValidateHost checks a configured host the way the NATS client parses it: a comma separated list of server URLs,
// where the nats:// scheme is implied.
func ValidateHost(host string) error {
	for _, server := range strings.Split(host, ",") {
		server = strings.TrimSpace(server)
		if server == "" {
			return fmt.Errorf("empty NATS server URL : %q", host)
		}
		if !strings.Contains(server, "://") {
			server = "nats://" + server
		}
		u, err := url.Parse(server)
		if err != nil {
			return err
		}
		if u.Host == "" {
			return fmt.Errorf("NATS server URL has no host : %q", server)
		}
	}
	return nil
}

// Option configures a Connector
type Option func(*Connector)

// WithOptions appends NATS client options. They are applied after the defaults, which are:
// MaxReconnects(-1), ReconnectWait(DefaultReconnectWait), RetryOnFailedConnect(true)
func WithOptions(options ...nats.Option) Option {
	return func(c *Connector) {
		c.options = append(c.options, options...)
	}
}

// WithReconnectInterval sets the minimum interval between dial attempts made by the connection loop
func WithReconnectInterval(interval time.Duration) Option {
	return func(c *Connector) {
		c.reconnectInterval = interval
	}
}

// Connector implements broker.Connector
type Connector struct {
	options           []nats.Option
	reconnectInterval time.Duration
}

// NewConnector creates a NATS connector
func NewConnector(opts ...Option) *Connector {
	connector := &Connector{reconnectInterval: DefaultReconnectInterval}
	for _, opt := range opts {
		opt(connector)
	}
	return connector
}

// Connect starts the connection loop and returns immediately
func (a *Connector) Connect(endpoint broker.Endpoint, handlers broker.Handlers) broker.Conn {
	c := &conn{
		endpoint:  endpoint,
		handlers:  handlers,
		options:   a.options,
		limiter:   rate.NewLimiter(rate.Every(a.reconnectInterval), 1),
		reconnect: make(chan struct{}, 1),
	}
	c.tomb.Go(c.run)
	return c
}

type conn struct {
	tomb tomb.Tomb

	endpoint  broker.Endpoint
	handlers  broker.Handlers
	options   []nats.Option
	limiter   *rate.Limiter
	reconnect chan struct{}

	mutex sync.Mutex
	nc    *nats.Conn
	ready bool
}

func (a *conn) run() error {
	ctx := a.tomb.Context(nil)
	for {
		if a.redialRequired() {
			if err := a.limiter.Wait(ctx); err != nil {
				a.close()
				return nil
			}
			a.dial()
		}
		select {
		case <-a.reconnect:
		case <-a.tomb.Dying():
			a.close()
			return nil
		}
	}
}

// redialRequired returns true until a client exists that has not given up
func (a *conn) redialRequired() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.nc == nil || a.nc.IsClosed()
}

func (a *conn) dial() {
	options := []nats.Option{
		nats.Name(a.endpoint.String()),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(DefaultReconnectWait),
		nats.RetryOnFailedConnect(true),
	}
	options = append(options, a.options...)
	options = append(options,
		nats.ConnectHandler(func(*nats.Conn) { a.connected() }),
		nats.ReconnectHandler(func(*nats.Conn) { a.connected() }),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) { a.disconnected(err) }),
		nats.ClosedHandler(func(*nats.Conn) { a.closed() }),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			EVENT_CONN_ERR.Log(logger.Warn()).Str("host", a.endpoint.Host).Err(err).Msg("")
			a.handlers.FireError(err)
		}),
	)

	nc, err := nats.Connect(a.endpoint.Host, options...)
	if err != nil {
		// with RetryOnFailedConnect only invalid URLs or options end up here
		EVENT_DIAL_FAILED.Log(logger.Error()).Str("host", a.endpoint.Host).Err(err).Msg("")
		a.handlers.FireError(err)
		a.handlers.FireClosed(err)
		return
	}
	a.mutex.Lock()
	a.nc = nc
	a.mutex.Unlock()
	if nc.IsConnected() {
		a.connected()
	}
}

// close is run by the connection loop once the conn is destroyed
func (a *conn) close() {
	a.mutex.Lock()
	nc := a.nc
	a.mutex.Unlock()
	if nc != nil && !nc.IsClosed() {
		nc.Close()
	}
}

// connected fires Ready once per transition to the connected state
func (a *conn) connected() {
	a.mutex.Lock()
	if a.ready || !a.tomb.Alive() {
		a.mutex.Unlock()
		return
	}
	a.ready = true
	a.mutex.Unlock()
	EVENT_CONN_READY.Log(logger.Info()).Str("host", a.endpoint.Host).Msg("")
	a.handlers.FireReady()
}

func (a *conn) disconnected(err error) {
	a.mutex.Lock()
	wasReady := a.ready
	a.ready = false
	a.mutex.Unlock()
	if !wasReady {
		return
	}
	EVENT_CONN_DISCONNECTED.Log(logger.Warn()).Str("host", a.endpoint.Host).Err(err).Msg("")
	a.handlers.FireClosed(err)
}

func (a *conn) closed() {
	a.mutex.Lock()
	a.ready = false
	a.mutex.Unlock()
	EVENT_CONN_CLOSED.Log(logger.Info()).Str("host", a.endpoint.Host).Msg("")
	a.handlers.FireClosed(nil)
}

func (a *conn) current() (*nats.Conn, error) {
	if !a.tomb.Alive() {
		return nil, broker.ErrDestroyed
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.nc == nil || !a.nc.IsConnected() {
		return nil, broker.ErrNotReady
	}
	return a.nc, nil
}

// Exchange binds the subject prefix. It only requires the connection to be up.
func (a *conn) Exchange(name string, opts broker.ExchangeOptions, callback func(broker.Exchange, error)) {
	nc, err := a.current()
	if err != nil {
		callback(nil, err)
		return
	}
	callback(&exchange{name: name, nc: nc}, nil)
}

// Reconnect wakes up the connection loop, which redials only if the client gave up.
// Otherwise the client is already reconnecting on its own. Requests are coalesced.
func (a *conn) Reconnect() {
	select {
	case a.reconnect <- struct{}{}:
	default:
	}
}

// Destroy stops the connection loop, which closes the client connection
func (a *conn) Destroy() {
	a.tomb.Kill(nil)
}

type exchange struct {
	name string
	nc   *nats.Conn
}

func (a *exchange) Name() string {
	return a.name
}

func (a *exchange) Publish(routingKey string, body []byte, opts broker.PublishOptions) error {
	msg := nats.NewMsg(Subject(a.name, routingKey))
	msg.Data = body
	for k, v := range opts.Headers {
		msg.Header[k] = []string{v}
	}
	if opts.ContentType != "" {
		msg.Header[HeaderContentType] = []string{opts.ContentType}
	}
	msg.Header[HeaderDeliveryMode] = []string{strconv.Itoa(int(opts.DeliveryMode))}
	return a.nc.PublishMsg(msg)
}
