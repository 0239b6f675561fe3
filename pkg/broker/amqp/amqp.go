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

// Package amqp implements the broker capability over AMQP 0-9-1 (RabbitMQ).
//
// Each Conn runs a single connection loop goroutine. Dial attempts are paced by a rate limiter, and after a
// connection is lost the loop waits for Reconnect before dialing again. A channel exception on a bound exchange
// closes the connection, so that the exchange is bound again once the connection is reestablished.
package amqp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v2"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// DefaultPort is the AMQP port applied to hosts that do not specify one
const DefaultPort = "5672"

// Defaults applied by NewConnector
const (
	DefaultReconnectInterval = time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultPublishTimeout    = 5 * time.Second
)

// log events
const (
	EVENT_DIAL_FAILED    = logging.Event("amqp_dial_failed")
	EVENT_CONNECTED      = logging.Event("amqp_connected")
	EVENT_CONN_LOST      = logging.Event("amqp_conn_lost")
	EVENT_EXCHANGE_BOUND = logging.Event("amqp_exchange_bound")
	EVENT_CONN_DESTROYED = logging.Event("amqp_conn_destroyed")
	EVENT_CHANNEL_CLOSED = logging.Event("amqp_channel_closed")
)

// URL maps a configured host to an AMQP URL.
// Hosts that already carry a scheme are used as is, otherwise amqp://host[:5672]/ is returned.
func URL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, DefaultPort)
	}
	return "amqp://" + host + "/"
}

// ValidateHost checks that the AMQP URL derived from the host can be parsed
func ValidateHost(host string) error {
	if _, err := amqp.ParseURI(URL(host)); err != nil {
		return fmt.Errorf("invalid AMQP host %q : %w", host, err)
	}
	return nil
}

// Option configures a Connector
type Option func(*Connector)

// WithReconnectInterval sets the minimum interval between dial attempts
func WithReconnectInterval(interval time.Duration) Option {
	return func(c *Connector) {
		c.reconnectInterval = interval
	}
}

// WithDialTimeout sets the TCP dial timeout
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Connector) {
		c.dialTimeout = timeout
	}
}

// WithPublishTimeout bounds each publish call
func WithPublishTimeout(timeout time.Duration) Option {
	return func(c *Connector) {
		c.publishTimeout = timeout
	}
}

// Connector implements broker.Connector
type Connector struct {
	reconnectInterval time.Duration
	dialTimeout       time.Duration
	publishTimeout    time.Duration
}

// NewConnector creates a new AMQP Connector
func NewConnector(opts ...Option) *Connector {
	connector := &Connector{
		reconnectInterval: DefaultReconnectInterval,
		dialTimeout:       DefaultDialTimeout,
		publishTimeout:    DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(connector)
	}
	return connector
}

// Connect starts the connection loop and returns immediately
func (a *Connector) Connect(endpoint broker.Endpoint, handlers broker.Handlers) broker.Conn {
	c := &conn{
		endpoint:       endpoint,
		url:            URL(endpoint.Host),
		handlers:       handlers,
		dialTimeout:    a.dialTimeout,
		publishTimeout: a.publishTimeout,
		limiter:        rate.NewLimiter(rate.Every(a.reconnectInterval), 1),
		reconnect:      make(chan struct{}, 1),
	}
	c.tomb.Go(c.run)
	return c
}

type conn struct {
	tomb tomb.Tomb

	endpoint       broker.Endpoint
	url            string
	handlers       broker.Handlers
	dialTimeout    time.Duration
	publishTimeout time.Duration
	limiter        *rate.Limiter
	reconnect      chan struct{}

	mutex    sync.Mutex
	amqpConn *amqp.Connection
}

func (a *conn) run() error {
	ctx := a.tomb.Context(nil)
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil
		}
		amqpConn, err := amqp.DialConfig(a.url, amqp.Config{
			Dial:   amqp.DefaultDial(a.dialTimeout),
			Locale: "en_US",
		})
		if err != nil {
			EVENT_DIAL_FAILED.Log(logger.Warn()).Str("host", a.endpoint.Host).Err(err).Msg("")
			a.handlers.FireError(err)
			a.handlers.FireClosed(err)
		} else if done := a.serve(amqpConn); done {
			return nil
		}

		select {
		case <-a.reconnect:
		case <-a.tomb.Dying():
			return nil
		}
	}
}

// serve runs while the connection is up. It returns true if the conn was destroyed.
func (a *conn) serve(amqpConn *amqp.Connection) bool {
	closed := amqpConn.NotifyClose(make(chan *amqp.Error, 1))
	a.setConn(amqpConn)
	EVENT_CONNECTED.Log(logger.Info()).Str("host", a.endpoint.Host).Msg("")
	a.handlers.FireReady()

	select {
	case amqpErr := <-closed:
		a.setConn(nil)
		var err error
		if amqpErr != nil {
			err = amqpErr
		}
		EVENT_CONN_LOST.Log(logger.Warn()).Str("host", a.endpoint.Host).Err(err).Msg("")
		a.handlers.FireClosed(err)
		return false
	case <-a.tomb.Dying():
		a.setConn(nil)
		if err := amqpConn.Close(); err != nil {
			logger.Debug().Err(err).Str("host", a.endpoint.Host).Msg("amqp close")
		}
		EVENT_CONN_DESTROYED.Log(logger.Info()).Str("host", a.endpoint.Host).Msg("")
		a.handlers.FireClosed(nil)
		return true
	}
}

func (a *conn) setConn(amqpConn *amqp.Connection) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.amqpConn = amqpConn
}

func (a *conn) current() *amqp.Connection {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.amqpConn
}

// Exchange opens a channel and declares the exchange on it
func (a *conn) Exchange(name string, opts broker.ExchangeOptions, callback func(broker.Exchange, error)) {
	if !a.tomb.Alive() {
		callback(nil, broker.ErrDestroyed)
		return
	}
	amqpConn := a.current()
	if amqpConn == nil {
		callback(nil, broker.ErrNotReady)
		return
	}
	ch, err := amqpConn.Channel()
	if err != nil {
		callback(nil, err)
		return
	}
	if err := ch.ExchangeDeclare(name, string(opts.Type), opts.Durable, false, false, false, nil); err != nil {
		callback(nil, err)
		return
	}
	go watchChannel(ch.NotifyClose(make(chan *amqp.Error, 1)), func(err *amqp.Error) {
		EVENT_CHANNEL_CLOSED.Log(logger.Warn()).Str("host", a.endpoint.Host).Str("exchange", name).Err(err).Msg("")
		if err := amqpConn.Close(); err != nil {
			logger.Debug().Err(err).Str("host", a.endpoint.Host).Msg("amqp close")
		}
	})
	EVENT_EXCHANGE_BOUND.Log(logger.Debug()).Str("host", a.endpoint.Host).Str("exchange", name).Msg("")
	callback(&exchange{name: name, ch: ch, publishTimeout: a.publishTimeout}, nil)
}

// watchChannel invokes onException if the channel is closed by the broker.
// The notification channel is closed without an error when the connection shuts down.
func watchChannel(closed <-chan *amqp.Error, onException func(*amqp.Error)) {
	if err, ok := <-closed; ok && err != nil {
		onException(err)
	}
}

// Reconnect wakes up the connection loop. Requests are coalesced.
func (a *conn) Reconnect() {
	select {
	case a.reconnect <- struct{}{}:
	default:
	}
}

// Destroy stops the connection loop without waiting for it
func (a *conn) Destroy() {
	a.tomb.Kill(nil)
}

type exchange struct {
	name           string
	ch             *amqp.Channel
	publishTimeout time.Duration
}

func (a *exchange) Name() string {
	return a.name
}

func (a *exchange) Publish(routingKey string, body []byte, opts broker.PublishOptions) error {
	headers := amqp.Table{}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.publishTimeout)
	defer cancel()
	return a.ch.PublishWithContext(ctx, a.name, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  opts.ContentType,
		DeliveryMode: uint8(opts.DeliveryMode),
		Timestamp:    time.Now(),
		Body:         body,
	})
}
