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

import (
	"sync"
	"time"

	"github.com/nats-io/nuid"
	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/commons"
	"github.com/oysterpack/sigint.go/pkg/logging"
	"github.com/oysterpack/sigint.go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// State is the Supervisor connection state
type State int

// State enum values
const (
	Disconnected State = iota
	Connecting
	Ready
	Terminated
)

func (a State) String() string {
	switch a {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Ready:
		return "Ready"
	case Terminated:
		return "Terminated"
	default:
		return "UNKNOWN"
	}
}

// Supervisor maintains connectivity to a single broker endpoint.
//
// Once connected, the exchange is bound every time the connection reports ready, and readiness callbacks fire.
// When the connection closes unexpectedly the Supervisor asks it to reconnect, indefinitely, until Close is called.
// Connection errors are logged and counted but never surfaced.
type Supervisor struct {
	id        string
	endpoint  broker.Endpoint
	connector broker.Connector
	created   time.Time

	mutex            sync.RWMutex
	state            State
	conn             broker.Conn
	exchange         broker.Exchange
	closeRequested   bool
	readyPending     bool
	reconnectPending bool
	readyCallbacks   []func()

	readies            int
	lastReadyTime      time.Time
	disconnects        int
	lastDisconnectTime time.Time
	errors             int
	lastErrorTime      time.Time

	readyCounter      prometheus.Counter
	disconnectCounter prometheus.Counter
	errorCounter      prometheus.Counter
}

// NewSupervisor creates a Disconnected Supervisor for the endpoint. Call Connect to start connecting.
func NewSupervisor(endpoint broker.Endpoint, connector broker.Connector) *Supervisor {
	return &Supervisor{
		id:        nuid.Next(),
		endpoint:  endpoint,
		connector: connector,
		created:   time.Now(),

		readyCounter:      metrics.GetOrMustRegisterCounterVec(ReadyCounterOpts).WithLabelValues(endpoint.Host, endpoint.Exchange),
		disconnectCounter: metrics.GetOrMustRegisterCounterVec(DisconnectCounterOpts).WithLabelValues(endpoint.Host, endpoint.Exchange),
		errorCounter:      metrics.GetOrMustRegisterCounterVec(ConnErrorCounterOpts).WithLabelValues(endpoint.Host, endpoint.Exchange),
	}
}

// ID is the unique id assigned to the supervisor for tracking purposes
func (a *Supervisor) ID() string {
	return a.id
}

// Endpoint returns the broker endpoint
func (a *Supervisor) Endpoint() broker.Endpoint {
	return a.endpoint
}

// State returns the current state
func (a *Supervisor) State() State {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.state
}

// IsConnected returns true if the Supervisor is Ready. It never blocks on I/O.
func (a *Supervisor) IsConnected() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.state == Ready
}

// OnReady registers a callback that is invoked every time the Supervisor becomes Ready.
// Callbacks are invoked without any Supervisor lock held. A panicking callback is recovered and does not prevent
// the remaining callbacks from running.
func (a *Supervisor) OnReady(callback func()) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.readyCallbacks = append(a.readyCallbacks, callback)
}

// Connect starts connecting. Only the first call has any effect.
func (a *Supervisor) Connect() {
	a.mutex.Lock()
	if a.state != Disconnected || a.closeRequested {
		a.mutex.Unlock()
		return
	}
	a.state = Connecting
	a.mutex.Unlock()
	a.logEvent(EVENT_CONN_CONNECTING, logger.Info()).Msg("")

	conn := a.connector.Connect(a.endpoint, broker.Handlers{
		Ready:  a.connReady,
		Error:  a.connError,
		Closed: a.connClosed,
	})

	// notifications that arrived before Connect returned are replayed now that the conn is known
	a.mutex.Lock()
	a.conn = conn
	closeRequested := a.closeRequested
	readyPending := a.readyPending
	reconnectPending := a.reconnectPending
	a.readyPending, a.reconnectPending = false, false
	a.mutex.Unlock()

	switch {
	case closeRequested:
		conn.Destroy()
	case reconnectPending:
		conn.Reconnect()
	case readyPending:
		a.bind(conn)
	}
}

func (a *Supervisor) connReady() {
	a.mutex.Lock()
	if a.closeRequested || a.state == Terminated {
		a.mutex.Unlock()
		return
	}
	conn := a.conn
	if conn == nil {
		a.readyPending, a.reconnectPending = true, false
		a.mutex.Unlock()
		return
	}
	a.mutex.Unlock()
	a.bind(conn)
}

// bind binds the exchange. On success the Supervisor becomes Ready.
// If binding fails, the Supervisor stays Connecting until the connection reports ready again.
func (a *Supervisor) bind(conn broker.Conn) {
	conn.Exchange(a.endpoint.Exchange, broker.ExchangeOptions{Type: broker.HeadersExchange, Durable: true}, func(exchange broker.Exchange, err error) {
		if err != nil {
			a.recordError()
			a.logEvent(EVENT_EXCHANGE_BIND_ERR, logger.Warn()).Err(err).Msg("")
			return
		}
		a.mutex.Lock()
		if a.closeRequested || a.state == Terminated {
			a.mutex.Unlock()
			return
		}
		a.exchange = exchange
		a.state = Ready
		a.readies++
		a.lastReadyTime = time.Now()
		callbacks := make([]func(), len(a.readyCallbacks))
		copy(callbacks, a.readyCallbacks)
		a.mutex.Unlock()

		a.readyCounter.Inc()
		a.logEvent(EVENT_CONN_READY, logger.Info()).Msg("")
		for _, callback := range callbacks {
			commons.InvokeQuietly(callback)
		}
	})
}

func (a *Supervisor) connError(err error) {
	a.recordError()
	a.logEvent(EVENT_CONN_ERR, logger.Warn()).Err(err).Msg("")
}

func (a *Supervisor) recordError() {
	a.mutex.Lock()
	a.errors++
	a.lastErrorTime = time.Now()
	a.mutex.Unlock()
	a.errorCounter.Inc()
}

// connClosed reconnects unless the close was requested, in which case the conn is destroyed
func (a *Supervisor) connClosed(err error) {
	a.mutex.Lock()
	a.exchange = nil
	conn := a.conn
	if a.closeRequested {
		a.state = Terminated
		a.mutex.Unlock()
		if conn != nil {
			conn.Destroy()
		}
		return
	}
	a.state = Connecting
	a.disconnects++
	a.lastDisconnectTime = time.Now()
	if conn == nil {
		a.reconnectPending, a.readyPending = true, false
	}
	a.mutex.Unlock()

	a.disconnectCounter.Inc()
	a.logEvent(EVENT_CONN_CLOSED, logger.Warn()).Err(err).Msg("")
	if conn != nil {
		conn.Reconnect()
	}
}

// Publish publishes the body on the bound exchange as a transient message.
// broker.ErrNotReady is returned if the Supervisor is not Ready.
func (a *Supervisor) Publish(routingKey string, body []byte, headers map[string]string, contentType string) error {
	a.mutex.RLock()
	exchange := a.exchange
	ready := a.state == Ready
	a.mutex.RUnlock()
	if !ready || exchange == nil {
		return broker.ErrNotReady
	}
	return exchange.Publish(routingKey, body, broker.PublishOptions{
		Headers:      headers,
		DeliveryMode: broker.Transient,
		ContentType:  contentType,
	})
}

// Close stops reconnecting and tears the connection down. It is idempotent.
func (a *Supervisor) Close() {
	a.mutex.Lock()
	if a.closeRequested {
		a.mutex.Unlock()
		return
	}
	a.closeRequested = true
	a.state = Terminated
	a.exchange = nil
	conn := a.conn
	a.mutex.Unlock()

	a.logEvent(EVENT_CONN_TERMINATED, logger.Info()).Msg("")
	if conn != nil {
		conn.Destroy()
	}
}

func (a *Supervisor) logEvent(event logging.Event, e *zerolog.Event) *zerolog.Event {
	return event.Log(e).Str(SUPERVISOR_ID, a.id).Str(HOST, a.endpoint.Host).Str(EXCHANGE, a.endpoint.Exchange)
}
