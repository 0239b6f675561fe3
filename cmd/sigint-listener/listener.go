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

package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/oysterpack/sigint.go/pkg/broker"
	amqpbroker "github.com/oysterpack/sigint.go/pkg/broker/amqp"
	natsbroker "github.com/oysterpack/sigint.go/pkg/broker/nats"
	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/logging"
	"github.com/oysterpack/sigint.go/pkg/message"
	"github.com/oysterpack/sigint.go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/tomb.v2"
)

// log events
const (
	EVENT_LISTENING    = logging.Event("listening")
	EVENT_EMISSION     = logging.Event("emission")
	EVENT_DECODE_ERROR = logging.Event("decode_err")
)

// prefetch is the max number of unacknowledged AMQP deliveries
const prefetch = 100

var (
	// ReceivedCounterOpts counts decoded emissions
	ReceivedCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: emission.MetricsNamespace,
			Subsystem: "listener",
			Name:      "received",
			Help:      "The number of emissions that were received and decoded",
		},
		Labels: []string{"host", "type"},
	}

	// DecodeErrorCounterOpts counts messages that could not be decoded
	DecodeErrorCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: emission.MetricsNamespace,
			Subsystem: "listener",
			Name:      "decode_errors",
			Help:      "The number of received messages that could not be decoded",
		},
		Labels: []string{"host"},
	}
)

// Emission is a decoded message along with the headers it was published with
type Emission struct {
	Host    string
	Message message.Message
	Headers map[string]string
}

// Handler is invoked for every decoded emission
type Handler func(Emission)

// Listener receives every emission published to the configured exchanges.
// On AMQP a queue is bound to each headers exchange without any header match, which matches every message.
// On NATS the listener subscribes to {exchange}.>
type Listener struct {
	config emission.Config
	queue  string
	handle Handler

	received     *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
}

// NewListener validates the config. Only the style and endpoints are used.
func NewListener(config emission.Config, queue string, handle Handler) (*Listener, error) {
	if config.NodeName == "" {
		config.NodeName = "sigint-listener"
	}
	if config.AppName == "" {
		config.AppName = "sigint-listener"
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Style == emission.NOOP {
		return nil, fmt.Errorf("there is nothing to listen to with style %q", config.Style)
	}
	return &Listener{
		config:       config,
		queue:        queue,
		handle:       handle,
		received:     metrics.GetOrMustRegisterCounterVec(ReceivedCounterOpts),
		decodeErrors: metrics.GetOrMustRegisterCounterVec(DecodeErrorCounterOpts),
	}, nil
}

// Run listens on every endpoint until ctx is done or a connection fails
func (a *Listener) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	for _, endpoint := range a.config.Endpoints() {
		endpoint := endpoint
		switch a.config.Style {
		case emission.AMQP:
			t.Go(func() error { return a.consumeAMQP(ctx, endpoint) })
		case emission.NATS:
			t.Go(func() error { return a.subscribeNATS(ctx, endpoint) })
		}
	}
	return t.Wait()
}

func (a *Listener) consumeAMQP(ctx context.Context, endpoint broker.Endpoint) error {
	conn, err := amqp.Dial(amqpbroker.URL(endpoint.Host))
	if err != nil {
		return fmt.Errorf("%v : %w", endpoint, err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(endpoint.Exchange, string(broker.HeadersExchange), true, false, false, false, nil); err != nil {
		return err
	}
	queue, err := ch.QueueDeclare(a.queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue.Name, "", endpoint.Exchange, false, nil); err != nil {
		return err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return err
	}
	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	EVENT_LISTENING.Log(logger.Info()).Str("host", endpoint.Host).Str("exchange", endpoint.Exchange).Str("queue", queue.Name).Msg("")

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%v : %w", endpoint, amqp.ErrClosed)
			}
			headers := make(map[string]string, len(delivery.Headers))
			for k, v := range delivery.Headers {
				headers[k] = fmt.Sprint(v)
			}
			a.deliver(endpoint.Host, delivery.ContentType, delivery.Body, headers)
			if err := delivery.Ack(false); err != nil {
				return err
			}
		}
	}
}

func (a *Listener) subscribeNATS(ctx context.Context, endpoint broker.Endpoint) error {
	nc, err := nats.Connect(endpoint.Host, nats.Name("sigint-listener"), nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("%v : %w", endpoint, err)
	}
	defer nc.Close()
	msgs := make(chan *nats.Msg, prefetch)
	subject := natsbroker.Subject(endpoint.Exchange, ">")
	if _, err := nc.ChanSubscribe(subject, msgs); err != nil {
		return err
	}
	if err := nc.Flush(); err != nil {
		return err
	}
	EVENT_LISTENING.Log(logger.Info()).Str("host", endpoint.Host).Str("subject", subject).Msg("")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			headers := make(map[string]string, len(msg.Header))
			for k := range msg.Header {
				headers[k] = msg.Header.Get(k)
			}
			a.deliver(endpoint.Host, msg.Header.Get(natsbroker.HeaderContentType), msg.Data, headers)
		}
	}
}

// deliver decodes the body using the codec that matches its content type
func (a *Listener) deliver(host, contentType string, body []byte, headers map[string]string) {
	codec, err := message.CodecByContentType(contentType)
	var m message.Message
	if err == nil {
		m, err = codec.Unmarshal(body)
	}
	if err != nil {
		a.decodeErrors.WithLabelValues(host).Inc()
		EVENT_DECODE_ERROR.Log(logger.Warn()).Str("host", host).Str("content_type", contentType).Err(err).Msg("")
		return
	}
	a.received.WithLabelValues(host, string(m.Type())).Inc()
	a.handle(Emission{Host: host, Message: m, Headers: headers})
}
