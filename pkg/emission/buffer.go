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
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/nats-io/nuid"
	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/message"
	"github.com/oysterpack/sigint.go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// BufferOption configures a Buffer
type BufferOption func(*Buffer)

// WithRand sets the random source used to spread publishes across ready connections
func WithRand(r *rand.Rand) BufferOption {
	return func(b *Buffer) {
		b.rotation = newRotation(r)
	}
}

// WithCodec overrides the codec named by the config
func WithCodec(codec message.Codec) BufferOption {
	return func(b *Buffer) {
		b.codec = codec
	}
}

// WithHealthCheckInterval schedules the buffer health checks. By default they only run on demand.
func WithHealthCheckInterval(interval time.Duration) BufferOption {
	return func(b *Buffer) {
		b.healthCheckInterval = interval
	}
}

// Stats is a snapshot of the buffer counters
type Stats struct {
	Enqueued      uint64
	Dropped       uint64
	Discarded     uint64
	Published     uint64
	PublishErrors uint64

	Queued      int
	Capacity    int
	ReadyConns  int
	Supervisors int
}

// Buffer decouples message production from delivery.
//
// Messages are queued in a bounded FIFO, which drops the oldest message when full, and are drained to ready
// Supervisors on every Enqueue and every time a Supervisor becomes ready. Publishes are spread across the ready
// Supervisors. If the chosen Supervisor turns out not to be ready, the message is retried on the next one.
// A publish that fails is not retried.
//
// Only one goroutine drains at a time. The lock is never held while publishing.
type Buffer struct {
	id          string
	config      Config
	codec       message.Codec
	noop        bool
	supervisors []*Supervisor

	mutex     sync.Mutex
	queue     *fifo
	accepting bool
	draining  bool
	pending   bool
	rotation  *rotation
	stats     Stats

	enqueuedCounter     prometheus.Counter
	droppedCounter      prometheus.Counter
	discardedCounter    prometheus.Counter
	publishedCounter    prometheus.Counter
	publishErrorCounter prometheus.Counter

	queueDepthDesc    *prometheus.Desc
	queueCapacityDesc *prometheus.Desc
	readyConnsDesc    *prometheus.Desc

	healthCheckInterval time.Duration
	healthChecks        []metrics.HealthCheck
}

// NewBuffer validates the config and creates the Buffer.
// A noop config creates no Supervisors and connector may be nil. Otherwise one Supervisor is created and connected
// per configured endpoint.
func NewBuffer(config Config, connector broker.Connector, opts ...BufferOption) (*Buffer, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Style != NOOP && connector == nil {
		return nil, ErrConnectorRequired
	}
	codec, err := message.CodecByName(config.Codec)
	if err != nil {
		return nil, err
	}

	id := nuid.Next()
	constLabels := prometheus.Labels{BUFFER_ID: id}
	b := &Buffer{
		id:        id,
		config:    config,
		codec:     codec,
		noop:      config.Style == NOOP,
		queue:     newFIFO(config.MaxQueueSize),
		accepting: true,
		rotation:  newRotation(rand.New(rand.NewSource(time.Now().UnixNano()))),

		enqueuedCounter:     metrics.GetOrMustRegisterCounterVec(EnqueuedCounterOpts).WithLabelValues(config.AppName),
		droppedCounter:      metrics.GetOrMustRegisterCounterVec(DroppedCounterOpts).WithLabelValues(config.AppName),
		discardedCounter:    metrics.GetOrMustRegisterCounterVec(DiscardedCounterOpts).WithLabelValues(config.AppName),
		publishedCounter:    metrics.GetOrMustRegisterCounterVec(PublishedCounterOpts).WithLabelValues(config.AppName),
		publishErrorCounter: metrics.GetOrMustRegisterCounterVec(PublishErrorCounterOpts).WithLabelValues(config.AppName),

		queueDepthDesc:    metrics.NewDesc(QueueDepthOpts, constLabels),
		queueCapacityDesc: metrics.NewDesc(QueueCapacityOpts, constLabels),
		readyConnsDesc:    metrics.NewDesc(ReadyConnsOpts, constLabels),
	}
	for _, opt := range opts {
		opt(b)
	}

	if !b.noop {
		for _, endpoint := range config.Endpoints() {
			supervisor := NewSupervisor(endpoint, connector)
			supervisor.OnReady(b.drain)
			b.supervisors = append(b.supervisors, supervisor)
		}
	}

	metrics.RegisterCollector(b)
	b.healthChecks = b.newHealthChecks()

	EVENT_BUFFER_CREATED.Log(logger.Info()).
		Str(BUFFER_ID, b.id).
		Str("style", string(config.Style)).
		Int("capacity", config.MaxQueueSize).
		Int("endpoints", len(b.supervisors)).
		Msg("")

	for _, supervisor := range b.supervisors {
		supervisor.Connect()
	}
	return b, nil
}

// ID is the unique id assigned to the buffer
func (a *Buffer) ID() string {
	return a.id
}

// Config returns the config the buffer was created with, with defaults applied
func (a *Buffer) Config() Config {
	return a.config
}

// Codec returns the codec used to serialize messages
func (a *Buffer) Codec() message.Codec {
	return a.codec
}

// Noop returns true if the buffer discards everything
func (a *Buffer) Noop() bool {
	return a.noop
}

// Enqueue queues the message and tries to publish immediately. It never blocks on network I/O.
// Messages enqueued into a noop or closed buffer are discarded.
func (a *Buffer) Enqueue(m message.Message) {
	a.mutex.Lock()
	if a.noop || !a.accepting {
		a.stats.Discarded++
		a.mutex.Unlock()
		a.discardedCounter.Inc()
		return
	}
	evicted, dropped := a.queue.PushBack(m)
	a.stats.Enqueued++
	if dropped {
		a.stats.Dropped++
	}
	queued := a.queue.Len()
	a.mutex.Unlock()

	a.enqueuedCounter.Inc()
	if dropped {
		a.droppedCounter.Inc()
		EVENT_MSG_DROPPED.Log(logger.Debug()).Str(BUFFER_ID, a.id).Str(MSG_TYPE, string(evicted.Type())).Int(QUEUED, queued).Msg("")
	}
	a.drain()
}

// drain publishes queued messages to ready supervisors until the queue is empty or none is ready.
// If a drain is already in progress, it is flagged to run another pass instead.
func (a *Buffer) drain() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.draining {
		a.pending = true
		return
	}
	a.draining = true
	for {
		a.pending = false
		a.drainPass()
		if !a.pending || !a.accepting {
			break
		}
	}
	a.draining = false
}

// drainPass must be called with the lock held. The lock is released while publishing.
func (a *Buffer) drainPass() {
	excluded := map[*Supervisor]bool{}
	for a.accepting && a.queue.Len() > 0 {
		target := a.rotation.next(a.supervisors, excluded)
		if target == nil {
			return
		}
		m, _ := a.queue.PopFront()

		a.mutex.Unlock()
		err := a.publish(target, m)
		a.mutex.Lock()

		switch {
		case err == nil:
			a.stats.Published++
			a.publishedCounter.Inc()
		case errors.Is(err, broker.ErrNotReady):
			// not handed over: the message goes back to the head and is retried on the next ready supervisor
			excluded[target] = true
			if !a.accepting {
				return
			}
			if !a.queue.PushFront(m) {
				// the queue filled up while publishing and m is the oldest message
				a.stats.Dropped++
				a.droppedCounter.Inc()
				EVENT_MSG_DROPPED.Log(logger.Debug()).Str(BUFFER_ID, a.id).Str(MSG_TYPE, string(m.Type())).Int(QUEUED, a.queue.Len()).Msg("")
			}
		default:
			a.stats.PublishErrors++
			a.publishErrorCounter.Inc()
			EVENT_MSG_PUBLISH_ERR.Log(logger.Error()).
				Str(BUFFER_ID, a.id).
				Str(SUPERVISOR_ID, target.ID()).
				Str(HOST, target.Endpoint().Host).
				Str(MSG_TYPE, string(m.Type())).
				Err(err).
				Msg("")
		}
	}
}

func (a *Buffer) publish(target *Supervisor, m message.Message) error {
	body, err := a.codec.Marshal(m)
	if err != nil {
		return err
	}
	return target.Publish(RoutingKey(m), body, Headers(m), a.codec.ContentType())
}

// Close stops accepting messages, discards the queued messages and closes every Supervisor. It is idempotent.
func (a *Buffer) Close() {
	a.mutex.Lock()
	if !a.accepting {
		a.mutex.Unlock()
		return
	}
	a.accepting = false
	discarded := a.queue.Clear()
	a.stats.Discarded += uint64(discarded)
	a.mutex.Unlock()

	a.discardedCounter.Add(float64(discarded))
	for _, supervisor := range a.supervisors {
		supervisor.Close()
	}
	metrics.UnregisterCollector(a)
	for _, healthCheck := range a.healthChecks {
		metrics.HealthChecks.Remove(healthCheck)
	}
	EVENT_BUFFER_CLOSED.Log(logger.Info()).Str(BUFFER_ID, a.id).Int(DISCARDED, discarded).Msg("")
}

// Accepting returns false once the buffer is closed
func (a *Buffer) Accepting() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.accepting
}

// Len returns the number of queued messages
func (a *Buffer) Len() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.queue.Len()
}

// Capacity returns the max number of queued messages
func (a *Buffer) Capacity() int {
	return a.queue.Cap()
}

// Pending returns the queued messages, oldest first
func (a *Buffer) Pending() []message.Message {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.queue.Snapshot()
}

// Supervisors returns the supervisors in endpoint config order
func (a *Buffer) Supervisors() []*Supervisor {
	supervisors := make([]*Supervisor, len(a.supervisors))
	copy(supervisors, a.supervisors)
	return supervisors
}

// ReadyCount returns the number of ready supervisors
func (a *Buffer) ReadyCount() int {
	count := 0
	for _, supervisor := range a.supervisors {
		if supervisor.IsConnected() {
			count++
		}
	}
	return count
}

// Stats returns a snapshot of the buffer counters
func (a *Buffer) Stats() Stats {
	readyConns := a.ReadyCount()
	a.mutex.Lock()
	defer a.mutex.Unlock()
	stats := a.stats
	stats.Queued = a.queue.Len()
	stats.Capacity = a.queue.Cap()
	stats.ReadyConns = readyConns
	stats.Supervisors = len(a.supervisors)
	return stats
}

// Describe implements prometheus.Collector
func (a *Buffer) Describe(ch chan<- *prometheus.Desc) {
	ch <- a.queueDepthDesc
	ch <- a.queueCapacityDesc
	ch <- a.readyConnsDesc
}

// Collect implements prometheus.Collector
func (a *Buffer) Collect(ch chan<- prometheus.Metric) {
	stats := a.Stats()
	ch <- prometheus.MustNewConstMetric(a.queueDepthDesc, prometheus.GaugeValue, float64(stats.Queued), a.config.AppName)
	ch <- prometheus.MustNewConstMetric(a.queueCapacityDesc, prometheus.GaugeValue, float64(stats.Capacity), a.config.AppName)
	ch <- prometheus.MustNewConstMetric(a.readyConnsDesc, prometheus.GaugeValue, float64(stats.ReadyConns), a.config.AppName)
}
