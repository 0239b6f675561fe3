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
	"github.com/oysterpack/sigint.go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsNamespace is used as the metric namespace for emission related metrics
	MetricsNamespace = "sigint"
	// BufferMetricsSubSystem is used as the subsystem for Buffer metrics
	BufferMetricsSubSystem = "buffer"
	// ConnMetricsSubSystem is used as the subsystem for Supervisor metrics
	ConnMetricsSubSystem = "conn"
)

var (
	// BufferMetricLabels are the variable Buffer metric labels
	BufferMetricLabels = []string{"app"}
	// ConnMetricLabels are the variable Supervisor metric labels
	ConnMetricLabels = []string{"host", "exchange"}

	// BufferMetrics are the metrics registered by the Buffer
	BufferMetrics = &metrics.MetricOpts{
		CounterVecOpts: []*metrics.CounterVecOpts{
			EnqueuedCounterOpts,
			DroppedCounterOpts,
			DiscardedCounterOpts,
			PublishedCounterOpts,
			PublishErrorCounterOpts,
		},
		GaugeVecOpts: []*metrics.GaugeVecOpts{
			QueueDepthOpts,
			QueueCapacityOpts,
			ReadyConnsOpts,
		},
	}

	// ConnMetrics are the metrics registered by the Supervisor
	ConnMetrics = &metrics.MetricOpts{
		CounterVecOpts: []*metrics.CounterVecOpts{
			ReadyCounterOpts,
			DisconnectCounterOpts,
			ConnErrorCounterOpts,
		},
	}

	// EnqueuedCounterOpts counts messages accepted into the buffer
	EnqueuedCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "enqueued",
			Help:      "The number of messages that were enqueued",
		},
		Labels: BufferMetricLabels,
	}

	// DroppedCounterOpts counts messages evicted because the buffer was full
	DroppedCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "dropped",
			Help:      "The number of queued messages that were dropped because the buffer was full",
		},
		Labels: BufferMetricLabels,
	}

	// DiscardedCounterOpts counts messages discarded because the buffer was noop or closed
	DiscardedCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "discarded",
			Help:      "The number of messages that were discarded because the buffer was noop or closed",
		},
		Labels: BufferMetricLabels,
	}

	// PublishedCounterOpts counts messages handed to the broker
	PublishedCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "published",
			Help:      "The number of messages that were published",
		},
		Labels: BufferMetricLabels,
	}

	// PublishErrorCounterOpts counts messages lost because the publish failed
	PublishErrorCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "publish_errors",
			Help:      "The number of messages that were lost because the publish failed",
		},
		Labels: BufferMetricLabels,
	}

	// QueueDepthOpts reports the number of queued messages
	QueueDepthOpts = &metrics.GaugeVecOpts{
		GaugeOpts: &prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "queued",
			Help:      "The number of messages waiting to be published",
		},
		Labels: BufferMetricLabels,
	}

	// QueueCapacityOpts reports the buffer capacity
	QueueCapacityOpts = &metrics.GaugeVecOpts{
		GaugeOpts: &prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "capacity",
			Help:      "The max number of messages the buffer holds",
		},
		Labels: BufferMetricLabels,
	}

	// ReadyConnsOpts reports the number of ready connections
	ReadyConnsOpts = &metrics.GaugeVecOpts{
		GaugeOpts: &prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "ready_conns",
			Help:      "The number of broker connections that are ready",
		},
		Labels: BufferMetricLabels,
	}

	// ReadyCounterOpts counts transitions to the Ready state
	ReadyCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: ConnMetricsSubSystem,
			Name:      "readies",
			Help:      "The number of times the connection became ready",
		},
		Labels: ConnMetricLabels,
	}

	// DisconnectCounterOpts counts unexpected connection closes
	DisconnectCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: ConnMetricsSubSystem,
			Name:      "disconnects",
			Help:      "The number of times the connection was lost",
		},
		Labels: ConnMetricLabels,
	}

	// ConnErrorCounterOpts counts connection errors
	ConnErrorCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: ConnMetricsSubSystem,
			Name:      "errors",
			Help:      "The number of connection errors",
		},
		Labels: ConnMetricLabels,
	}
)
