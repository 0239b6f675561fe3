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
	"fmt"

	"github.com/oysterpack/sigint.go/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrNoReadyConnections is reported by the connectivity health check
	ErrNoReadyConnections = errors.New("no broker connection is ready")
	// ErrBufferFull is reported by the backlog health check
	ErrBufferFull = errors.New("buffer is full, the oldest messages are being dropped")
)

var (
	// HealthCheckLabels are the variable health check labels
	HealthCheckLabels = []string{"app", BUFFER_ID}

	// ConnectivityHealthCheckOpts fails when no connection is ready
	ConnectivityHealthCheckOpts = &metrics.GaugeVecOpts{
		GaugeOpts: &prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "connectivity",
			Help:      "The healthcheck fails if no broker connection is ready",
		},
		Labels: HealthCheckLabels,
	}

	// BacklogHealthCheckOpts fails when the buffer is full
	BacklogHealthCheckOpts = &metrics.GaugeVecOpts{
		GaugeOpts: &prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: BufferMetricsSubSystem,
			Name:      "backlog",
			Help:      "The healthcheck fails if the buffer is full",
		},
		Labels: HealthCheckLabels,
	}
)

// HealthChecks returns the buffer health checks. A noop buffer has none.
func (a *Buffer) HealthChecks() []metrics.HealthCheck {
	return a.healthChecks
}

func (a *Buffer) newHealthChecks() []metrics.HealthCheck {
	if a.noop {
		return nil
	}
	labelValues := []string{a.config.AppName, a.id}
	return []metrics.HealthCheck{
		metrics.NewHealthCheckVector(ConnectivityHealthCheckOpts, a.healthCheckInterval, a.checkConnectivity, labelValues),
		metrics.NewHealthCheckVector(BacklogHealthCheckOpts, a.healthCheckInterval, a.checkBacklog, labelValues),
	}
}

func (a *Buffer) checkConnectivity() error {
	if a.ReadyCount() == 0 {
		return fmt.Errorf("%w : %d endpoint(s)", ErrNoReadyConnections, len(a.supervisors))
	}
	return nil
}

func (a *Buffer) checkBacklog() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.accepting && a.queue.Full() {
		return ErrBufferFull
	}
	return nil
}
