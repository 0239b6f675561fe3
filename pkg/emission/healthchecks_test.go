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

package emission_test

import (
	"errors"
	"testing"

	"github.com/oysterpack/sigint.go/pkg/broker/brokertest"
	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/metrics"
)

func TestBuffer_HealthChecks(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(1, "rabbit1"), connector)
	defer buffer.Close()

	healthChecks := buffer.HealthChecks()
	if len(healthChecks) != 2 {
		t.Fatalf("*** ERROR *** expected 2 health checks : %v", healthChecks)
	}
	connectivity, backlog := healthChecks[0], healthChecks[1]

	if result := connectivity.Run(); !errors.Is(result.Err, emission.ErrNoReadyConnections) {
		t.Errorf("*** ERROR *** connectivity should fail while disconnected : %v", result)
	}
	if result := backlog.Run(); !result.Success() {
		t.Errorf("*** ERROR *** backlog should pass while the buffer is empty : %v", result)
	}

	buffer.Enqueue(counter("A"))
	if result := backlog.Run(); result.Err != emission.ErrBufferFull {
		t.Errorf("*** ERROR *** backlog should fail when the buffer is full : %v", result)
	}

	connector.Conn("rabbit1").SimulateReady()
	for _, healthCheck := range healthChecks {
		if result := healthCheck.Run(); !result.Success() {
			t.Errorf("*** ERROR *** %v should pass : %v", healthCheck.Key(), result)
		}
	}

	if metrics.HealthChecks.HealthCheck(connectivity.Key()) == nil {
		t.Error("*** ERROR *** health check should be registered")
	}
	buffer.Close()
	if metrics.HealthChecks.HealthCheck(connectivity.Key()) != nil {
		t.Error("*** ERROR *** health check should be removed when the buffer is closed")
	}
}

func TestBuffer_Collector(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	buffer := newBuffer(t, newConfig(10, "rabbit1", "rabbit2"), brokertest.NewConnector())
	defer buffer.Close()
	buffer.Enqueue(counter("A"))
	buffer.Enqueue(counter("B"))

	gathered, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	expected := map[string]float64{
		"sigint_buffer_queued":      2,
		"sigint_buffer_capacity":    10,
		"sigint_buffer_ready_conns": 0,
	}
	for name, value := range expected {
		family := metrics.FindMetricFamilyByName(gathered, name)
		if family == nil {
			t.Errorf("*** ERROR *** %s was not collected", name)
			continue
		}
		if got := family.GetMetric()[0].GetGauge().GetValue(); got != value {
			t.Errorf("*** ERROR *** %s = %v, expected %v", name, got, value)
		}
	}

	family := metrics.FindMetricFamilyByName(gathered, "sigint_buffer_enqueued")
	if family == nil || family.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("*** ERROR *** enqueued counter was not incremented : %v", family)
	}
}
