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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mutex sync.RWMutex

	// Registry is the global registry
	Registry = NewRegistry(true)

	counterVecsMap = map[string]*CounterVec{}
	gaugeVecsMap   = map[string]*GaugeVec{}
)

// NewRegistry creates a new registry.
// If collectProcessMetrics = true, then the prometheus GoCollector and ProcessCollectors are registered.
func NewRegistry(collectProcessMetrics bool) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	if collectProcessMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return registry
}

// ResetRegistry resets the prometheus Registry and clears all cached metrics and health checks
func ResetRegistry() {
	mutex.Lock()
	defer mutex.Unlock()
	Registry = NewRegistry(true)
	counterVecsMap = map[string]*CounterVec{}
	gaugeVecsMap = map[string]*GaugeVec{}
	HealthChecks.Clear()
}

// Registered returns true if a metric is registered with the same name
func Registered(name string) bool {
	mutex.RLock()
	defer mutex.RUnlock()
	return registered(name)
}

func registered(name string) bool {
	if _, exists := counterVecsMap[name]; exists {
		return true
	}
	_, exists := gaugeVecsMap[name]
	return exists
}

// RegisterCollector registers a component level collector.
// Registration failures are logged and reported as false - a collector that cannot be registered must never prevent
// the component from running.
func RegisterCollector(collector prometheus.Collector) bool {
	mutex.RLock()
	defer mutex.RUnlock()
	if err := Registry.Register(collector); err != nil {
		logger.Warn().Err(err).Msg("collector registration failed")
		return false
	}
	return true
}

// UnregisterCollector unregisters the collector
func UnregisterCollector(collector prometheus.Collector) bool {
	mutex.RLock()
	defer mutex.RUnlock()
	return Registry.Unregister(collector)
}
