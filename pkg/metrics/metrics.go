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

// Package metrics wraps the prometheus client with a process wide registry.
// Metric vectors are registered once and cached by their fully qualified name, which lets packages declare their
// metrics as package level vars without worrying about duplicate registration.
package metrics

import (
	"github.com/oysterpack/sigint.go/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// MetricType enumerates the supported metric vector types
type MetricType int

// MetricType enum values
const (
	MetricType_UNKNOWN MetricType = iota
	MetricType_COUNTER_VEC
	MetricType_GAUGE_VEC
)

// Value returns the int value
func (a MetricType) Value() int {
	return int(a)
}

func (a MetricType) String() string {
	switch a {
	case MetricType_COUNTER_VEC:
		return "CounterVec"
	case MetricType_GAUGE_VEC:
		return "GaugeVec"
	default:
		return "UNKNOWN"
	}
}

// CounterVecOpts pairs the counter opts with its variable labels
type CounterVecOpts struct {
	*prometheus.CounterOpts
	Labels []string
}

// GaugeVecOpts pairs the gauge opts with its variable labels
type GaugeVecOpts struct {
	*prometheus.GaugeOpts
	Labels []string
}

// CounterVec is a registered counter vector along with the opts it was registered with
type CounterVec struct {
	*prometheus.CounterVec
	*CounterVecOpts
}

// GaugeVec is a registered gauge vector along with the opts it was registered with
type GaugeVec struct {
	*prometheus.GaugeVec
	*GaugeVecOpts
}

// MetricOpts groups the metrics that a component collects
type MetricOpts struct {
	CounterVecOpts []*CounterVecOpts
	GaugeVecOpts   []*GaugeVecOpts
}

// NewDesc builds the collector Desc for gauge vector opts.
// It is used by components that implement prometheus.Collector and report const metrics.
func NewDesc(opts *GaugeVecOpts, constLabels prometheus.Labels) *prometheus.Desc {
	labels := prometheus.Labels{}
	for k, v := range opts.ConstLabels {
		labels[k] = v
	}
	for k, v := range constLabels {
		labels[k] = v
	}
	return prometheus.NewDesc(GaugeFQName(opts.GaugeOpts), opts.Help, opts.Labels, labels)
}
