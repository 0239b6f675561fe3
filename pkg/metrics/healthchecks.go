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
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oysterpack/sigint.go/pkg/commons"
	"github.com/oysterpack/sigint.go/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HealthChecks is the global HealthCheck registry
	HealthChecks = &HealthCheckRegistry{
		healthchecks: make(map[string]HealthCheck),
	}
)

// HealthCheck represents a health check metric - it maps to a prometheus status, where
//
//	0 = FAIL
//	1 = PASS
//
// The unique identifier for a HealthCheck is the combination of name and label values.
//
// The health check run duration is also recorded as a gauge metric.
// The naming convention for the run duration gauge metric is : {health_check_name}_duration_seconds
type HealthCheck interface {
	// Name is the base health check name
	Name() string

	// Labels are used to label health check instances.
	Labels() map[string]string

	Key() string

	// Help provides information about this health check
	Help() string

	// Run executes the health check and updates the health check status
	// It is safe to run it concurrently - it is protected by a mutex.
	Run() *HealthCheckResult

	// LastResult returns the result from the latest run
	LastResult() *HealthCheckResult

	// RunInterval if 0, then the healthcheck is not run on an interval
	RunInterval() time.Duration

	// StopTicker stops the ticker used to run the healthcheck periodically - applies only if run interval > 0
	StopTicker()
	// StartTicker starts the ticker (if it is not already started) used to run the healthcheck periodically - applies only if run interval > 0
	StartTicker()
	// Scheduled returns true if the healthcheck is scheduled to run
	Scheduled() bool
}

// RunHealthCheck is used to run the health check.
// If the health check fails, then an error is returned.
type RunHealthCheck func() error

// HealthCheckResult is the result of running the health check
type HealthCheckResult struct {
	// why the health check failed
	Err error

	// when the health check started run
	time.Time

	// how long it took to run the health check
	time.Duration
}

// HealthCheckGaugeValue represents an enum for HealthCheck status values
type HealthCheckGaugeValue float64

const (
	// HEALTHCHECK_FAILURE = 0
	HEALTHCHECK_FAILURE HealthCheckGaugeValue = 0
	// HEALTHCHECK_SUCCESS = 1
	HEALTHCHECK_SUCCESS HealthCheckGaugeValue = 1

	// HEALTHCHECK_LABEL is used to tag metrics as healthchecks.
	//
	//	status -> heathcheck status that records the healthcheck status
	//	duration -> healthcheck run duration
	HEALTHCHECK_LABEL = "healthcheck"
)

// Success returns true if there was no error
func (a *HealthCheckResult) Success() bool {
	return a.Err == nil
}

func (a *HealthCheckResult) String() string {
	if a.Success() {
		return fmt.Sprintf("PASS : %v : %v ", a.Time, a.Duration)
	}
	return fmt.Sprintf("FAIL : %v : %v : %v", a.Time, a.Duration, a.Err)
}

// Value maps the HealthCheckResult to a status value
func (a *HealthCheckResult) Value() HealthCheckGaugeValue {
	if a.Success() {
		return HEALTHCHECK_SUCCESS
	}
	return HEALTHCHECK_FAILURE
}

type healthcheck struct {
	opts        prometheus.GaugeOpts
	labels      []string
	labelValues []string

	sync.RWMutex
	run RunHealthCheck

	status      prometheus.Gauge
	runDuration prometheus.Gauge

	runInterval time.Duration
	ticker      *time.Ticker
	stopTrigger chan struct{}

	lastResult *HealthCheckResult
}

func (a *healthcheck) Key() string {
	labels := a.Labels()
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + labels[k]
	}
	return fmt.Sprintf("%s[%s]", a.Name(), strings.Join(pairs, " "))
}

func (a *healthcheck) Name() string {
	return prometheus.BuildFQName(a.opts.Namespace, a.opts.Subsystem, a.opts.Name)
}

func (a *healthcheck) Labels() map[string]string {
	labels := map[string]string{}
	for k, v := range a.opts.ConstLabels {
		labels[k] = v
	}
	for i, label := range a.labels {
		labels[label] = a.labelValues[i]
	}
	return labels
}

func (a *healthcheck) Help() string {
	return a.opts.Help
}

func (a *healthcheck) Run() (result *HealthCheckResult) {
	a.Lock()
	defer a.Unlock()

	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			result = &HealthCheckResult{
				Err:      fmt.Errorf("HealthCheck panic : %v", p),
				Time:     start,
				Duration: time.Since(start),
			}
		}

		if result.Success() {
			logger.Debug().Str(logging.HEALTHCHECK, a.Key()).Dur("duration", result.Duration).Msg("")
		} else {
			logger.Error().Str(logging.HEALTHCHECK, a.Key()).Dur("duration", result.Duration).Err(result.Err).Msg("")
		}

		a.status.Set(float64(result.Value()))
		a.runDuration.Set(result.Duration.Seconds())

		a.lastResult = result
	}()

	result = &HealthCheckResult{
		Err:      a.run(),
		Time:     start,
		Duration: time.Since(start),
	}
	return
}

func (a *healthcheck) LastResult() *HealthCheckResult {
	a.RLock()
	defer a.RUnlock()
	return a.lastResult
}

func (a *healthcheck) String() string {
	a.RLock()
	defer a.RUnlock()
	if a.lastResult != nil {
		return fmt.Sprintf("%v : %v : %v", a.Key(), a.Help(), a.lastResult.Success())
	}
	return fmt.Sprintf("%v : %v", a.Key(), a.Help())
}

func (a *healthcheck) RunInterval() time.Duration {
	return a.runInterval
}

func (a *healthcheck) StopTicker() {
	a.Lock()
	defer a.Unlock()
	if a.ticker != nil {
		a.ticker.Stop()
		commons.CloseQuietly(a.stopTrigger)
	}
	a.ticker = nil
	a.stopTrigger = nil
}

func (a *healthcheck) StartTicker() {
	if a.RunInterval() <= 0 {
		return
	}
	a.Lock()
	defer a.Unlock()
	if a.ticker == nil {
		a.ticker = time.NewTicker(a.runInterval)
		a.stopTrigger = make(chan struct{})
		go func(ticker *time.Ticker, stopTrigger <-chan struct{}) {
			for {
				select {
				case <-ticker.C:
					a.Run()
				case <-stopTrigger:
					return
				}
			}
		}(a.ticker, a.stopTrigger)
	}
}

func (a *healthcheck) Scheduled() bool {
	a.RLock()
	defer a.RUnlock()
	return a.ticker != nil
}

// NewHealthCheckVector creates a new HealthCheck and registers it with the global HealthCheck registry.
// check is required - panics if nil.
func NewHealthCheckVector(opts *GaugeVecOpts, runInterval time.Duration, check RunHealthCheck, labelValues []string) HealthCheck {
	return HealthChecks.NewHealthCheckVector(opts, runInterval, check, labelValues)
}

// HealthCheckRegistry is a HealthCheck registry.
type HealthCheckRegistry struct {
	sync.RWMutex
	healthchecks map[string]HealthCheck
}

// NewHealthCheckVector creates a new HealthCheck.
// If a health check is already registered for the same name and label values, then it is replaced: the old one's
// ticker is stopped and the gauges are shared.
func (a *HealthCheckRegistry) NewHealthCheckVector(opts *GaugeVecOpts, runInterval time.Duration, check RunHealthCheck, labelValues []string) HealthCheck {
	if check == nil {
		logger.Panic().Msg("check is required")
	}
	if len(opts.Labels) == 0 {
		logger.Panic().Msgf("Labels are required : %v", GaugeFQName(opts.GaugeOpts))
	}
	if len(labelValues) != len(opts.Labels) {
		logger.Panic().Msgf("The number of label values must match the number of labels defined in the GaugeVecOpts : %v : %v", opts.Labels, labelValues)
	}

	statusOpts := &GaugeVecOpts{
		&prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        opts.Name,
			Help:        opts.Help,
			ConstLabels: addLabels(prometheus.Labels{HEALTHCHECK_LABEL: "status"}, opts.ConstLabels),
		}, opts.Labels,
	}
	durationOpts := &GaugeVecOpts{
		&prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        fmt.Sprintf("%s_duration_seconds", opts.Name),
			Help:        "The healthcheck run duration in seconds",
			ConstLabels: addLabels(prometheus.Labels{HEALTHCHECK_LABEL: "duration"}, opts.ConstLabels),
		}, opts.Labels,
	}

	h := &healthcheck{
		opts:        *statusOpts.GaugeOpts,
		labels:      opts.Labels,
		labelValues: labelValues,
		run:         check,
		status:      GetOrMustRegisterGaugeVec(statusOpts).WithLabelValues(labelValues...),
		runDuration: GetOrMustRegisterGaugeVec(durationOpts).WithLabelValues(labelValues...),
		runInterval: runInterval,
	}

	a.Lock()
	defer a.Unlock()
	key := h.Key()
	if existing, exists := a.healthchecks[key]; exists {
		existing.StopTicker()
	}
	h.StartTicker()
	a.healthchecks[key] = h
	return h
}

// Remove unregisters the health check and stops its ticker
func (a *HealthCheckRegistry) Remove(healthCheck HealthCheck) {
	a.Lock()
	defer a.Unlock()
	healthCheck.StopTicker()
	if registered, exists := a.healthchecks[healthCheck.Key()]; exists && registered == healthCheck {
		delete(a.healthchecks, healthCheck.Key())
	}
}

// HealthCheck looks up a registered health check by key
func (a *HealthCheckRegistry) HealthCheck(key string) HealthCheck {
	a.RLock()
	defer a.RUnlock()
	return a.healthchecks[key]
}

// HealthChecks returns all registered health checks
func (a *HealthCheckRegistry) HealthChecks() []HealthCheck {
	a.RLock()
	defer a.RUnlock()
	checks := make([]HealthCheck, 0, len(a.healthchecks))
	for _, c := range a.healthchecks {
		checks = append(checks, c)
	}
	return checks
}

// RunAllHealthChecks runs all registered health checks and returns the results keyed by health check key
func (a *HealthCheckRegistry) RunAllHealthChecks() map[string]*HealthCheckResult {
	results := map[string]*HealthCheckResult{}
	for _, c := range a.HealthChecks() {
		results[c.Key()] = c.Run()
	}
	return results
}

// Clear clears the registry - this is exposed for testing purposes
func (a *HealthCheckRegistry) Clear() {
	a.Lock()
	defer a.Unlock()
	for _, c := range a.healthchecks {
		c.StopTicker()
	}
	a.healthchecks = make(map[string]HealthCheck)
}

func addLabels(from prometheus.Labels, to prometheus.Labels) prometheus.Labels {
	labels := prometheus.Labels{}
	for k, v := range to {
		labels[k] = v
	}
	for k, v := range from {
		labels[k] = v
	}
	return labels
}
