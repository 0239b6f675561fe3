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
	"math/rand"
	"time"

	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/message"
	"github.com/oysterpack/sigint.go/pkg/sigint"
	"gopkg.in/tomb.v2"
)

// EmissionKind is the kind of sample emission
type EmissionKind string

// emission kinds
const (
	COUNTER EmissionKind = "counter"
	TIMER   EmissionKind = "timer"
)

// SampleEmission is emitted on every tick
type SampleEmission struct {
	Kind      EmissionKind
	Operation string
	// MaxDuration bounds the random timer duration
	MaxDuration time.Duration
}

// SampleApp is a simulated application that runs on each of its nodes
type SampleApp struct {
	Name      string
	Nodes     []string
	Version   string
	Stack     []message.Component
	Emissions []SampleEmission
}

// SampleApps are the simulated applications
var SampleApps = []SampleApp{
	{
		Name:    "app1",
		Nodes:   []string{"app1node0", "app1node1", "app1node2"},
		Version: "1.2.3",
		Stack: []message.Component{
			{Name: "go", Version: "1.24"},
		},
		Emissions: []SampleEmission{
			{Kind: COUNTER, Operation: "login"},
			{Kind: TIMER, Operation: "validate_idm_token", MaxDuration: 100 * time.Millisecond},
		},
	},
}

// Sampler runs every sample app node as its own sigint client.
// Each node announces itself, emits on every tick, and is restarted once its random time to live expires.
type Sampler struct {
	config    emission.Config
	connector broker.Connector
	apps      []SampleApp
	interval  time.Duration
	ttl       time.Duration

	tomb    tomb.Tomb
	started bool
}

// NewSampler creates a sampler. node_name and app_name in config are replaced per simulated node.
func NewSampler(config emission.Config, connector broker.Connector, apps []SampleApp, interval, ttl time.Duration) *Sampler {
	return &Sampler{
		config:    config,
		connector: connector,
		apps:      apps,
		interval:  interval,
		ttl:       ttl,
	}
}

// Start launches the simulated nodes
func (a *Sampler) Start() {
	for _, app := range a.apps {
		for _, node := range app.Nodes {
			app, node := app, node
			a.started = true
			a.tomb.Go(func() error {
				return a.runNode(app, node)
			})
		}
	}
}

// Stop stops every node and closes its client
func (a *Sampler) Stop() error {
	a.tomb.Kill(nil)
	if !a.started {
		return nil
	}
	return a.tomb.Wait()
}

func (a *Sampler) runNode(app SampleApp, node string) error {
	for {
		config := a.config
		config.NodeName = node
		config.AppName = app.Name
		client, err := sigint.NewWithConnector(config, a.connector)
		if err != nil {
			return err
		}
		logger.Info().Str("app", app.Name).Str("node", node).Str("version", app.Version).Msg("starting application")
		client.Announce().Stack(app.Stack).AppVersion(app.Version).Emit()

		done := a.emitUntilExpired(client, app)
		client.Close()
		logger.Info().Str("app", app.Name).Str("node", node).Msg("stopped application")
		if done {
			return nil
		}
	}
}

// emitUntilExpired emits on every tick until the node's time to live expires.
// It returns true if the sampler is stopping.
func (a *Sampler) emitUntilExpired(client *sigint.Client, app SampleApp) bool {
	ticker := time.NewTicker(jitter(a.interval, a.interval/10))
	defer ticker.Stop()
	ttl := time.NewTimer(jitter(time.Millisecond, a.ttl))
	defer ttl.Stop()
	for {
		select {
		case <-ticker.C:
			for _, e := range app.Emissions {
				switch e.Kind {
				case COUNTER:
					client.Count(e.Operation).Emit()
				case TIMER:
					client.Time(e.Operation).Duration(jitter(0, e.MaxDuration)).Emit()
				}
			}
		case <-ttl.C:
			return false
		case <-a.tomb.Dying():
			return true
		}
	}
}

// jitter returns base plus a random duration in [0, spread)
func jitter(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(spread)))
}
