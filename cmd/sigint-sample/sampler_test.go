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
	"testing"
	"time"

	"github.com/oysterpack/sigint.go/pkg/broker/brokertest"
	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/message"
	"github.com/oysterpack/sigint.go/pkg/metrics"
)

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("*** ERROR *** timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSampler(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	sampler := NewSampler(DefaultConfig(), connector, SampleApps, 5*time.Millisecond, time.Hour)
	sampler.Start()

	nodes := len(SampleApps[0].Nodes)
	waitFor(t, "connections", func() bool { return len(connector.Conns()) == nodes })
	for _, conn := range connector.Conns() {
		conn.SimulateReady()
	}

	received := func() map[message.Type]map[string]bool {
		nodesByType := map[message.Type]map[string]bool{}
		for _, publication := range connector.Publications() {
			m, err := message.MsgPackCodec.Unmarshal(publication.Body)
			if err != nil {
				t.Fatal(err)
			}
			if nodesByType[m.Type()] == nil {
				nodesByType[m.Type()] = map[string]bool{}
			}
			nodesByType[m.Type()][m.Source().NodeName] = true
		}
		return nodesByType
	}
	waitFor(t, "emissions from every node", func() bool {
		r := received()
		return len(r[message.Announcement]) == nodes && len(r[message.Counter]) == nodes && len(r[message.Timer]) == nodes
	})

	if err := sampler.Stop(); err != nil {
		t.Fatal(err)
	}
	for _, conn := range connector.Conns() {
		if !conn.Destroyed() {
			t.Errorf("*** ERROR *** connection was not closed : %v", conn.Endpoint())
		}
	}
}

func TestSampler_RestartsExpiredNodes(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	apps := []SampleApp{{Name: "app2", Nodes: []string{"app2node0"}, Version: "0.1.0"}}
	sampler := NewSampler(DefaultConfig(), connector, apps, time.Millisecond, 10*time.Millisecond)
	sampler.Start()
	waitFor(t, "restarts", func() bool { return len(connector.Conns()) >= 3 })
	if err := sampler.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestRunSampler_StopsOnCancel(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := runSampler(ctx, emission.Config{Style: emission.NOOP}, nil, time.Millisecond, time.Hour); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	config, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if config.Style != emission.AMQP || len(config.Endpoints()) != 1 {
		t.Errorf("*** ERROR *** unexpected default config : %+v", config)
	}
}

func TestRootCommand_Flags(t *testing.T) {
	cmd := newRootCommand()
	for _, flag := range []string{"config", "interval", "ttl", "metrics-addr", "log-level"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("*** ERROR *** flag is missing : %s", flag)
		}
	}
}
