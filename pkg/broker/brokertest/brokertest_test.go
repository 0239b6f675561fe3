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

package brokertest_test

import (
	"errors"
	"testing"

	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/broker/brokertest"
)

func TestConn_Lifecycle(t *testing.T) {
	connector := brokertest.NewConnector()
	var ready, closed int
	conn := connector.Connect(broker.Endpoint{Host: "host1", Exchange: "sigint"}, broker.Handlers{
		Ready:  func() { ready++ },
		Closed: func(err error) { closed++ },
	})
	fake := connector.Conn("host1")
	if fake == nil || fake != conn {
		t.Fatal("*** ERROR *** connection was not tracked")
	}

	var exchange broker.Exchange
	conn.Exchange("sigint", broker.ExchangeOptions{Type: broker.HeadersExchange, Durable: true}, func(x broker.Exchange, err error) {
		if err != nil {
			t.Fatal(err)
		}
		exchange = x
	})
	if err := exchange.Publish("c", []byte("data"), broker.PublishOptions{}); err != brokertest.ErrNotConnected {
		t.Errorf("*** ERROR *** publish should fail while not connected : %v", err)
	}

	fake.SimulateReady()
	if ready != 1 {
		t.Errorf("*** ERROR *** ready handler was not invoked")
	}
	if err := exchange.Publish("c", []byte("data"), broker.PublishOptions{Headers: map[string]string{"a": "b"}}); err != nil {
		t.Fatal(err)
	}
	publications := connector.Publications()
	if len(publications) != 1 || publications[0].RoutingKey != "c" || publications[0].Options.Headers["a"] != "b" {
		t.Errorf("*** ERROR *** publication was not recorded : %v", publications)
	}

	fake.SetPublishError(errors.New("BOOM"))
	if err := exchange.Publish("c", []byte("data"), broker.PublishOptions{}); err == nil {
		t.Error("*** ERROR *** publish should have failed")
	}

	fake.SimulateClose(errors.New("network"))
	conn.Reconnect()
	if fake.Reconnects() != 1 {
		t.Errorf("*** ERROR *** reconnect was not counted : %d", fake.Reconnects())
	}

	conn.Destroy()
	conn.Destroy()
	if !fake.Destroyed() || closed != 2 {
		t.Errorf("*** ERROR *** destroy should fire closed exactly once : closed = %d", closed)
	}
	fake.SimulateReady()
	if ready != 1 {
		t.Error("*** ERROR *** a destroyed connection must not become ready")
	}
	conn.Exchange("sigint", broker.ExchangeOptions{}, func(x broker.Exchange, err error) {
		if err != broker.ErrDestroyed {
			t.Errorf("*** ERROR *** binding on a destroyed connection should fail : %v", err)
		}
	})
}
