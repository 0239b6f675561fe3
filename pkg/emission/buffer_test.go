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
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/broker/brokertest"
	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/message"
	"github.com/oysterpack/sigint.go/pkg/metrics"
)

var source = message.Source{NodeName: "app1node0", AppName: "app1"}

func newConfig(capacity int, hosts ...string) emission.Config {
	config := emission.Config{
		Style:        emission.AMQP,
		MaxQueueSize: capacity,
		NodeName:     source.NodeName,
		AppName:      source.AppName,
	}
	for _, host := range hosts {
		config.AMQP = append(config.AMQP, broker.Endpoint{Host: host, Exchange: "sigint"})
	}
	return config
}

func newBuffer(t *testing.T, config emission.Config, connector broker.Connector, opts ...emission.BufferOption) *emission.Buffer {
	t.Helper()
	buffer, err := emission.NewBuffer(config, connector, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return buffer
}

func counter(op string) message.Message {
	return message.NewCounter(source, time.Now(), op, 1)
}

func publishedOps(t *testing.T, publications []brokertest.Publication) []string {
	t.Helper()
	result := make([]string, len(publications))
	for i, publication := range publications {
		m, err := message.MsgPackCodec.Unmarshal(publication.Body)
		if err != nil {
			t.Fatal(err)
		}
		result[i] = m.Operation()
	}
	return result
}

func TestBuffer_DropOldestWhileDisconnected(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(2, "rabbit1"), connector)
	defer buffer.Close()

	for _, op := range []string{"A", "B", "C"} {
		buffer.Enqueue(counter(op))
	}
	pending := buffer.Pending()
	if len(pending) != 2 || pending[0].Operation() != "B" || pending[1].Operation() != "C" {
		t.Errorf("*** ERROR *** buffer should hold [B, C] : %v", pending)
	}
	stats := buffer.Stats()
	if stats.Enqueued != 3 || stats.Dropped != 1 || stats.Queued != 2 || stats.Capacity != 2 {
		t.Errorf("*** ERROR *** unexpected stats : %+v", stats)
	}
	if len(connector.Publications()) != 0 {
		t.Error("*** ERROR *** nothing should be published while disconnected")
	}
}

func TestBuffer_RetainsMostRecent(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	const capacity = 5
	buffer := newBuffer(t, newConfig(capacity, "rabbit1"), brokertest.NewConnector())
	defer buffer.Close()

	for i := 0; i < 23; i++ {
		buffer.Enqueue(counter(fmt.Sprint(i)))
		if buffer.Len() > capacity {
			t.Fatalf("*** ERROR *** buffer exceeded its capacity : %d", buffer.Len())
		}
	}
	for i, m := range buffer.Pending() {
		if m.Operation() != fmt.Sprint(18+i) {
			t.Errorf("*** ERROR *** expected the most recent messages : %v", buffer.Pending())
			break
		}
	}
}

func TestBuffer_PublishOnReady(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1"), connector)
	defer buffer.Close()

	x := message.NewCounter(source, time.Now(), "login", 1, message.WithTarget("auth"))
	buffer.Enqueue(x)
	if buffer.Len() != 1 {
		t.Fatalf("*** ERROR *** the message should be queued : %d", buffer.Len())
	}

	connector.Conn("rabbit1").SimulateReady()
	publications := connector.Publications()
	if len(publications) != 1 {
		t.Fatalf("*** ERROR *** expected exactly 1 publish : %d", len(publications))
	}
	publication := publications[0]
	if publication.RoutingKey != "c" || publication.Exchange != "sigint" {
		t.Errorf("*** ERROR *** unexpected routing : %v / %v", publication.Exchange, publication.RoutingKey)
	}
	headers := publication.Options.Headers
	if headers[emission.HeaderSource] != "app1" || headers[emission.HeaderType] != "c" ||
		headers[emission.HeaderOperation] != "login" || headers[emission.HeaderTarget] != "auth" {
		t.Errorf("*** ERROR *** unexpected headers : %v", headers)
	}
	if publication.Options.ContentType != "application/msgpack" || publication.Options.DeliveryMode != broker.Transient {
		t.Errorf("*** ERROR *** unexpected publish options : %v", publication.Options)
	}
	if buffer.Len() != 0 || buffer.Stats().Published != 1 {
		t.Errorf("*** ERROR *** the buffer should be empty : %+v", buffer.Stats())
	}
}

func TestBuffer_AnnouncementHeaders(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1"), connector)
	defer buffer.Close()
	connector.Conn("rabbit1").SimulateReady()

	buffer.Enqueue(message.NewAnnouncement(source, time.Now(), "1.0.0", nil))
	headers := connector.Publications()[0].Options.Headers
	if _, exists := headers[emission.HeaderOperation]; exists {
		t.Errorf("*** ERROR *** announcements have no operation header : %v", headers)
	}
	if _, exists := headers[emission.HeaderTarget]; exists {
		t.Errorf("*** ERROR *** target header should only be set when targeted : %v", headers)
	}
}

func TestBuffer_BacklogDeliveredInOrder(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1"), connector)
	defer buffer.Close()

	expected := []string{"A", "B", "C", "D", "E"}
	for _, op := range expected {
		buffer.Enqueue(counter(op))
	}
	connector.Conn("rabbit1").SimulateReady()
	got := publishedOps(t, connector.Publications())
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		t.Errorf("*** ERROR *** backlog was not delivered in order : %v", got)
	}
	if buffer.Len() != 0 {
		t.Errorf("*** ERROR *** buffer should be empty : %d", buffer.Len())
	}
}

func TestBuffer_NoPublishWhileNotReady(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1"), connector)
	defer buffer.Close()

	conn := connector.Conn("rabbit1")
	conn.SimulateReady()
	conn.SimulateClose(errors.New("connection reset"))

	buffer.Enqueue(counter("A"))
	if len(connector.Publications()) != 0 {
		t.Error("*** ERROR *** nothing should be published while the connection is down")
	}
	if buffer.Len() != 1 {
		t.Errorf("*** ERROR *** the message should stay queued : %d", buffer.Len())
	}

	conn.SimulateReady()
	if len(connector.Publications()) != 1 || buffer.Len() != 0 {
		t.Errorf("*** ERROR *** the message should be flushed after reconnecting : %d", len(connector.Publications()))
	}
}

func TestBuffer_LoadSpreading(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	hosts := []string{"rabbit1", "rabbit2", "rabbit3"}
	for seed := int64(0); seed < 50; seed++ {
		for n := 2; n <= len(hosts); n++ {
			for m := n; m <= n+2; m++ {
				connector := brokertest.NewConnector()
				buffer := newBuffer(t, newConfig(0, hosts[:n]...), connector, emission.WithRand(rand.New(rand.NewSource(seed))))
				for _, conn := range connector.Conns() {
					conn.SimulateReady()
				}
				for i := 0; i < m; i++ {
					buffer.Enqueue(counter(fmt.Sprint(i)))
				}
				total := 0
				for _, conn := range connector.Conns() {
					count := len(conn.Publications())
					if count == 0 {
						t.Errorf("*** ERROR *** seed=%d n=%d m=%d : %s received nothing", seed, n, m, conn.Endpoint().Host)
					}
					total += count
				}
				if total != m {
					t.Errorf("*** ERROR *** seed=%d n=%d m=%d : %d messages were published", seed, n, m, total)
				}
				buffer.Close()
			}
		}
	}
}

func TestBuffer_LoadSpreadingAfterWarmUp(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	hosts := []string{"rabbit1", "rabbit2", "rabbit3"}
	for seed := int64(0); seed < 50; seed++ {
		for warmUp := 0; warmUp <= 2*len(hosts); warmUp++ {
			connector := brokertest.NewConnector()
			buffer := newBuffer(t, newConfig(0, hosts...), connector, emission.WithRand(rand.New(rand.NewSource(seed))))
			for _, conn := range connector.Conns() {
				conn.SimulateReady()
			}
			for i := 0; i < warmUp; i++ {
				buffer.Enqueue(counter("warm-up"))
			}
			before := map[string]int{}
			for _, conn := range connector.Conns() {
				before[conn.Endpoint().Host] = len(conn.Publications())
			}

			// every window of N consecutive messages reaches all N ready endpoints
			for i := 0; i < len(hosts); i++ {
				buffer.Enqueue(counter(fmt.Sprint(i)))
			}
			for _, conn := range connector.Conns() {
				if received := len(conn.Publications()) - before[conn.Endpoint().Host]; received != 1 {
					t.Errorf("*** ERROR *** seed=%d warmUp=%d : %s received %d", seed, warmUp, conn.Endpoint().Host, received)
				}
			}
			buffer.Close()
		}
	}
}

func TestBuffer_TwoReadyEndpointsThreeMessages(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	for trial := 0; trial < 100; trial++ {
		connector := brokertest.NewConnector()
		buffer := newBuffer(t, newConfig(0, "rabbit1", "rabbit2"), connector)
		connector.Conn("rabbit1").SimulateReady()
		connector.Conn("rabbit2").SimulateReady()
		for _, op := range []string{"A", "B", "C"} {
			buffer.Enqueue(counter(op))
		}
		count1 := len(connector.Conn("rabbit1").Publications())
		count2 := len(connector.Conn("rabbit2").Publications())
		if count1+count2 != 3 || count1 == 0 || count2 == 0 {
			t.Fatalf("*** ERROR *** trial %d : rabbit1 = %d, rabbit2 = %d", trial, count1, count2)
		}
		buffer.Close()
	}
}

func TestBuffer_Failover(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1", "rabbit2"), connector)
	defer buffer.Close()
	conn1, conn2 := connector.Conn("rabbit1"), connector.Conn("rabbit2")
	conn1.SimulateReady()
	conn2.SimulateReady()

	// whichever connection receives the first message takes the other one down
	conn1.OnPublish(func(brokertest.Publication) { conn2.SimulateClose(errors.New("connection reset")) })
	conn2.OnPublish(func(brokertest.Publication) { conn1.SimulateClose(errors.New("connection reset")) })

	for _, op := range []string{"A", "B", "C", "D"} {
		buffer.Enqueue(counter(op))
	}
	count1, count2 := len(conn1.Publications()), len(conn2.Publications())
	if count1+count2 != 4 || (count1 != 0 && count2 != 0) {
		t.Errorf("*** ERROR *** all messages should fail over to the remaining connection : %d / %d", count1, count2)
	}
	if buffer.ReadyCount() != 1 || buffer.Len() != 0 {
		t.Errorf("*** ERROR *** ready = %d, queued = %d", buffer.ReadyCount(), buffer.Len())
	}
}

func TestBuffer_NotReadyPublishIsRetried(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1"), connector)
	defer buffer.Close()
	conn := connector.Conn("rabbit1")
	conn.SimulateReady()
	conn.SetPublishError(broker.ErrNotReady)

	buffer.Enqueue(counter("A"))
	buffer.Enqueue(counter("B"))
	if got := buffer.Pending(); len(got) != 2 || got[0].Operation() != "A" {
		t.Errorf("*** ERROR *** messages that were not handed over must stay queued in order : %v", got)
	}
	if buffer.Stats().PublishErrors != 0 {
		t.Errorf("*** ERROR *** not ready is not a publish error : %+v", buffer.Stats())
	}

	conn.SetPublishError(nil)
	conn.SimulateReady()
	if got := publishedOps(t, conn.Publications()); fmt.Sprint(got) != "[A B]" {
		t.Errorf("*** ERROR *** unexpected publications : %v", got)
	}
}

func TestBuffer_PublishErrorIsNotRetried(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1"), connector)
	defer buffer.Close()
	conn := connector.Conn("rabbit1")
	conn.SimulateReady()
	conn.SetPublishError(errors.New("channel closed"))

	buffer.Enqueue(counter("A"))
	stats := buffer.Stats()
	if stats.PublishErrors != 1 || stats.Queued != 0 || stats.Published != 0 {
		t.Errorf("*** ERROR *** the message should be lost : %+v", stats)
	}

	conn.SetPublishError(nil)
	conn.SimulateReady()
	if len(conn.Publications()) != 0 {
		t.Error("*** ERROR *** a failed publish must not be retried")
	}
}

func TestBuffer_ReadyNotificationDuringPublish(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1", "rabbit2"), connector)
	defer buffer.Close()
	conn1, conn2 := connector.Conn("rabbit1"), connector.Conn("rabbit2")

	// the second connection becomes ready synchronously from within the first publish
	conn1.OnPublish(func(brokertest.Publication) {
		conn1.OnPublish(nil)
		conn2.SimulateReady()
	})
	for _, op := range []string{"A", "B", "C", "D"} {
		buffer.Enqueue(counter(op))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn1.SimulateReady()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("*** ERROR *** deadlock")
	}

	if total := len(connector.Publications()); total != 4 || buffer.Len() != 0 {
		t.Errorf("*** ERROR *** all messages should have been published : %d : queued = %d", total, buffer.Len())
	}
	if buffer.ReadyCount() != 2 {
		t.Errorf("*** ERROR *** both connections should be ready : %d", buffer.ReadyCount())
	}
}

func TestBuffer_Close(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, newConfig(0, "rabbit1", "rabbit2"), connector)
	buffer.Enqueue(counter("A"))
	buffer.Enqueue(counter("B"))

	buffer.Close()
	buffer.Close()
	buffer.Enqueue(counter("C"))
	for _, conn := range connector.Conns() {
		conn.SimulateReady()
		if !conn.Destroyed() {
			t.Errorf("*** ERROR *** conn should have been destroyed : %s", conn.Endpoint().Host)
		}
	}
	if len(connector.Publications()) != 0 {
		t.Errorf("*** ERROR *** nothing should be published after close : %d", len(connector.Publications()))
	}
	stats := buffer.Stats()
	if buffer.Accepting() || stats.Queued != 0 || stats.Discarded != 3 {
		t.Errorf("*** ERROR *** unexpected stats after close : %+v", stats)
	}
	for _, supervisor := range buffer.Supervisors() {
		if supervisor.State() != emission.Terminated {
			t.Errorf("*** ERROR *** supervisor should be terminated : %v", supervisor)
		}
	}
}

func TestBuffer_Noop(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	buffer := newBuffer(t, emission.Config{Style: emission.NOOP}, connector)
	buffer.Enqueue(counter("A"))
	if len(connector.Conns()) != 0 || buffer.Len() != 0 || !buffer.Noop() {
		t.Error("*** ERROR *** noop buffer must not connect nor queue")
	}
	if buffer.Stats().Discarded != 1 {
		t.Errorf("*** ERROR *** the message should be discarded : %+v", buffer.Stats())
	}
	if len(buffer.HealthChecks()) != 0 {
		t.Error("*** ERROR *** noop buffer has no health checks")
	}
	buffer.Close()

	buffer = newBuffer(t, emission.Config{Style: emission.NOOP}, nil)
	buffer.Enqueue(counter("A"))
	buffer.Close()
}

func TestNewBuffer_Errors(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	if _, err := emission.NewBuffer(newConfig(0), brokertest.NewConnector()); !errors.Is(err, emission.ErrEndpointsRequired) {
		t.Errorf("*** ERROR *** expected ErrEndpointsRequired : %v", err)
	}
	if _, err := emission.NewBuffer(newConfig(0, "rabbit1"), nil); err != emission.ErrConnectorRequired {
		t.Errorf("*** ERROR *** expected ErrConnectorRequired : %v", err)
	}

	config := newConfig(0)
	config.Style = emission.NATS
	config.NATS = emission.Endpoints{{Host: "nats://bad host:4222", Exchange: "sigint"}}
	connector := brokertest.NewConnector()
	if _, err := emission.NewBuffer(config, connector); !errors.Is(err, emission.ErrInvalidHost) {
		t.Errorf("*** ERROR *** expected ErrInvalidHost : %v", err)
	}
	if len(connector.Conns()) != 0 {
		t.Error("*** ERROR *** no connection should be attempted for an invalid config")
	}
}

func TestBuffer_JSONCodec(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	connector := brokertest.NewConnector()
	config := newConfig(0, "rabbit1")
	config.Codec = message.JSON
	buffer := newBuffer(t, config, connector)
	defer buffer.Close()
	connector.Conn("rabbit1").SimulateReady()

	buffer.Enqueue(counter("A"))
	publication := connector.Publications()[0]
	if publication.Options.ContentType != "application/json" {
		t.Errorf("*** ERROR *** unexpected content type : %v", publication.Options.ContentType)
	}
	if m, err := message.JSONCodec.Unmarshal(publication.Body); err != nil || m.Operation() != "A" {
		t.Errorf("*** ERROR *** body should be JSON : %v : %v", err, m)
	}
}
