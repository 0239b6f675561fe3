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

package http_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/oysterpack/sigint.go/pkg/metrics"
	metricshttp "github.com/oysterpack/sigint.go/pkg/metrics/http"
	"github.com/prometheus/client_golang/prometheus"
)

func TestReporter(t *testing.T) {
	metrics.ResetRegistry()
	defer metrics.ResetRegistry()

	counter := metrics.GetOrMustRegisterCounterVec(&metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{Namespace: "sigint", Name: "reporter_test", Help: "reporter test counter"},
		Labels:      []string{"app"},
	})
	counter.WithLabelValues("test").Inc()

	reporter := metricshttp.NewReporter("127.0.0.1:0")
	if err := reporter.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reporter.Shutdown(ctx)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s%s", reporter.Addr(), metricshttp.MetricsPath))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `sigint_reporter_test{app="test"} 1`) {
		t.Errorf("*** ERROR *** counter was not reported : %s", body)
	}
}
