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

// sigint-listener receives every emission published to the sigint exchanges and logs it.
//
//	sigint-listener --config sigint.yaml --queue sigint-listener --metrics-addr :9091 --log-level info
//
// Without a config file it listens on the sigint exchange of a local RabbitMQ.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/logging"
	metricshttp "github.com/oysterpack/sigint.go/pkg/metrics/http"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

// DefaultQueue is the durable AMQP queue bound to the exchange
const DefaultQueue = "sigint-listener"

var (
	configPath  string
	queue       string
	metricsAddr string
	logLevel    string
)

// DefaultConfig listens on a local RabbitMQ
func DefaultConfig() emission.Config {
	return emission.Config{
		Style: emission.AMQP,
		AMQP:  emission.Endpoints{{Host: "localhost", Exchange: "sigint"}},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sigint-listener",
		Short: "Logs every sigint emission",
		Long: `sigint-listener binds to the sigint exchange of every configured endpoint, decodes each emission
using the codec named by its content type and logs it.`,
		Args: cobra.NoArgs,
		RunE: run,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "sigint config file (.yaml, .yml or .json)")
	rootCmd.Flags().StringVar(&queue, "queue", DefaultQueue, "AMQP queue that is bound to the exchange")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to expose prometheus metrics on, e.g., :9091")
	rootCmd.Flags().StringVar(&logLevel, "log-level", string(logging.INFO), "Log level : debug, info, warn or error")
	return rootCmd
}

func run(cmd *cobra.Command, args []string) error {
	zerolog.SetGlobalLevel(logging.ParseLevel(logLevel))

	config := DefaultConfig()
	if configPath != "" {
		loaded, err := emission.LoadConfig(configPath)
		if err != nil {
			return err
		}
		config = *loaded
	}
	listener, err := NewListener(config, queue, logEmission)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		reporter := metricshttp.NewReporter(metricsAddr)
		if err := reporter.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			reporter.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return listener.Run(ctx)
}

func logEmission(e Emission) {
	m := e.Message
	event := EVENT_EMISSION.Log(logger.Info()).
		Str("host", e.Host).
		Str("type", string(m.Type())).
		Str("app", m.Source().AppName).
		Str("node", m.Source().NodeName).
		Time("timestamp", m.Timestamp())
	if m.Operation() != "" {
		event.Str("op", m.Operation())
	}
	event.Str("emission", m.String()).Msg("")
}
