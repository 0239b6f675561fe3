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

// sigint-sample generates sample emissions from simulated applications.
//
//	sigint-sample --config sigint.yaml --interval 1s --ttl 100s --metrics-addr :9090 --log-level info
//
// Without a config file the emissions are published to the sigint exchange on a local RabbitMQ.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/emission"
	"github.com/oysterpack/sigint.go/pkg/logging"
	metricshttp "github.com/oysterpack/sigint.go/pkg/metrics/http"
	"github.com/oysterpack/sigint.go/pkg/sigint"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type pkgobject struct{}

var logger = logging.NewPackageLogger(pkgobject{})

var (
	configPath  string
	interval    time.Duration
	ttl         time.Duration
	metricsAddr string
	logLevel    string
)

// DefaultConfig publishes to a local RabbitMQ
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
		Use:   "sigint-sample",
		Short: "Generates sample sigint emissions",
		Long: `sigint-sample simulates applications running on several nodes. Each node announces itself,
then emits counters and timers until its random time to live expires, at which point it is restarted.`,
		Args: cobra.NoArgs,
		RunE: run,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "sigint config file (.yaml, .yml or .json)")
	rootCmd.Flags().DurationVar(&interval, "interval", time.Second, "Base interval between emissions")
	rootCmd.Flags().DurationVar(&ttl, "ttl", 100*time.Second, "Max time a simulated application runs before it is restarted")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to expose prometheus metrics on, e.g., :9090")
	rootCmd.Flags().StringVar(&logLevel, "log-level", string(logging.INFO), "Log level : debug, info, warn or error")
	return rootCmd
}

func run(cmd *cobra.Command, args []string) error {
	zerolog.SetGlobalLevel(logging.ParseLevel(logLevel))

	config, err := loadConfig(configPath)
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
	return runSampler(ctx, config, sigint.Connector(config.Style), interval, ttl)
}

func loadConfig(path string) (emission.Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	config, err := emission.LoadConfig(path)
	if err != nil {
		return emission.Config{}, err
	}
	return *config, nil
}

// runSampler runs the sample apps until ctx is done
func runSampler(ctx context.Context, config emission.Config, connector broker.Connector, interval, ttl time.Duration) error {
	sampler := NewSampler(config, connector, SampleApps, interval, ttl)
	sampler.Start()
	logger.Info().Str("style", string(config.Style)).Dur("interval", interval).Dur("ttl", ttl).Msg("sampler started")
	select {
	case <-ctx.Done():
	case <-sampler.tomb.Dead():
	}
	err := sampler.Stop()
	logger.Info().Err(err).Msg("sampler stopped")
	return err
}
