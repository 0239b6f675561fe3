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

package emission

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oysterpack/sigint.go/pkg/broker"
	"github.com/oysterpack/sigint.go/pkg/broker/amqp"
	"github.com/oysterpack/sigint.go/pkg/broker/nats"
	"github.com/oysterpack/sigint.go/pkg/message"
	"go.yaml.in/yaml/v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Style selects the broker capability
type Style string

// styles
const (
	AMQP Style = "amqp"
	NATS Style = "nats"
	// NOOP discards every message and never connects
	NOOP Style = "noop"
)

// DefaultMaxQueueSize is the buffer capacity applied when maxQueueSize is not set
const DefaultMaxQueueSize = 1000

// Config configures the emission Buffer
type Config struct {
	Style        Style  `yaml:"style" json:"style"`
	MaxQueueSize int    `yaml:"maxQueueSize" json:"maxQueueSize"`
	NodeName     string `yaml:"node_name" json:"node_name"`
	AppName      string `yaml:"app_name" json:"app_name"`
	// Codec is the body codec name : msgpack (default) or json
	Codec string `yaml:"codec" json:"codec"`

	AMQP Endpoints `yaml:"amqp" json:"amqp"`
	NATS Endpoints `yaml:"nats" json:"nats"`
}

// Endpoints is configured either as a single endpoint or as a list of endpoints
type Endpoints []broker.Endpoint

// UnmarshalYAML accepts a mapping or a sequence of mappings
func (a *Endpoints) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		var endpoint broker.Endpoint
		if err := value.Decode(&endpoint); err != nil {
			return err
		}
		*a = Endpoints{endpoint}
		return nil
	case yaml.SequenceNode:
		var endpoints []broker.Endpoint
		if err := value.Decode(&endpoints); err != nil {
			return err
		}
		*a = endpoints
		return nil
	default:
		return fmt.Errorf("endpoints must be a mapping or a sequence : line %d", value.Line)
	}
}

// UnmarshalJSON accepts an object or an array of objects
func (a *Endpoints) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var endpoints []broker.Endpoint
		if err := json.Unmarshal(data, &endpoints); err != nil {
			return err
		}
		*a = endpoints
		return nil
	}
	var endpoint broker.Endpoint
	if err := json.Unmarshal(data, &endpoint); err != nil {
		return err
	}
	*a = Endpoints{endpoint}
	return nil
}

// SetDefaults applies the default capacity and codec
func (c *Config) SetDefaults() {
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.Codec == "" {
		c.Codec = message.MSGPACK
	}
}

// Endpoints returns the endpoints for the configured style. noop has none.
func (c *Config) Endpoints() []broker.Endpoint {
	switch c.Style {
	case AMQP:
		return c.AMQP
	case NATS:
		return c.NATS
	default:
		return nil
	}
}

// Validate validates the configuration and returns an error if invalid.
// A noop configuration only requires a valid codec and queue size.
func (c *Config) Validate() error {
	switch c.Style {
	case AMQP, NATS, NOOP:
	default:
		return fmt.Errorf("%w : %q", ErrUnknownStyle, c.Style)
	}
	if c.MaxQueueSize < 0 {
		return fmt.Errorf("%w : %d", ErrInvalidMaxQueueSize, c.MaxQueueSize)
	}
	if c.Codec != "" {
		if _, err := message.CodecByName(c.Codec); err != nil {
			return err
		}
	}
	if c.Style == NOOP {
		return nil
	}
	if strings.TrimSpace(c.NodeName) == "" {
		return ErrNodeNameRequired
	}
	if strings.TrimSpace(c.AppName) == "" {
		return ErrAppNameRequired
	}
	endpoints := c.Endpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("%w : %s", ErrEndpointsRequired, c.Style)
	}
	for i, endpoint := range endpoints {
		if strings.TrimSpace(endpoint.Host) == "" || strings.TrimSpace(endpoint.Exchange) == "" {
			return fmt.Errorf("%w : %s[%d]", ErrInvalidEndpoint, c.Style, i)
		}
		validateHost := amqp.ValidateHost
		if c.Style == NATS {
			validateHost = nats.ValidateHost
		}
		if err := validateHost(endpoint.Host); err != nil {
			return fmt.Errorf("%w : %s[%d] : %v", ErrInvalidHost, c.Style, i, err)
		}
	}
	return nil
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON (.json) config file, applies defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("%w : %s", ErrUnsupportedConfigFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s : %w", path, err)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s : %w", path, err)
	}
	return config, nil
}
