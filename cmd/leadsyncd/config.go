package main

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/leadsync"
)

// Config is the daemon configuration file.
type Config struct {
	LoggingLevel string `yaml:"logging" default:"info"`

	// NATSURL is the NATS server the node coordinates through.
	NATSURL string `yaml:"natsUrl" default:"nats://127.0.0.1:4222"`

	// ListenAddr serves the peer endpoints under the path of Node.BaseURL.
	ListenAddr string `yaml:"listenAddr" default:":8983"`

	// MetricsAddr serves /metrics. Empty disables it.
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`

	Node leadsync.Config `yaml:"node"`

	// Cores are the in-memory replicas hosted by this node.
	Cores []CoreConfig `yaml:"cores"`
}

// CoreConfig describes one hosted replica.
type CoreConfig struct {
	Collection   string `yaml:"collection"`
	Shard        string `yaml:"shard"`
	CoreName     string `yaml:"coreName"`
	CoreNodeName string `yaml:"coreNodeName"`
}

func (c CoreConfig) validate() error {
	if c.Collection == "" || c.Shard == "" {
		return fmt.Errorf("core %q: collection and shard are required", c.CoreName)
	}
	if c.CoreName == "" || c.CoreNodeName == "" {
		return fmt.Errorf("core of %s/%s: coreName and coreNodeName are required", c.Collection, c.Shard)
	}

	return nil
}

func loadConfigFromFile(file string) (*Config, error) {
	if file == "" {
		file = "config.yaml"
	}

	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	type plain Config

	if err := yaml.Unmarshal(yamlFile, (*plain)(config)); err != nil {
		return nil, err
	}

	for _, core := range config.Cores {
		if err := core.validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}
