package sqlstore

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the YAML-loadable store configuration.
type Config struct {
	// URI of the database. The scheme prefix selects the driver.
	URI string `yaml:"uri"`
	// WriteConcurrency is the writer goroutine count (default 8).
	WriteConcurrency int `yaml:"write_concurrency,omitempty"`
	// PoolSize is the connection pool size (default cpus + writers).
	PoolSize int `yaml:"pool_size,omitempty"`
	// QueueDepth bounds the asynchronous write buffer (default 1024).
	QueueDepth int `yaml:"queue_depth,omitempty"`
}

// LoadConfig reads and strictly parses a YAML Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	var buf, err = ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err = yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config")
	}
	if cfg.URI == "" {
		return cfg, errors.New("config names no database uri")
	}
	return cfg, nil
}

// Options maps the Config onto store Options.
func (c Config) Options() Options {
	return Options{
		WriteConcurrency: c.WriteConcurrency,
		PoolSize:         c.PoolSize,
		QueueDepth:       c.QueueDepth,
	}
}
