// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xwquery

import (
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	errors "gopkg.in/src-d/go-errors.v1"
	yaml "gopkg.in/yaml.v2"

	"github.com/exonware/go-xwquery/sql"
	"github.com/exonware/go-xwquery/sql/analyzer"
	"github.com/exonware/go-xwquery/sql/generate"
	"github.com/exonware/go-xwquery/sql/parse"
)

// EnvPrefix is the prefix of the environment variables read by
// ConfigFromEnv.
const EnvPrefix = "XWQUERY_"

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.NewKind("invalid configuration: %s")

// Config of an Engine. The yaml names are also the names of the
// environment variables, upper cased and prefixed with XWQUERY_.
type Config struct {
	MaxTextLength         int     `yaml:"max_text_length"`
	MaxNestingDepth       int     `yaml:"max_nesting_depth"`
	MaxResultSize         int     `yaml:"max_result_size"`
	DefaultConversionMode string  `yaml:"default_conversion_mode"`
	PrettyPrint           bool    `yaml:"pretty_print"`
	EnableOptimizer       bool    `yaml:"enable_optimizer"`
	SlowQueryThresholdMs  float64 `yaml:"slow_query_threshold_ms"`
	QueryTimeoutSeconds   float64 `yaml:"query_timeout_seconds"`
	EnableQueryCaching    bool    `yaml:"enable_query_caching"`
	QueryCacheSize        int     `yaml:"query_cache_size"`
	SlowQueryLogSize      int     `yaml:"slow_query_log_size"`
	InSetThreshold        int     `yaml:"in_set_threshold"`
	MaxAnalysisIterations int     `yaml:"max_analysis_iterations"`
	Indent                string  `yaml:"indent"`
	DefaultDialect        string  `yaml:"default_dialect"`
	AssignIDs             bool    `yaml:"assign_ids"`
	StatsDir              string  `yaml:"stats_dir"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		MaxTextLength:         parse.DefaultMaxTextLength,
		MaxNestingDepth:       parse.DefaultMaxNesting,
		MaxResultSize:         sql.DefaultMaxResultSize,
		DefaultConversionMode: sql.DefaultConversionMode.String(),
		EnableOptimizer:       true,
		SlowQueryThresholdMs:  1000,
		QueryTimeoutSeconds:   30,
		EnableQueryCaching:    true,
		QueryCacheSize:        256,
		SlowQueryLogSize:      128,
		InSetThreshold:        sql.DefaultInSetThreshold,
		MaxAnalysisIterations: analyzer.DefaultMaxIterations,
		Indent:                generate.DefaultIndent,
		DefaultDialect:        "SQL",
	}
}

// LoadConfig reads a YAML file on top of the defaults and then applies
// the environment.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, ErrInvalidConfig.New(fmt.Sprintf("%s: %s", path, err))
	}

	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return c, c.Validate()
}

// ConfigFromEnv returns the defaults overridden by the environment.
func ConfigFromEnv() (*Config, error) {
	c := DefaultConfig()
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// ApplyEnv overrides the fields that have a variable in the given
// environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("yaml")
		key := EnvPrefix + strings.ToUpper(name)

		raw, ok := lookup(key)
		if !ok {
			continue
		}

		field := v.Field(i)
		var err error
		switch field.Kind() {
		case reflect.Int:
			var n int
			n, err = cast.ToIntE(raw)
			field.SetInt(int64(n))
		case reflect.Float64:
			var f float64
			f, err = cast.ToFloat64E(raw)
			field.SetFloat(f)
		case reflect.Bool:
			var b bool
			b, err = parseBool(raw)
			field.SetBool(b)
		case reflect.String:
			field.SetString(raw)
		}

		if err != nil {
			return ErrInvalidConfig.New(fmt.Sprintf("environment variable %s: %q: %s", key, raw, err))
		}

		logrus.WithField("variable", key).Debug("configuration overridden by the environment")
	}

	return nil
}

// parseBool also accepts yes, y and their negations.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return cast.ToBoolE(s)
}

// Validate rejects non positive limits and unknown modes or dialects.
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"max_text_length", float64(c.MaxTextLength)},
		{"max_nesting_depth", float64(c.MaxNestingDepth)},
		{"max_result_size", float64(c.MaxResultSize)},
		{"query_cache_size", float64(c.QueryCacheSize)},
		{"slow_query_log_size", float64(c.SlowQueryLogSize)},
		{"in_set_threshold", float64(c.InSetThreshold)},
		{"max_analysis_iterations", float64(c.MaxAnalysisIterations)},
		{"query_timeout_seconds", c.QueryTimeoutSeconds},
	}

	for _, p := range positive {
		if p.value <= 0 {
			return ErrInvalidConfig.New(p.name + " must be positive")
		}
	}

	if c.SlowQueryThresholdMs < 0 {
		return ErrInvalidConfig.New("slow_query_threshold_ms must not be negative")
	}

	if _, err := sql.ParseConversionMode(c.DefaultConversionMode); err != nil {
		return ErrInvalidConfig.New(err.Error())
	}

	if c.DefaultDialect != "" {
		if _, err := parse.DefaultRegistry.Canonical(c.DefaultDialect); err != nil {
			return ErrInvalidConfig.New(err.Error())
		}
	}

	return nil
}

// Mode returns the configured conversion mode.
func (c *Config) Mode() sql.ConversionMode {
	m, err := sql.ParseConversionMode(c.DefaultConversionMode)
	if err != nil {
		return sql.DefaultConversionMode
	}
	return m
}

// SlowQueryThreshold returns the slow query threshold as a duration.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs * float64(time.Millisecond))
}

// QueryTimeout returns the query timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds * float64(time.Second))
}

var (
	globalMu     sync.Mutex
	globalConfig *Config
)

// GlobalConfig returns the process wide configuration, loading it from the
// environment on first use. An invalid environment falls back to the
// defaults.
func GlobalConfig() *Config {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalConfig == nil {
		c, err := ConfigFromEnv()
		if err != nil {
			logrus.WithError(err).Warn("invalid configuration in the environment, using defaults")
			c = DefaultConfig()
		}
		globalConfig = c
	}
	return globalConfig
}

// SetGlobalConfig validates and replaces the process wide configuration.
func SetGlobalConfig(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}

	globalMu.Lock()
	globalConfig = c
	globalMu.Unlock()
	return nil
}

// ResetGlobalConfig drops the process wide configuration. It is loaded
// again on next use.
func ResetGlobalConfig() {
	globalMu.Lock()
	globalConfig = nil
	globalMu.Unlock()
}
