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
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exonware/go-xwquery/sql"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)
	c := DefaultConfig()
	require.NoError(c.Validate())
	require.Equal(1000000, c.MaxTextLength)
	require.Equal(100, c.MaxNestingDepth)
	require.Equal(sql.Flexible, c.Mode())
	require.Equal(time.Second, c.SlowQueryThreshold())
	require.Equal(30*time.Second, c.QueryTimeout())
	require.Equal("SQL", c.DefaultDialect)
}

func TestConfigApplyEnv(t *testing.T) {
	require := require.New(t)

	c := DefaultConfig()
	require.NoError(c.ApplyEnv(env(map[string]string{
		"XWQUERY_MAX_RESULT_SIZE":           "10",
		"XWQUERY_PRETTY_PRINT":              "yes",
		"XWQUERY_ENABLE_OPTIMIZER":          "false",
		"XWQUERY_DEFAULT_CONVERSION_MODE":   "strict",
		"XWQUERY_SLOW_QUERY_THRESHOLD_MS":   "2.5",
		"XWQUERY_UNRELATED_SETTING_IGNORED": "1",
	})))

	require.Equal(10, c.MaxResultSize)
	require.True(c.PrettyPrint)
	require.False(c.EnableOptimizer)
	require.Equal(sql.Strict, c.Mode())
	require.Equal(2500*time.Microsecond, c.SlowQueryThreshold())

	err := c.ApplyEnv(env(map[string]string{"XWQUERY_MAX_RESULT_SIZE": "many"}))
	require.True(ErrInvalidConfig.Is(err))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"max text length", func(c *Config) { c.MaxTextLength = 0 }},
		{"max result size", func(c *Config) { c.MaxResultSize = -1 }},
		{"cache size", func(c *Config) { c.QueryCacheSize = 0 }},
		{"timeout", func(c *Config) { c.QueryTimeoutSeconds = 0 }},
		{"slow threshold", func(c *Config) { c.SlowQueryThresholdMs = -1 }},
		{"mode", func(c *Config) { c.DefaultConversionMode = "sloppy" }},
		{"dialect", func(c *Config) { c.DefaultDialect = "Klingon" }},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			require.True(t, ErrInvalidConfig.Is(c.Validate()))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	require := require.New(t)

	dir, err := ioutil.TempDir("", "xwquery")
	require.NoError(err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(ioutil.WriteFile(path, []byte("max_result_size: 42\nindent: \"    \"\npretty_print: true\n"), 0644))

	c, err := LoadConfig(path)
	require.NoError(err)
	require.Equal(42, c.MaxResultSize)
	require.Equal("    ", c.Indent)
	require.True(c.PrettyPrint)
	require.Equal(256, c.QueryCacheSize)

	require.NoError(ioutil.WriteFile(path, []byte("no_such_option: 1\n"), 0644))
	_, err = LoadConfig(path)
	require.True(ErrInvalidConfig.Is(err))
}

func TestGlobalConfig(t *testing.T) {
	require := require.New(t)
	defer ResetGlobalConfig()

	c := DefaultConfig()
	c.MaxResultSize = 7
	require.NoError(SetGlobalConfig(c))
	require.Equal(7, GlobalConfig().MaxResultSize)

	bad := DefaultConfig()
	bad.MaxResultSize = 0
	require.Error(SetGlobalConfig(bad))
	require.Equal(7, GlobalConfig().MaxResultSize)

	ResetGlobalConfig()
	require.NotNil(GlobalConfig())
}
