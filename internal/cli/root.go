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

package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	xwquery "github.com/exonware/go-xwquery"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	Config   string
	LogLevel string
	Mode     string
	Pretty   bool
	StatsDir string

	engine *xwquery.Engine
}

// Engine returns the engine built from the loaded configuration.
func (o *RootOptions) Engine() *xwquery.Engine {
	return o.engine
}

// NewRootCommand creates the root command of the xwquery CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "xwquery",
		Short:         "Translate and run queries across dialects",
		Long:          "Parse queries written in SQL, XPath, MongoDB, KQL and other dialects, translate them between dialects and run them against local data.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.engine == nil {
				return nil
			}
			return opts.engine.Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVarP(&opts.Mode, "mode", "m", "", "conversion mode (strict|flexible|lenient)")
	cmd.PersistentFlags().BoolVar(&opts.Pretty, "pretty", false, "pretty print the output")
	cmd.PersistentFlags().StringVar(&opts.StatsDir, "stats-dir", "", "directory of the persisted table statistics")

	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewDetectCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewDialectsCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

func (o *RootOptions) setup() error {
	level, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %s", o.LogLevel, err)
	}
	logrus.SetLevel(level)

	var cfg *xwquery.Config
	if o.Config != "" {
		cfg, err = xwquery.LoadConfig(o.Config)
	} else {
		cfg, err = xwquery.ConfigFromEnv()
	}
	if err != nil {
		return err
	}

	if o.Mode != "" {
		cfg.DefaultConversionMode = o.Mode
	}
	if o.Pretty {
		cfg.PrettyPrint = true
	}
	if o.StatsDir != "" {
		cfg.StatsDir = o.StatsDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.engine = xwquery.New(cfg)
	return nil
}
