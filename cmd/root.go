// Copyright 2024 Google Inc. All Rights Reserved.
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

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcfuse/mcfs/cfg"
	"github.com/mcfuse/mcfs/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcfs mount_point",
	Short: "Mount a running Minecraft game as a FUSE filesystem",
	Long: `mcfs exposes a running game's player, world and block state as a
live, read/write directory tree. It does not itself embed a game server:
it connects to one over a local socket and reflects whatever state
comes back.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		mountPoint, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving mount point: %w", err)
		}

		var config cfg.Config
		if err := viper.Unmarshal(&config, cfg.UnmarshalOptions()...); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
		if err := cfg.ValidateConfig(&config); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := logger.Init(config); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		return mountAndJoin(cmd.Context(), mountPoint, &config)
	},
}

// Execute runs the root command. Exit status is non-zero on argument
// error or mount failure; on success the process blocks until unmount
// and Execute returns nil.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")

	if err := cfg.BindFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		// A missing config file is not an error: flags and defaults
		// still apply.
		_ = viper.ReadInConfig()
	}
}
