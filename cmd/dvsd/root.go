// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Command dvsd runs the train-departure state engine, or issues a
// one-shot request against a running instance's client/injector
// channels (SPEC_FULL.md §3.6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dvsd",
		Short: "Real-time train-departure state engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "dvsd.yaml", "path to the YAML config file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newStationCommand())
	root.AddCommand(newTrainCommand())
	root.AddCommand(newInjectCommand())
	root.AddCommand(newStatusCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
