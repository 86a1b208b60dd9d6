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

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"github.com/railfeed/dvsd/internal/config"
)

const oneShotTimeout = 5 * time.Second

// dial connects to the daemon's NATS broker for a single request/reply
// round trip, distinct from the long-lived subscribe connection `serve`
// keeps open (SPEC_FULL.md §3.6).
func dial() (*nats.Conn, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, errors.Annotate(err, "loading configuration")
	}
	nc, err := nats.Connect(cfg.Bindings.DVSServer)
	if err != nil {
		return nil, nil, errors.Annotate(err, "connecting to NATS")
	}
	return nc, cfg, nil
}

func newStationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "station <CODE>",
		Short: "Print every train currently known at a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, cfg, err := dial()
			if err != nil {
				return err
			}
			defer nc.Close()
			reply, err := nc.Request(cfg.Bindings.ClientServer, []byte("station/"+args[0]), oneShotTimeout)
			if err != nil {
				return errors.Annotate(err, "request failed")
			}
			fmt.Println(string(reply.Data))
			return nil
		},
	}
}

func newTrainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "train <NUMBER>",
		Short: "Print every station currently holding a train",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, cfg, err := dial()
			if err != nil {
				return err
			}
			defer nc.Close()
			reply, err := nc.Request(cfg.Bindings.ClientServer, []byte("trein/"+args[0]), oneShotTimeout)
			if err != nil {
				return errors.Annotate(err, "request failed")
			}
			fmt.Println(string(reply.Data))
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the daemon's counters and downtime state",
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, cfg, err := dial()
			if err != nil {
				return err
			}
			defer nc.Close()
			reply, err := nc.Request(cfg.Bindings.ClientServer, []byte("status"), oneShotTimeout)
			if err != nil {
				return errors.Annotate(err, "request failed")
			}
			fmt.Println(string(reply.Data))
			return nil
		},
	}
}

func newInjectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inject <file.json>",
		Short: "Send a synthetic train request to the injector channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Annotate(err, "reading request file")
			}
			nc, cfg, err := dial()
			if err != nil {
				return err
			}
			defer nc.Close()
			reply, err := nc.Request(cfg.Bindings.InjectorServer, body, oneShotTimeout)
			if err != nil {
				return errors.Annotate(err, "request failed")
			}
			fmt.Println(string(reply.Data))
			return nil
		},
	}
}
