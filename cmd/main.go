/*
Copyright 2024 Bridgecast Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bridgecast/bridgecast"
	"github.com/bridgecast/bridgecast/config"
	"github.com/bridgecast/bridgecast/database"
	"github.com/bridgecast/bridgecast/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Bridgecast represents the CLI application, encapsulating the root Cobra command.
type Bridgecast struct {
	cmd *cobra.Command
}

// relayInstance holds the engine instance and its configuration, shared by
// the subcommands.
type relayInstance struct {
	relay *bridgecast.Bridgecast
	cnf   *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the engine before running
// any command.
func preRun(app *relayInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("bridgecast.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newRelay, err := setupRelay(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.relay = newRelay
		app.cnf = cnf

		return nil
	}
}

// setupRelay creates and initializes a new engine instance based on the
// provided configuration.
func setupRelay(cfg *config.Configuration) (*bridgecast.Bridgecast, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newRelay, err := bridgecast.NewBridgecast(db)
	if err != nil {
		return nil, fmt.Errorf("error creating relay: %v", err)
	}
	return newRelay, nil
}

// NewCLI creates the command-line interface for the relay.
func NewCLI() *Bridgecast {
	var configFile string
	b := &relayInstance{}

	var rootCmd = &cobra.Command{
		Use:   "bridgecast",
		Short: "Cross-community message relay",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./bridgecast.json", "Configuration file for the relay")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Bridgecast{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Bridgecast) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
