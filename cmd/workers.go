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
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bridgecast/bridgecast/config"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// initializeWorkerServer builds the broker consumer. Concurrency doubles as
// the prefetch bound: at most that many jobs are held unacknowledged while
// the delivery pools work through them.
func initializeWorkerServer(conf *config.Configuration, b *relayInstance) *asynq.Server {
	return asynq.NewServer(
		b.relay.Queue().RedisConnOpt(),
		asynq.Config{
			Concurrency: conf.Queue.Prefetch,
			Queues: map[string]int{
				conf.Queue.DeliveryQueue: 1,
			},
		},
	)
}

// workerCommands defines the "workers" command: it connects to the broker,
// starts the delivery and persistence pools, registers the consumer and
// serves the monitoring endpoint.
func workerCommands(b *relayInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start bridgecast delivery workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			if err := b.relay.StartWorkers(ctx); err != nil {
				log.Fatal("Error starting worker pools:", err)
			}

			srv := initializeWorkerServer(conf, b)

			mux := asynq.NewServeMux()
			mux.HandleFunc(conf.Queue.DeliveryQueue, b.relay.ProcessDeliveryJob)

			// Start asynqmon server for health checks and monitoring
			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: b.relay.Queue().RedisConnOpt(),
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if pending, err := b.relay.Queue().PendingJobs(); err == nil {
				log.Printf(" [*] %d delivery jobs pending on %s", pending, conf.Queue.DeliveryQueue)
			}

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
