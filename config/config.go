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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_DELIVERY_QUEUE  = "bridgecast:delivery"
	DEFAULT_MONITORING_PORT = "5002"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"BRIDGECAST_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"BRIDGECAST_REDIS_DNS"`
}

// QueueConfig controls the broker queue and the delivery worker pools.
// Prefetch bounds how many unacknowledged jobs may be in flight at once,
// independent of the pool sizes.
type QueueConfig struct {
	DeliveryQueue      string `json:"delivery_queue" envconfig:"BRIDGECAST_QUEUE_DELIVERY"`
	SendWorkers        int    `json:"send_workers" envconfig:"BRIDGECAST_QUEUE_SEND_WORKERS"`
	EditWorkers        int    `json:"edit_workers" envconfig:"BRIDGECAST_QUEUE_EDIT_WORKERS"`
	PersistWorkers     int    `json:"persist_workers" envconfig:"BRIDGECAST_QUEUE_PERSIST_WORKERS"`
	Prefetch           int    `json:"prefetch" envconfig:"BRIDGECAST_QUEUE_PREFETCH"`
	MaxDeliveryRetries int    `json:"max_delivery_retries" envconfig:"BRIDGECAST_QUEUE_MAX_DELIVERY_RETRIES"`
	MaxPublishRetries  int    `json:"max_publish_retries" envconfig:"BRIDGECAST_QUEUE_MAX_PUBLISH_RETRIES"`
	MonitoringPort     string `json:"monitoring_port" envconfig:"BRIDGECAST_QUEUE_MONITORING_PORT"`
}

// WindowConfig is one sliding-window rate limit: Limit entries per WindowSec.
type WindowConfig struct {
	Limit     int `json:"limit"`
	WindowSec int `json:"window_sec"`
}

type RateLimitConfig struct {
	Content   WindowConfig `json:"content"`
	User      WindowConfig `json:"user"`
	Violation WindowConfig `json:"violation"`
}

// RelayConfig carries the relay identity defaults: the designated system
// user for synthetic messages and the home destination group, whose invite
// links are always exempt from the invite filter.
type RelayConfig struct {
	HomeGroupID     int64  `json:"home_group_id" envconfig:"BRIDGECAST_RELAY_HOME_GROUP_ID"`
	SystemUserID    int64  `json:"system_user_id" envconfig:"BRIDGECAST_RELAY_SYSTEM_USER_ID"`
	SystemUsername  string `json:"system_username" envconfig:"BRIDGECAST_RELAY_SYSTEM_USERNAME"`
	SystemAvatarURL string `json:"system_avatar_url" envconfig:"BRIDGECAST_RELAY_SYSTEM_AVATAR_URL"`
	AutomuteMinutes int    `json:"automute_minutes" envconfig:"BRIDGECAST_RELAY_AUTOMUTE_MINUTES"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"BRIDGECAST_PROJECT_NAME"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Relay        RelayConfig      `json:"relay"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("bridgecast", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called bridgecast.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Bridgecast Relay"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Queue.DeliveryQueue == "" {
		cnf.Queue.DeliveryQueue = DEFAULT_DELIVERY_QUEUE
	}
	if cnf.Queue.SendWorkers <= 0 {
		cnf.Queue.SendWorkers = 50
	}
	if cnf.Queue.EditWorkers <= 0 {
		cnf.Queue.EditWorkers = 25
	}
	if cnf.Queue.PersistWorkers <= 0 {
		cnf.Queue.PersistWorkers = 10
	}
	if cnf.Queue.Prefetch <= 0 {
		cnf.Queue.Prefetch = 100
	}
	if cnf.Queue.MaxDeliveryRetries <= 0 {
		cnf.Queue.MaxDeliveryRetries = 5
	}
	if cnf.Queue.MaxPublishRetries <= 0 {
		cnf.Queue.MaxPublishRetries = 5
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DEFAULT_MONITORING_PORT
		log.Printf("Warning: Monitoring port not specified in config. Setting default port: %s", DEFAULT_MONITORING_PORT)
	}

	// Historical limits: 4 identical messages per 3s, 6 messages per user
	// per 3s, 5 filter violations per minute before an automute.
	if cnf.RateLimit.Content.Limit <= 0 {
		cnf.RateLimit.Content = WindowConfig{Limit: 4, WindowSec: 3}
	}
	if cnf.RateLimit.User.Limit <= 0 {
		cnf.RateLimit.User = WindowConfig{Limit: 6, WindowSec: 3}
	}
	if cnf.RateLimit.Violation.Limit <= 0 {
		cnf.RateLimit.Violation = WindowConfig{Limit: 5, WindowSec: 60}
	}

	if cnf.Relay.SystemUsername == "" {
		cnf.Relay.SystemUsername = "Thibault"
	}
	if cnf.Relay.AutomuteMinutes <= 0 {
		cnf.Relay.AutomuteMinutes = 5
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
