package backend

import (
	"fmt"
	"os"
	"strconv"

	"financeiro/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	return Config{
		APIBaseURL: appConfig.APIBaseURL,
		APITimeout: appConfig.APITimeout,

		ProjectionMonths:   appConfig.ProjectionMonths,
		AggregateCacheTTL:  appConfig.AggregateCacheTTL,
		AggregateCacheSize: appConfig.AggregateCacheSize,

		JournalDBPath: appConfig.JournalDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Origin: defaultOrigin(),
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if c.AggregateCacheSize < 1 {
		return fmt.Errorf("aggregate cache size must be at least 1")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	// Journal is optional, so an empty path is fine
	return nil
}

// defaultOrigin identifies this process on the mutation exchange.
func defaultOrigin() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return ""
	}
	return host + ":" + strconv.Itoa(os.Getpid())
}
