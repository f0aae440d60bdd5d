// Package logger builds the service-wide zap logger.
package logger

import (
	"go.uber.org/zap"
)

// New creates a zap logger for the given environment. Production gets JSON
// output at info level; everything else gets the development console encoder
// at debug level.
func New(appEnv, serviceName string) (*zap.Logger, error) {
	var cfg zap.Config
	if appEnv == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", serviceName)), nil
}
