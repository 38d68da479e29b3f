package logging

import (
	"go.uber.org/zap"
)

// New creates the service logger. Production gets JSON output, anything else
// gets the console encoder with development defaults.
func New(environment string) (*zap.Logger, error) {
	if environment == "production" {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	return zap.NewDevelopment()
}
