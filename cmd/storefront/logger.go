package main

import (
	"go.uber.org/zap"
)

// newLogger builds the root logger. format "console" selects the
// human-readable development encoder; anything else logs JSON.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build(zap.Fields(zap.String("service", "storefront-go")))
}
