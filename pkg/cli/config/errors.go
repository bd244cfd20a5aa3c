package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrInvalidConfig  = goerr.New("invalid configuration")
	ErrConfigNotFound = goerr.New("configuration file not found")
	ErrMissingOption  = goerr.New("required option is missing")
)
