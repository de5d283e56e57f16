package config

import "github.com/abdul-hamid-achik/flowspec/packages/pool"

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		TimeoutMs:    30_000,
		RetryTimes:   0,
		RetryDelayMs: 1_000,
		PoolCapacity: pool.DefaultCapacity,
		Concurrency:  1,
		Reporters:    []string{"console"},
	}
}
