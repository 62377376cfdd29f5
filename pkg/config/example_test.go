package config_test

import (
	"fmt"

	"github.com/wonny/riskdash/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Upstream: %s\n", cfg.Upstream.BaseURL)
	fmt.Printf("Stream: %s (reconnect every %s)\n", cfg.Stream.URL, cfg.Stream.ReconnectDelay)
}
