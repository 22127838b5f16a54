// Command shuttled runs the shuttle transfer daemon in the foreground.
// Most deployments launch it through `shuttle daemon start` instead.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"shuttle/internal/config"
	"shuttle/internal/daemonrun"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, path, exists, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "config file %s not found; using defaults\n", path)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: cfg.Logging.Level,
	}); err != nil {
		log.Fatalf("shuttled: %v", err)
	}
}
