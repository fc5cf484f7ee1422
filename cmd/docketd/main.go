// Command docketd runs the docket daemon in the foreground without the CLI
// wrapper. It is intended for service managers that supervise the process
// directly.
package main

import (
	"context"
	"flag"
	"log"

	"docket/internal/config"
	"docket/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := daemonrun.Options{LogLevel: cfg.Logging.Level}
	if *logLevel != "" {
		opts.LogLevel = *logLevel
	}

	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		log.Fatalf("run daemon: %v", err)
	}
}
