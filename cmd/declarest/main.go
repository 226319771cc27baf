// Command declarest runs the declarative REST engine with the example
// resources wired in.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/declarest/bootstrap"
	"github.com/artpar/declarest/config"
)

const shutdownTimeout = 15 * time.Second

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("declarest %s\n", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "declarest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return err
	}
	logger := bootstrap.NewLogger(cfg)

	var holder *config.Holder
	if _, statErr := os.Stat(configPath); statErr == nil {
		holder, err = config.NewHolder(configPath, logger)
		if err != nil {
			return err
		}
	} else {
		holder = config.NewStaticHolder(cfg, logger)
	}
	defer holder.Stop()

	if err := holder.WatchFile(); err != nil {
		logger.Warn().Err(err).Msg("config file watching disabled")
	}
	holder.WatchSignals()

	app, err := bootstrap.New(holder, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Shutdown(ctx)
}
