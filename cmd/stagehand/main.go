// Command stagehand runs the engine headless with the modules listed in
// its configuration file
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/najoast/stagehand/bootstrap"
	"github.com/najoast/stagehand/config"
	"github.com/najoast/stagehand/logging"
)

func main() {
	configPath := flag.String("config", "", "config file (.yaml, .toml or .json); searched for when empty")
	validate := flag.Bool("validate", false, "validate the configuration and exit")
	watch := flag.Bool("watch", true, "reload the configuration file when it changes")
	flag.Parse()

	if err := run(*configPath, *validate, *watch); err != nil {
		fmt.Fprintln(os.Stderr, "stagehand:", err)
		os.Exit(1)
	}
}

func run(configPath string, validate, watch bool) error {
	loader := config.NewLoader()
	configPath, err := loader.Resolve(configPath)
	if err != nil {
		return err
	}
	cfg, err := loader.Load(configPath)
	if err != nil {
		return err
	}
	if validate {
		fmt.Printf("configuration ok: %d module(s)\n", len(cfg.Modules))
		return nil
	}

	logger, closer, err := logging.Configure(cfg.App, cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := bootstrap.Options{
		Config: cfg,
		Logger: logger,
	}
	if watch && configPath != "" {
		opts.ConfigFile = configPath
	}

	app, err := bootstrap.NewApplication(opts)
	if err != nil {
		return err
	}
	return app.Run(context.Background())
}
