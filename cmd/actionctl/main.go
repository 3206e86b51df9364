package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/goliatone/go-action/config"
)

const configEnv = "ACTIONCTL_CONFIG"

type cli struct {
	Run      runCmd      `cmd:"" help:"Simulate owners invoking actions and print the outcomes."`
	Schedule scheduleCmd `cmd:"" help:"Run the configured schedules for a while."`
	Actions  actionsCmd  `cmd:"" help:"List registered actions."`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "actionctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(os.Getenv(configEnv))
	if err != nil {
		return err
	}

	a, err := newApp(cfg, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			a.logger.Error("shutdown incomplete", "error", err)
		}
	}()

	dynamic, err := a.exposed.CLIOptions()
	if err != nil {
		return err
	}

	var root cli
	parser, err := kong.New(&root, append(dynamic,
		kong.Name("actionctl"),
		kong.Description("Drive go-action controllers from the command line. Config is read from $"+configEnv+"."),
		kong.UsageOnError(),
		kong.Bind(a),
	)...)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	a.serveMetrics()
	return kctx.Run()
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}
