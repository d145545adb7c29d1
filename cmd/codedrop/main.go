package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/sokinpui/codedrop/cli"
	"github.com/sokinpui/codedrop/codedrop"
	"github.com/sokinpui/codedrop/internal/config"
	"github.com/sokinpui/codedrop/internal/logging"
	"github.com/sokinpui/codedrop/internal/server"
	"github.com/sokinpui/codedrop/internal/source"
	"github.com/sokinpui/codedrop/internal/tui"
	"github.com/sokinpui/codedrop/internal/ui"
	"github.com/sokinpui/codedrop/model"
)

func main() {
	flags, flagSet, err := cli.ParseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		// pflag already prints the error message.
		os.Exit(2)
	}

	cfg, err := config.Load(flags.ConfigFile, flagSet)
	if err != nil {
		ui.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// One-shot runs keep the log quiet unless asked, so the summary stays readable.
	if !flags.Serve && !flagSet.Changed("log-level") {
		cfg.Log.Level = "warn"
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	app, err := codedrop.New(cfg, codedrop.Options{Logger: logger})
	if err != nil {
		ui.Error("Failed to initialize application: %v", err)
		os.Exit(1)
	}
	defer app.Close()

	switch {
	case flags.Serve:
		err = serve(app, cfg, logger)
	case flagSet.Changed("history"):
		err = history(app, flags.History)
	case flags.NoAnimation:
		err = runPlain(app)
	default:
		err = runTUI(app)
	}
	if err != nil {
		ui.Error("Error: %v", err)
		app.Close()
		os.Exit(1)
	}
}

func serve(app *codedrop.App, cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(app, server.Options{
		Addr:         cfg.Server.Addr,
		AllowOrigins: cfg.Server.AllowOrigins,
		Gatherer:     app.Registry(),
		Log:          logging.Component(logger, "server"),
	})
	return srv.Run(ctx)
}

func history(app *codedrop.App, n int) error {
	entries, err := app.History(n)
	if err != nil {
		return err
	}
	ui.PrintHistory(os.Stdout, entries)
	return nil
}

func runPlain(app *codedrop.App) error {
	src := source.New()
	summary, err := app.Execute(context.Background(), src)
	if err != nil {
		var detailed *codedrop.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return err
	}
	if summary.Message != "" {
		ui.Info(summary.Message)
	}
	if summary.Disposition != nil {
		ui.PrintDisposition(os.Stdout, *summary.Disposition)
	}
	return nil
}

func runTUI(app *codedrop.App) error {
	src := source.New()
	m := tui.New(func() (model.Summary, error) {
		return app.Execute(context.Background(), src)
	})
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	if fm, ok := final.(tui.Model); ok && fm.Failed() {
		app.Close()
		os.Exit(1)
	}
	return nil
}
