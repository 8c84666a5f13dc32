package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/mohammad-safakhou/leaksight/config"
	"github.com/mohammad-safakhou/leaksight/internal/logger"
	"github.com/mohammad-safakhou/leaksight/internal/pipeline"
	"github.com/mohammad-safakhou/leaksight/internal/report"
	"github.com/mohammad-safakhou/leaksight/internal/runtime"
	"github.com/spf13/cobra"
)

var version = "2.0.0"

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var (
		cfgPath  string
		limit    int
		output   string
		logLevel string
		noColor  bool
	)
	root := &cobra.Command{
		Use:          "leaksight <target>",
		Short:        "Search IntelX leaks for a target and summarize them with an LLM",
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("limit") {
				cfg.Run.Limit = limit
			}
			if flags.Changed("output") {
				cfg.Run.Output = output
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if noColor {
				cfg.Run.Color = "never"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, args[0], cmd.OutOrStdout(), os.Stderr)
		},
	}
	f := root.Flags()
	f.StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/leaksight.yaml or ./leaksight.yaml)")
	f.IntVar(&limit, "limit", pipeline.DefaultLimit, "records to analyze (0 = all listed)")
	f.StringVarP(&output, "output", "o", config.OutputText, "output format: text, json or yaml")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.BoolVar(&noColor, "no-color", false, "disable colored output")
	return root
}

func run(ctx context.Context, cfg *config.Config, target string, stdout, stderr io.Writer) error {
	log := logger.New(stderr, cfg.Log.Level, cfg.Log.Format)

	tel, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown", "err", err)
		}
	}()

	color := useColor(cfg.Run.Color, stdout)
	rep, err := report.New(cfg.Run.Output, stdout, color)
	if err != nil {
		return err
	}
	if t, ok := rep.(*report.Text); ok {
		t.Banner(version)
	}

	p, err := pipeline.Build(cfg, rep, tel, log)
	if err != nil {
		return err
	}
	// A failed search or an interrupted loop is reported, not returned.
	if _, err := p.Run(ctx, target); err != nil {
		log.Error("write report", "err", err)
	}
	return nil
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
