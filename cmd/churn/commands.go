package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/churnscope/churn"
	"github.com/YuminosukeSato/churnscope/config"
	"github.com/YuminosukeSato/churnscope/datasets"
	"github.com/YuminosukeSato/churnscope/harness"
	"github.com/YuminosukeSato/churnscope/pkg/errors"
	"github.com/YuminosukeSato/churnscope/pkg/log"
)

const (
	loggerName    = "root"
	logFilePrefix = "churn_library"
)

type rootOptions struct {
	configPath string
	dataPath   string
	logLevel   string
	console    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "churn",
		Short:         "Customer churn pipeline and its verification harness",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.verify(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	flags.StringVar(&opts.dataPath, "data", "", "override the input CSV path")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")
	flags.BoolVar(&opts.console, "console", false, "mirror the run log to stderr")

	root.AddCommand(
		newVerifyCmd(opts),
		newRunCmd(opts),
		newSynthCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dataPath != "" {
		cfg.Paths.Data = o.dataPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

// openRunLogger creates the run's log file. The caller closes it.
func (o *rootOptions) openRunLogger(cmd *cobra.Command, cfg *config.Config) (*log.RunLogger, error) {
	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", cfg.LogLevel)
	}
	ropts := []log.RunLoggerOption{log.WithLevel(level), log.WithFilePrefix(logFilePrefix)}
	if o.console {
		ropts = append(ropts, log.WithConsole(cmd.ErrOrStderr()))
	}
	logger, err := log.NewRunLogger(cfg.Paths.Logs, loggerName, time.Now(), ropts...)
	if err != nil {
		return nil, err
	}
	logger.RouteWarnings()
	return logger, nil
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run every verification step in order and stop at the first failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.verify(cmd)
		},
	}
}

// verify runs the harness; it backs both `churn verify` and a bare `churn`.
func (o *rootOptions) verify(cmd *cobra.Command) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, err := o.openRunLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logger.Close(); err == nil {
			err = cerr
		}
	}()

	runID := uuid.NewString()
	hopts := []harness.Option{harness.WithRunID(runID)}
	if cfg.Paths.Metrics != "" {
		hopts = append(hopts, harness.WithMetrics(harness.NewMetrics(runID)))
	}
	rep, runErr := harness.New(cfg, logger, hopts...).Run(cmd.Context())

	out := cmd.OutOrStdout()
	for _, s := range rep.Steps {
		status := "PASS"
		if !s.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%-28s %s  checks=%d  %s\n", s.Step, status, s.Checks, s.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "state: %s  run: %s  log: %s\n", rep.State, rep.RunID, logger.Path())
	return runErr
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run import, EDA, feature engineering and training without assertions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.openRunLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := logger.Close(); err == nil {
					err = cerr
				}
			}()

			result, err := churn.Run(cmd.Context(), cfg, logger.With(log.RunIDKey, uuid.NewString()))
			if err != nil {
				logger.Error("pipeline failed", err)
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range []churn.ModelResult{result.Forest, result.Logistic} {
				fmt.Fprintf(out, "%-20s train AUC %.3f  test AUC %.3f  test accuracy %.3f  %s\n",
					m.Name, m.TrainAUC, m.TestAUC, m.TestReport.Accuracy, m.ModelPath)
			}
			fmt.Fprintf(out, "best forest params: %v (cv accuracy %.3f)\n", result.BestParams, result.CVScore)
			return nil
		},
	}
}

func newSynthCmd(opts *rootOptions) *cobra.Command {
	var (
		rows int
		seed int64
		out  string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic bank-churn dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows <= 0 {
				return errors.NewValidationError("rows", "must be positive", rows)
			}
			if out == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				out = cfg.Paths.Data
			}
			if err := datasets.WriteCSV(datasets.MakeBankChurn(rows, seed), out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", rows, filepath.Clean(out))
			return nil
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 10127, "number of customers")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV (default: the configured data path)")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
