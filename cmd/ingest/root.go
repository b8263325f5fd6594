package main

import (
	"errors"
	"fmt"

	"portfolio-rag/config"
	"portfolio-rag/pkg/logger"

	"github.com/spf13/cobra"
)

const (
	exitFailed        = 1
	exitConfiguration = 2
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "ingest",
	Short:         "Index resume documents into the vector store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout is reserved for the summary
		logger.SetOutput(cmd.ErrOrStderr())
		if err := config.Init(configPath); err != nil {
			return &exitError{code: exitConfiguration, err: err}
		}
		level := string(config.Cfg.LogLevel)
		if logLevel != "" {
			level = logLevel
		}
		if err := logger.SetLevel(level); err != nil {
			return &exitError{code: exitConfiguration, err: err}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level from the config")
}

func execute() int {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return codeOf(err)
}

func codeOf(err error) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	if errors.Is(err, config.ErrConfiguration) {
		return exitConfiguration
	}
	return exitFailed
}

