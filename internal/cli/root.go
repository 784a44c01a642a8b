package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/config"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// NewRootCmd создаёт корневую команду genflow со всеми подкомандами.
// stdout получает данные, stderr — сообщения и логи.
func NewRootCmd(version string, stdout, stderr io.Writer) *cobra.Command {
	var jsonOutput bool
	var logLevel string
	var logFormat string
	var app *App

	rootCmd := &cobra.Command{
		Use:           "genflow",
		Short:         "GenFlow — declarative step flow runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}

			app = &App{
				Config: cfg,
				Out:    NewOutput(stdout, stderr, jsonOutput),
				Logger: telemetry.SetupLogger(stderr, cfg.LogLevel, cfg.LogFormat),
			}
			return nil
		},
	}

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or text (default from LOG_FORMAT)")

	appFn := func() *App { return app }

	rootCmd.AddCommand(
		NewComposeCmd(appFn),
		NewGraphCmd(appFn),
		NewRunCmd(appFn),
		NewReportCmd(appFn),
		NewExecutorCmd(appFn),
		NewEventsCmd(appFn),
	)

	return rootCmd
}
