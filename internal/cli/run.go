package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/engine"
	"github.com/shaiso/Genflow/internal/mq"
	"github.com/shaiso/Genflow/internal/orchestrator"
	"github.com/shaiso/Genflow/internal/steps"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// pushJob — имя job в Pushgateway.
const pushJob = "genflow"

// NewRunCmd создаёт команду run: выполнение flow из файла.
func NewRunCmd(appFn func() *App) *cobra.Command {
	var workers int
	var save bool
	var toolsFile string

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Compose, build and execute a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()
			ctx := cmd.Context()

			if !cmd.Flags().Changed("workers") {
				workers = app.Config.Workers
			}

			schemas, err := LoadToolSchemas(toolsFile)
			if err != nil {
				return err
			}

			executors, err := app.Executors()
			if err != nil {
				return err
			}
			defer executors.Close()

			dispatcher, err := steps.DefaultDispatcher(app.Capabilities(executors, schemas))
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			cfg := orchestrator.Config{
				Resolver:   engine.DirResolver{},
				Dispatcher: dispatcher,
				Workers:    workers,
				Logger:     app.Logger,
				Metrics:    telemetry.NewMetrics(registry),
			}

			if app.Config.RabbitMQURL != "" {
				conn, err := mq.NewConnection(app.Config.RabbitMQURL, app.Logger)
				if err != nil {
					return err
				}
				defer conn.Close()

				if err := mq.SetupTopology(conn); err != nil {
					return err
				}
				cfg.Events = mq.NewPublisher(conn, app.Logger)
			}

			eng, err := orchestrator.New(cfg)
			if err != nil {
				return err
			}

			report, runErr := eng.Execute(ctx, args[0])

			if err := printReport(app.Out, report); err != nil {
				return err
			}

			if save {
				if err := saveReport(cmd, app, report); err != nil {
					return err
				}
			}

			if app.Config.PushgatewayURL != "" {
				if err := telemetry.Push(ctx, app.Config.PushgatewayURL, pushJob, registry); err != nil {
					app.Out.Warn(err.Error())
				}
			}

			if runErr != nil {
				return runErr
			}
			if !report.Succeeded() {
				return fmt.Errorf("run %s: %d step(s) failed", report.ID, len(report.FailedSteps()))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of steps executed in parallel (default from GENFLOW_WORKERS)")
	cmd.Flags().BoolVar(&save, "save", false, "Save the run report (DB_URL or SQLITE_PATH)")
	cmd.Flags().StringVar(&toolsFile, "tools", "", "YAML file with tool parameter schemas by tool name")

	return cmd
}

func saveReport(cmd *cobra.Command, app *App, report *domain.RunReport) error {
	store, closeFn, err := app.OpenReports(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := store.Save(cmd.Context(), report); err != nil {
		return err
	}
	app.Out.Success(fmt.Sprintf("Report saved: %s", report.ID))
	return nil
}

// printReport выводит результаты шагов и сводку run.
func printReport(out *Output, report *domain.RunReport) error {
	if out.JSONMode() {
		return out.JSON(report)
	}

	if report.Status == domain.RunStatusAborted {
		out.Error(fmt.Sprintf("run %s aborted: %s", report.ID, report.Error))
		return nil
	}

	rows := make([][]string, len(report.Steps))
	for i, s := range report.Steps {
		rows[i] = []string{s.Name, s.Type.String(), s.Status.String(), s.Duration().String(), s.Error}
	}
	out.Table([]string{"STEP", "TYPE", "STATUS", "DURATION", "ERROR"}, rows)

	summary := fmt.Sprintf("Run %s %s in %s: %d steps, %d failed",
		report.ID, report.Status, report.Duration(), len(report.Steps), len(report.FailedSteps()))
	if report.Succeeded() {
		out.Success(summary)
	} else {
		out.Warn(summary)
	}
	return nil
}
