package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/repo"
)

// NewReportCmd создаёт группу команд для сохранённых отчётов run.
func NewReportCmd(appFn func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect saved run reports",
	}

	cmd.AddCommand(
		newReportListCmd(appFn),
		newReportShowCmd(appFn),
	)

	return cmd
}

func newReportListCmd(appFn func() *App) *cobra.Command {
	var flow string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			store, closeFn, err := app.OpenReports(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			reports, err := store.List(cmd.Context(), repo.ReportFilter{
				Flow:   flow,
				Status: domain.RunStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(reports))
			for i, r := range reports {
				rows[i] = []string{
					r.ID.String(),
					r.Flow,
					string(r.Status),
					strconv.FormatBool(r.Succeeded()),
					strconv.Itoa(len(r.Steps)),
					r.CreatedAt.Format(time.RFC3339),
				}
			}

			return app.Out.Print([]string{"ID", "FLOW", "STATUS", "SUCCEEDED", "STEPS", "CREATED"}, rows, reports)
		},
	}

	cmd.Flags().StringVar(&flow, "flow", "", "Filter by flow name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (COMPLETED, ABORTED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newReportShowCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report id %q: %w", args[0], err)
			}

			store, closeFn, err := app.OpenReports(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := store.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("report %s: %w", id, err)
			}

			return printReport(app.Out, report)
		},
	}
}
