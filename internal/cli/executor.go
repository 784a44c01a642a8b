package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewExecutorCmd создаёт группу команд реестра внешних исполнителей (Redis).
func NewExecutorCmd(appFn func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executor",
		Short: "Manage the external executor registry",
	}

	cmd.AddCommand(
		newExecutorListCmd(appFn),
		newExecutorSetCmd(appFn),
		newExecutorRemoveCmd(appFn),
	)

	return cmd
}

func newExecutorListCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered executors",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			resolver, err := app.Executors()
			if err != nil {
				return err
			}
			defer resolver.Close()

			executors, err := resolver.List(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(executors))
			for name := range executors {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name, executors[name]}
			}

			return app.Out.Print([]string{"FUNCTION", "URL"}, rows, executors)
		},
	}
}

func newExecutorSetCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME URL",
		Short: "Register an executor URL for a function name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			resolver, err := app.Executors()
			if err != nil {
				return err
			}
			defer resolver.Close()

			if err := resolver.Register(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			app.Out.Success(fmt.Sprintf("Executor registered: %s -> %s", args[0], args[1]))
			return nil
		},
	}
}

func newExecutorRemoveCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove an executor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			resolver, err := app.Executors()
			if err != nil {
				return err
			}
			defer resolver.Close()

			if err := resolver.Unregister(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Out.Success(fmt.Sprintf("Executor removed: %s", args[0]))
			return nil
		},
	}
}
