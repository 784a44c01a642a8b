package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/engine"
)

// NewComposeCmd создаёт команду compose: раскрытие вложенных flow.
func NewComposeCmd(appFn func() *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compose FILE",
		Short: "Flatten nested sub-flows into a single flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			flow, err := engine.NewComposer(engine.DirResolver{}, app.Logger).ComposeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if app.Out.JSONMode() {
				return app.Out.JSON(flow)
			}

			data, err := engine.MarshalFlow(flow)
			if err != nil {
				return err
			}

			if output == "" {
				return app.Out.Raw(data)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			app.Out.Success(fmt.Sprintf("Composed flow written to %s (%d steps)", output, len(flow.Steps)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the composed YAML to a file")

	return cmd
}

// NewGraphCmd создаёт команду graph: топологический порядок шагов.
func NewGraphCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "graph FILE",
		Short: "Show the dependency graph in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			flow, err := engine.NewComposer(engine.DirResolver{}, app.Logger).ComposeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dag, err := engine.BuildDAG(flow.Steps)
			if err != nil {
				return err
			}

			type graphNode struct {
				Step      string   `json:"step"`
				Type      string   `json:"type"`
				DependsOn []string `json:"depends_on"`
			}

			nodes := make([]graphNode, len(dag.Order))
			rows := make([][]string, len(dag.Order))
			for i, node := range dag.Order {
				deps := make([]string, len(node.DependsOn))
				for j, dep := range node.DependsOn {
					deps[j] = dep.ID
				}
				nodes[i] = graphNode{Step: node.ID, Type: node.Step.Type.String(), DependsOn: deps}
				rows[i] = []string{strconv.Itoa(i + 1), node.ID, node.Step.Type.String(), strings.Join(deps, ", ")}
			}

			return app.Out.Print([]string{"#", "STEP", "TYPE", "DEPENDS ON"}, rows, nodes)
		},
	}
}
