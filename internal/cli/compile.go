package cli

import (
	"github.com/spf13/cobra"
)

func newCompileCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "compile TEMPLATE",
		Short: "Compile a template and print its node tree",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := e.newApp()
			if err != nil {
				return err
			}
			return a.Compile(cmd.Context(), e.stdout, args[0], nil)
		},
	}
}

func newListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the templates in the views directory",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := e.newApp()
			if err != nil {
				return err
			}
			return a.List(cmd.Context(), e.stdout)
		},
	}
}
