package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Assign a value in the State document",
	Long: `Writes a value at a dotted path (e.g. user.name or items.0) of the State
document given by --state. The value is read as YAML: 42, true, [a, b] and
{k: v} keep their types. A running 'arbor watch' picks the change up.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSet(cmd.Context(), options(cmd, nil), args[0], cli.ParseValue(args[1]))
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
}
