package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [dir]",
	Short: "Generate the tree once and print it",
	Long:  `Generates the template against the State and prints the node tree, the rendered markdown document (--markdown) or the JSON snapshot (--headless).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd, args)
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Markdown, _ = cmd.Flags().GetBool("markdown")
		opts.Measure, _ = cmd.Flags().GetBool("measure")
		return cli.RunRender(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().Bool("headless", false, "Print the snapshot as JSON")
	renderCmd.Flags().BoolP("markdown", "m", false, "Render the document as markdown")
	renderCmd.Flags().Bool("measure", false, "Print the size of the tree in terminal cells")
}
