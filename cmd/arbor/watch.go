package main

import (
	"context"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the tree current and print every change",
	Long:  `Runs the engine in development mode: template and State changes on disk (or in Redis) update the tree as they happen.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd, args)
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Markdown, _ = cmd.Flags().GetBool("markdown")
		opts.Persist, _ = cmd.Flags().GetDuration("persist")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return cli.RunWatch(sigCtx, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("headless", false, "Print tree changes as JSON lines")
	watchCmd.Flags().BoolP("markdown", "m", false, "Render the document as markdown")
	watchCmd.Flags().Duration("persist", 0, "Save the State back to its source on this interval")
}
