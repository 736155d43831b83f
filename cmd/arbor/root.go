package main

import (
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "arbor is a reactive node-tree engine for terminal UIs",
	Long: `arbor generates a tree of nodes from a template and keeps it in step with a
State document, re-evaluating only the nodes whose inputs changed.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Directory containing the template artifacts")
	flags.StringP("template", "t", "", "Template to generate (default: main, index or the directory name)")
	flags.StringP("state", "s", "", "State document: a YAML/JSON file or a redis:// URL")
	flags.String("state-key", os.Getenv("ARBOR_STATE_KEY"), "Hex AES-256 key to store the State encrypted (env ARBOR_STATE_KEY)")
	flags.StringSlice("mask", nil, "Key patterns whose values are masked when the State is saved")
	flags.Bool("debug", false, "Enable debug logging on stderr")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log as JSON")
}

// options reads the persistent flags. A positional argument stands in for
// --dir when the flag was not given.
func options(cmd *cobra.Command, args []string) cli.Options {
	flags := cmd.Flags()
	var opts cli.Options
	opts.Dir, _ = flags.GetString("dir")
	if !flags.Changed("dir") && len(args) > 0 {
		opts.Dir = args[0]
	}
	opts.Template, _ = flags.GetString("template")
	opts.State, _ = flags.GetString("state")
	opts.StateKey, _ = flags.GetString("state-key")
	opts.Mask, _ = flags.GetStringSlice("mask")
	opts.Debug, _ = flags.GetBool("debug")
	opts.LogLevel, _ = flags.GetString("log-level")
	opts.LogJSON, _ = flags.GetBool("log-json")
	return opts
}
