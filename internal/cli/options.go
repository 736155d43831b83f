package cli

import "time"

// Options contains the configuration shared by the CLI commands.
type Options struct {
	// Dir is the directory holding the template artifacts.
	Dir string
	// Template selects the template to generate. Empty picks one by convention.
	Template string
	// State is a YAML/JSON file path or a redis:// URL. Empty starts from an
	// empty State.
	State string
	// StateKey is a hex encoded AES-256 key. When set the State is stored
	// encrypted.
	StateKey string
	// Mask lists key patterns whose values are masked when the State is saved.
	Mask []string

	Debug    bool
	LogLevel string
	LogJSON  bool

	// Headless prints tree changes as JSON lines.
	Headless bool
	// Markdown renders the document with glamour instead of dumping the tree.
	Markdown bool
	// Measure prints the size of the tree under the terminal constraints.
	Measure bool

	// Addr is the listen address of the inspector server.
	Addr string
	// Persist writes the State back to its source on this interval. Zero disables it.
	Persist time.Duration
}
