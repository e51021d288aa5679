// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	DefaultDir = ".irscan"

	// MarkersFile is the marker set looked up next to the config file when
	// no explicit markers file is configured.
	MarkersFile = "markers.yaml"

	// DefaultSearchPath is where candidate binaries are looked up by default.
	DefaultSearchPath = "./bin"

	// DefaultLogLevel is the logging level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultOutputFormat is the structured output format of scan results.
	DefaultOutputFormat = "lines"
)

// DefaultExtensions are the shared-library extensions scanned by default.
var DefaultExtensions = []string{".so", ".dll"}

// WorkerCommand is the hidden subcommand a child process runs to analyze a
// single binary.
const WorkerCommand = "_worker"
