package errors

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Registered error codes.
const (
	CodeConfigRead        = "R101"
	CodeConfigParse       = "R102"
	CodeConfigInvalid     = "R103"
	CodeUnknownSource     = "R104"
	CodeDuplicateField    = "R105"
	CodeServerListen      = "R201"
	CodeServerShutdown    = "R202"
	CodeSourceUnavailable = "R301"
)

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Configuration (R100-R199)
	CodeConfigRead: {
		Category:   CategoryConfig,
		Message:    "Cannot read configuration file",
		Suggestion: "Check the --config path or run without it to use defaults.",
	},
	CodeConfigParse: {
		Category:   CategoryConfig,
		Message:    "Configuration file is not valid YAML",
		Suggestion: "Run `reactivator check` to see the offending line.",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	CodeUnknownSource: {
		Category:   CategoryConfig,
		Message:    "Unknown source type",
		Detail:     "Each binding must name one of the built-in sources.",
		Suggestion: "Use one of: clock, netstatus, s3object.",
	},
	CodeDuplicateField: {
		Category:   CategoryConfig,
		Message:    "Field bound more than once",
		Detail:     "A component field can be fed by a single source.",
		Suggestion: "Rename one of the bindings.",
	},

	// Server (R200-R299)
	CodeServerListen: {
		Category:   CategoryServer,
		Message:    "Cannot start HTTP server",
		Suggestion: "Is another process using the port? Try --port.",
	},
	CodeServerShutdown: {
		Category: CategoryServer,
		Message:  "HTTP server did not shut down cleanly",
	},

	// Sources (R300-R399)
	CodeSourceUnavailable: {
		Category: CategorySource,
		Message:  "Source could not be initialized",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
