package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/phasegridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("phasegridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
PhaseGridGo - A priority-scheduled workflow runner for one shared browser session.

Usage:
  phasegridgo [options] [SCRIPT_PATH]

Arguments:
  SCRIPT_PATH
    Path to a single .hcl workflow script or a directory containing scripts.

Options:
`)
		flagSet.PrintDefaults()
	}

	scriptFlag := flagSet.String("scripts", "", "Path to the workflow script file or directory.")
	sFlag := flagSet.String("s", "", "Path to the workflow script file or directory (shorthand).")
	driverFlag := flagSet.String("driver", "webdriver", "Session driver. Options: 'webdriver' or 'devtools'.")
	driverURLFlag := flagSet.String("driver-url", "http://localhost:9515", "Remote end URL (webdriver) or page debugger websocket URL (devtools).")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status/pause server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 1, "Dispatcher workers; must match the session's safe concurrency.")
	queueFlag := flagSet.Int("queue-capacity", 256, "Pending-phase queue bound. 0 is unbounded.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *scriptFlag != "" {
		path = *scriptFlag
	} else if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Script path determined.", "path", path)

	if path == "" {
		slog.Debug("No script path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ScriptPath:    path,
		Driver:        strings.ToLower(*driverFlag),
		DriverURL:     *driverURLFlag,
		StatusPort:    *statusPortFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
		WorkerCount:   *workersFlag,
		QueueCapacity: *queueFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
