// lousy-iam turns formulated IAM role definitions into validated,
// auto-remediated, template-resolved documents ready for payload
// synthesis.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands; split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}
	switch args[1] {
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "resolve":
		return runResolveCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `lousy-iam - least-privilege IAM policy validation

Usage:
  lousy-iam validate -input <formulation.json> [flags]
  lousy-iam resolve  -input <fixed.json> [flags]

Commands:
  validate   run the validate-and-fix loop over a formulation document
  resolve    substitute template variables in a fixed formulation
`)
}

// newLogger builds the JSON logger the commands share. Logs go to
// stderr so stdout stays clean for piped report output.
func newLogger(stderr io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: l}))
}
