package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/zpratt/lousy-iam/pkg/formulation"
	"github.com/zpratt/lousy-iam/pkg/resolve"
)

// runResolveCmd substitutes template variables across a fixed
// formulation. Resolution is all-or-nothing: on failure it names every
// missing variable and writes nothing.
func runResolveCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("input", "", "fixed formulation JSON file (required)")
	configPath := fs.String("config", "", "YAML configuration file")
	outputPath := fs.String("output", "", "write the resolved document here (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" {
		fmt.Fprintln(stderr, "resolve: -input is required")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "resolve: %v\n", err)
		return 2
	}
	logger := newLogger(stderr, cfg.LogLevel)

	input, err := formulation.Load(*inputPath)
	if err != nil {
		logger.Error("load formulation failed", "error", err)
		return 2
	}

	resolved, err := resolve.Formulation(input, cfg.ResolveConfig())
	if err != nil {
		var missing *resolve.MissingVariablesError
		if errors.As(err, &missing) {
			logger.Error("resolution failed", "missing_variables", missing.Names)
			for _, name := range missing.Names {
				fmt.Fprintf(stderr, "missing template variable: %s\n", name)
			}
			return 1
		}
		logger.Error("resolution failed", "error", err)
		return 1
	}

	if err := writeJSON(*outputPath, stdout, resolved); err != nil {
		logger.Error("write resolved document failed", "error", err)
		return 2
	}
	logger.Info("resolution complete", "roles", len(input.Roles))
	return 0
}
