package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/zpratt/lousy-iam/pkg/config"
	"github.com/zpratt/lousy-iam/pkg/formulation"
	"github.com/zpratt/lousy-iam/pkg/observability"
	"github.com/zpratt/lousy-iam/pkg/orchestrate"
)

// runValidateCmd loads a formulation, drives every policy to a fixed
// point, and writes the validation report and the fixed tree. Exit
// codes: 0 valid, 1 invalid, 2 usage or I/O failure.
func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("input", "", "formulation JSON file (required)")
	configPath := fs.String("config", "", "YAML configuration file")
	reportPath := fs.String("report", "", "write the validation report here (default stdout)")
	fixedPath := fs.String("fixed", "", "write the fixed formulation here")
	failOnWarning := fs.Bool("fail-on-warning", false, "exit non-zero when warnings remain")
	metricsEndpoint := fs.String("metrics-endpoint", "", "OTLP gRPC endpoint for metrics (disabled when empty)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" {
		fmt.Fprintln(stderr, "validate: -input is required")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return 2
	}
	logger := newLogger(stderr, cfg.LogLevel)

	input, err := formulation.Load(*inputPath)
	if err != nil {
		logger.Error("load formulation failed", "error", err)
		return 2
	}

	ctx := context.Background()
	obsConfig := observability.DefaultConfig()
	if *metricsEndpoint != "" {
		obsConfig.Enabled = true
		obsConfig.OTLPEndpoint = *metricsEndpoint
	}
	provider, err := observability.New(ctx, obsConfig)
	if err != nil {
		logger.Error("observability init failed", "error", err)
		return 2
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("observability shutdown failed", "error", err)
		}
	}()

	orch := orchestrate.New(cfg.ValidateContext(),
		orchestrate.WithLogger(logger),
		orchestrate.WithRecorder(provider))
	result, fixed := orch.Run(input)

	logger.Info("validation complete",
		"run_id", result.RunID,
		"valid", result.Valid,
		"roles", len(result.RoleResults),
		"fix_iterations", result.FixIterations)

	if err := writeJSON(*reportPath, stdout, result); err != nil {
		logger.Error("write report failed", "error", err)
		return 2
	}
	if *fixedPath != "" {
		if err := writeJSON(*fixedPath, stdout, fixed); err != nil {
			logger.Error("write fixed formulation failed", "error", err)
			return 2
		}
	}

	if !result.Valid {
		return 1
	}
	if *failOnWarning && anyWarnings(result) {
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func anyWarnings(result *orchestrate.Result) bool {
	for _, rr := range result.RoleResults {
		for _, pr := range rr.PolicyResults {
			if pr.Stats.Warnings > 0 {
				return true
			}
		}
	}
	return false
}

// writeJSON writes v indented to path, or to fallback when path is
// empty.
func writeJSON(path string, fallback io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = fallback.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
