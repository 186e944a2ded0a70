package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zpratt/lousy-iam/pkg/orchestrate"
)

const fixableFormulation = `{
  "roles": [
    {
      "role_name": "deployer-apply",
      "trust_policy": {
        "Version": "2012-10-17",
        "Statement": [
          {
            "Sid": "GithubTrust",
            "Effect": "Allow",
            "Principal": {"Federated": "arn:aws:iam::${account_id}:oidc-provider/token.actions.githubusercontent.com"},
            "Action": "sts:AssumeRoleWithWebIdentity",
            "Condition": {
              "StringEquals": {
                "token.actions.githubusercontent.com:aud": "sts.amazonaws.com",
                "token.actions.githubusercontent.com:sub": "repo:acme/site:ref:refs/heads/main"
              }
            }
          }
        ]
      },
      "permission_policies": [
        {
          "policy_name": "deploy-access",
          "policy_document": {
            "Statement": [
              {
                "Sid": "S3Read",
                "Effect": "Allow",
                "Action": ["s3:GetObject", "s3:GetObject"],
                "Resource": "arn:aws:s3:::deploy-artifacts/${bucket_prefix}/state.json"
              }
            ]
          }
        }
      ]
    }
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "frobnicate"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), `unknown command "frobnicate"`)
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "help"}, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "validate")
	require.Contains(t, stdout.String(), "resolve")
}

func TestValidateCmd_RequiresInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "validate"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "-input is required")
}

func TestValidateCmd_FixesAndWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "formulation.json", fixableFormulation)
	reportPath := filepath.Join(dir, "report.json")
	fixedPath := filepath.Join(dir, "fixed.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "validate",
		"-input", input,
		"-report", reportPath,
		"-fixed", fixedPath,
	}, &stdout, &stderr)
	require.Equal(t, 0, code)

	reportData, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var result orchestrate.Result
	require.NoError(t, json.Unmarshal(reportData, &result))
	require.True(t, result.Valid)
	require.NotEmpty(t, result.RunID)
	require.Len(t, result.RoleResults, 1)

	fixedData, err := os.ReadFile(fixedPath)
	require.NoError(t, err)
	var fixed map[string]any
	require.NoError(t, json.Unmarshal(fixedData, &fixed))
	doc := fixed["roles"].([]any)[0].(map[string]any)["permission_policies"].([]any)[0].(map[string]any)["policy_document"].(map[string]any)
	require.Equal(t, "2012-10-17", doc["Version"])
	require.Equal(t, []any{"s3:GetObject"}, doc["Statement"].([]any)[0].(map[string]any)["Action"])
}

func TestValidateCmd_ReportToStdoutByDefault(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "formulation.json", fixableFormulation)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "validate", "-input", input}, &stdout, &stderr)
	require.Equal(t, 0, code)

	var result orchestrate.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.True(t, result.Valid)
}

func TestValidateCmd_InvalidPolicyExitsOne(t *testing.T) {
	dir := t.TempDir()
	invalid := `{
	  "roles": [
	    {
	      "role_name": "deployer-apply",
	      "trust_policy": {
	        "Version": "2012-10-17",
	        "Statement": [
	          {
	            "Sid": "BadTrust",
	            "Effect": "Allow",
	            "Principal": {"Federated": "arn"},
	            "Action": "sts:AssumeRole",
	            "Condition": {}
	          }
	        ]
	      },
	      "permission_policies": [
	        {
	          "policy_name": "p",
	          "policy_document": {
	            "Version": "2012-10-17",
	            "Statement": [
	              {"Sid": "All", "Effect": "Allow", "Action": ["*"], "Resource": "*"}
	            ]
	          }
	        }
	      ]
	    }
	  ]
	}`
	input := writeFile(t, dir, "formulation.json", invalid)
	reportPath := filepath.Join(dir, "report.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "validate", "-input", input, "-report", reportPath}, &stdout, &stderr)
	require.Equal(t, 1, code)

	reportData, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var result orchestrate.Result
	require.NoError(t, json.Unmarshal(reportData, &result))
	require.False(t, result.Valid)
}

func TestValidateCmd_FailOnWarning(t *testing.T) {
	dir := t.TempDir()
	// Clean except for one warning: ec2:DescribeInstances under
	// Resource "*" with the action configured as unscoped.
	warning := `{
	  "roles": [
	    {
	      "role_name": "deployer-apply",
	      "trust_policy": {
	        "Version": "2012-10-17",
	        "Statement": [
	          {
	            "Sid": "GithubTrust",
	            "Effect": "Allow",
	            "Principal": {"Federated": "arn:aws:iam::${account_id}:oidc-provider/token.actions.githubusercontent.com"},
	            "Action": "sts:AssumeRoleWithWebIdentity",
	            "Condition": {
	              "StringEquals": {
	                "token.actions.githubusercontent.com:aud": "sts.amazonaws.com",
	                "token.actions.githubusercontent.com:sub": "repo:acme/site:ref:refs/heads/main"
	              }
	            }
	          }
	        ]
	      },
	      "permission_policies": [
	        {
	          "policy_name": "p",
	          "policy_document": {
	            "Version": "2012-10-17",
	            "Statement": [
	              {"Sid": "Describe", "Effect": "Allow", "Action": ["ec2:DescribeInstances"], "Resource": "*"}
	            ]
	          }
	        }
	      ]
	    }
	  ]
	}`
	input := writeFile(t, dir, "formulation.json", warning)
	cfgPath := writeFile(t, dir, "config.yaml", "unscoped_actions:\n  - ec2:DescribeInstances\n")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "validate", "-input", input, "-config", cfgPath}, &stdout, &stderr)
	require.Equal(t, 0, code, "warnings alone pass by default")

	stdout.Reset()
	stderr.Reset()
	code = Run([]string{"lousy-iam", "validate", "-input", input, "-config", cfgPath, "-fail-on-warning"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestValidateCmd_BadInputFileExitsTwo(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "validate", "-input", filepath.Join(t.TempDir(), "absent.json")}, &stdout, &stderr)
	require.Equal(t, 2, code)
}

func TestResolveCmd_SubstitutesVariables(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "fixed.json", fixableFormulation)
	cfgPath := writeFile(t, dir, "config.yaml", `
account_id: "123456789012"
variables:
  bucket_prefix: plans
`)
	outPath := filepath.Join(dir, "resolved.json")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "resolve",
		"-input", input,
		"-config", cfgPath,
		"-output", outPath,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "arn:aws:s3:::deploy-artifacts/plans/state.json")
	require.Contains(t, string(data), "arn:aws:iam::123456789012:oidc-provider")
	require.NotContains(t, string(data), "${bucket_prefix}")
}

func TestResolveCmd_MissingVariables(t *testing.T) {
	t.Setenv("LOUSY_IAM_ACCOUNT_ID", "")
	dir := t.TempDir()
	input := writeFile(t, dir, "fixed.json", fixableFormulation)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "resolve", "-input", input}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "missing template variable: account_id")
	require.Contains(t, stderr.String(), "missing template variable: bucket_prefix")
}

func TestResolveCmd_RequiresInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"lousy-iam", "resolve"}, &stdout, &stderr)
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "-input is required")
}
