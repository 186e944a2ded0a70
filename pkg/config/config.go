// Package config holds runtime configuration for the validator CLI:
// deployment identity, the unscoped action set, and template variable
// sources. Values come from an optional YAML file with environment
// variables layered on top.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zpratt/lousy-iam/pkg/resolve"
	"github.com/zpratt/lousy-iam/pkg/validate"
)

// Config is the deployment configuration consumed by the core.
type Config struct {
	// RoleName is the deploying role's name, used by the
	// self-modification checks and as the ${role_name} variable.
	RoleName string `yaml:"role_name"`

	// AccountID and Region feed the strongly-typed template variable
	// lookups.
	AccountID string `yaml:"account_id"`
	Region    string `yaml:"region"`

	// ProjectTag is the value inserted for ${project_tag}.
	ProjectTag string `yaml:"project_tag"`

	// UnscopedActions are actions permitted to carry Resource "*":
	// exact actions or "service:*" entries.
	UnscopedActions []string `yaml:"unscoped_actions"`

	// Variables is the free-form template variable map.
	Variables map[string]string `yaml:"variables"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`
}

// defaultUnscopedActions are identity and account introspection calls
// that have no resource-level permission support.
var defaultUnscopedActions = []string{
	"sts:GetCallerIdentity",
	"iam:ListAccountAliases",
	"ec2:DescribeRegions",
	"ec2:DescribeAvailabilityZones",
}

// Load builds configuration from environment variables alone.
func Load() *Config {
	c := &Config{
		UnscopedActions: append([]string(nil), defaultUnscopedActions...),
		Variables:       map[string]string{},
		LogLevel:        "INFO",
	}
	c.applyEnv()
	return c
}

// LoadFile reads a YAML configuration file and layers environment
// variables on top of it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := &Config{LogLevel: "INFO"}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.UnscopedActions == nil {
		c.UnscopedActions = append([]string(nil), defaultUnscopedActions...)
	}
	if c.Variables == nil {
		c.Variables = map[string]string{}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOUSY_IAM_ROLE_NAME"); v != "" {
		c.RoleName = v
	}
	if v := os.Getenv("LOUSY_IAM_ACCOUNT_ID"); v != "" {
		c.AccountID = v
	}
	if v := os.Getenv("LOUSY_IAM_REGION"); v != "" {
		c.Region = v
	}
	if v := os.Getenv("LOUSY_IAM_PROJECT_TAG"); v != "" {
		c.ProjectTag = v
	}
	if v := os.Getenv("LOUSY_IAM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOUSY_IAM_UNSCOPED_ACTIONS"); v != "" {
		c.UnscopedActions = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ValidateContext builds the permission validator's context.
func (c *Config) ValidateContext() validate.Context {
	set := make(map[string]struct{}, len(c.UnscopedActions))
	for _, a := range c.UnscopedActions {
		set[a] = struct{}{}
	}
	return validate.Context{RoleName: c.RoleName, UnscopedActions: set}
}

// ResolveConfig builds the template resolver's variable config.
func (c *Config) ResolveConfig() *resolve.Config {
	return &resolve.Config{
		AccountID:  c.AccountID,
		Region:     c.Region,
		RoleName:   c.RoleName,
		ProjectTag: c.ProjectTag,
		Variables:  c.Variables,
	}
}
