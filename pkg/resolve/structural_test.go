package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zpratt/lousy-iam/pkg/policy"
	"github.com/zpratt/lousy-iam/pkg/sanitize"
)

func TestStructural_ResolvesValuesAndKeys(t *testing.T) {
	cfg := &Config{
		AccountID: "123456789012",
		Variables: map[string]string{"table_name": "app-state"},
	}
	input := map[string]any{
		"${table_name}": map[string]any{
			"arn": "arn:aws:dynamodb:us-east-1:${account_id}:table/${table_name}",
		},
		"items": []any{"${account_id}", float64(7), true},
	}

	out, err := Structural(input, nil, cfg)
	require.NoError(t, err)

	resolved := out.(map[string]any)
	table := resolved["app-state"].(map[string]any)
	require.Equal(t, "arn:aws:dynamodb:us-east-1:123456789012:table/app-state", table["arn"])
	require.Equal(t, []any{"123456789012", float64(7), true}, resolved["items"])
}

func TestStructural_MissingVariablesCollectedAcrossWalk(t *testing.T) {
	input := map[string]any{
		"a": "${first}",
		"b": map[string]any{"c": "${second} and ${first}"},
	}

	_, err := Structural(input, nil, nil)
	var missing *MissingVariablesError
	require.ErrorAs(t, err, &missing)
	require.ElementsMatch(t, []string{"first", "second"}, missing.Names)
	// Each name appears exactly once regardless of occurrence count.
	require.Len(t, missing.Names, 2)
}

func TestStructural_UnsafeResolvedKeyIsFatal(t *testing.T) {
	cfg := &Config{Variables: map[string]string{"key_name": "__proto__"}}

	// The same variable is fine in value position...
	out, err := Structural(map[string]any{"value": "${key_name}"}, nil, cfg)
	require.NoError(t, err)
	require.Equal(t, "__proto__", out.(map[string]any)["value"])

	// ...but fatal in key position.
	_, err = Structural(map[string]any{"${key_name}": "v"}, nil, cfg)
	require.ErrorIs(t, err, ErrUnsafeKey)
}

func TestStructural_KeyCollisionIsFatal(t *testing.T) {
	cfg := &Config{Variables: map[string]string{
		"first":  "same_key",
		"second": "same_key",
	}}
	input := map[string]any{
		"${first}":  "a",
		"${second}": "b",
	}

	_, err := Structural(input, nil, cfg)
	require.ErrorIs(t, err, ErrKeyCollision)
}

func TestStructural_IdenticalOriginalKeyIsNotACollision(t *testing.T) {
	// One source key resolving to itself is trivially deterministic.
	out, err := Structural(map[string]any{"plain": "v"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "v", out.(map[string]any)["plain"])
}

func TestStructural_DepthGuard(t *testing.T) {
	nested := any("leaf")
	for i := 0; i < sanitize.MaxDepth+2; i++ {
		nested = map[string]any{"next": nested}
	}
	_, err := Structural(nested, nil, nil)
	require.ErrorIs(t, err, sanitize.ErrMaxDepth)
}

func TestStructural_NoPartialOutputOnMissing(t *testing.T) {
	cfg := &Config{Variables: map[string]string{"known": "resolved"}}
	out, err := Structural(map[string]any{
		"ok":  "${known}",
		"bad": "${unknown}",
	}, nil, cfg)

	require.Nil(t, out)
	require.Error(t, err)
}

func TestFormulation_EndToEnd(t *testing.T) {
	f := &policy.Formulation{
		TemplateVariables: map[string]string{
			"bucket": "deploy-artifacts",
		},
		Roles: []*policy.Role{{
			RoleName: "deployer-apply",
			TrustPolicy: &policy.TrustDocument{
				Version:   policy.CanonicalVersion,
				Statement: []*policy.TrustStatement{},
			},
			PermissionPolicies: []*policy.PermissionPolicy{{
				PolicyName: "s3-access",
				PolicyDocument: &policy.Document{
					Version: policy.CanonicalVersion,
					Statement: []*policy.Statement{{
						Sid:      "S3Statement0",
						Effect:   "Allow",
						Action:   []string{"s3:GetObject"},
						Resource: policy.StringList{"arn:aws:s3:::${bucket}/plans/*"},
					}},
				},
			}},
		}},
	}
	cfg := &Config{AccountID: "123456789012", Region: "us-east-1"}

	out, err := Formulation(f, cfg)
	require.NoError(t, err)

	roles := out["roles"].([]any)
	role := roles[0].(map[string]any)
	pp := role["permission_policies"].([]any)[0].(map[string]any)
	doc := pp["policy_document"].(map[string]any)
	stmt := doc["Statement"].([]any)[0].(map[string]any)
	require.Equal(t, "arn:aws:s3:::deploy-artifacts/plans/*", stmt["Resource"])
}

func TestFormulation_MissingVariable(t *testing.T) {
	f := &policy.Formulation{
		Roles: []*policy.Role{{
			RoleName:    "deployer-plan",
			TrustPolicy: &policy.TrustDocument{Statement: []*policy.TrustStatement{}},
			PermissionPolicies: []*policy.PermissionPolicy{{
				PolicyName: "p",
				PolicyDocument: &policy.Document{
					Version: policy.CanonicalVersion,
					Statement: []*policy.Statement{{
						Sid:      "S",
						Effect:   "Allow",
						Action:   []string{"s3:GetObject"},
						Resource: policy.StringList{"arn:aws:s3:::${bucket}/x"},
					}},
				},
			}},
		}},
	}

	_, err := Formulation(f, nil)
	var missing *MissingVariablesError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"bucket"}, missing.Names)
}
