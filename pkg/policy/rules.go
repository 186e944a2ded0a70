package policy

// RuleID is the stable identifier of one authored rule. IDs MUST NOT
// change between releases; reports and fix dispatch key on them.
type RuleID string

// Permission policy rules ("LP-" for least privilege).
const (
	// Document level.
	RuleVersionMissing     RuleID = "LP-001" // Version absent or not canonical
	RulePolicyTooLarge     RuleID = "LP-002" // canonical size over ceiling
	RuleCrossStatementDupe RuleID = "LP-046" // action granted by more than one statement

	// Action scoping.
	RuleBareWildcardAction RuleID = "LP-010"
	RuleServiceWildcard    RuleID = "LP-011"
	RuleHighRiskWildcard   RuleID = "LP-012"
	RuleDeniedAction       RuleID = "LP-013"
	RuleUnscopedAssumeRole RuleID = "LP-014"
	RuleNotActionPresent   RuleID = "LP-015"

	// Resource scoping.
	RuleWildcardResource         RuleID = "LP-020"
	RuleAcceptedWildcardResource RuleID = "LP-021"
	RuleHardcodedAccountID       RuleID = "LP-022"
	RuleWildcardResourceType     RuleID = "LP-023"

	// Condition requirements.
	RulePassRoleWildcard        RuleID = "LP-030"
	RulePassRoleNoService       RuleID = "LP-031"
	RuleCreateRoleNoBoundary    RuleID = "LP-032"
	RuleServiceLinkedRoleNoName RuleID = "LP-033"
	RuleMissingRequestedRegion  RuleID = "LP-034"
	RuleMissingRequestTag       RuleID = "LP-035"

	// Statement structure.
	RuleEmptySid          RuleID = "LP-040"
	RuleTooManyActions    RuleID = "LP-041"
	RuleDuplicateActions  RuleID = "LP-042"
	RuleTooManyStatements RuleID = "LP-043"

	// Privilege escalation.
	RuleSelfPolicyModification RuleID = "LP-050"
	RuleSelfPolicyVersion      RuleID = "LP-051"
	RuleCreateAndPassRole      RuleID = "LP-052"
	RuleBroadPolicyWrite       RuleID = "LP-053"
)

// Trust policy rules.
const (
	RuleTrustWrongAction     RuleID = "TP-001"
	RuleTrustMissingAudience RuleID = "TP-002"
	RuleTrustMissingSubject  RuleID = "TP-003"
	RuleTrustWildcardSubject RuleID = "TP-004"
	RuleTrustPlanSubject     RuleID = "TP-036"
	RuleTrustApplySubject    RuleID = "TP-037"
	RuleTrustLiteralLike     RuleID = "TP-005"
)

// DeniedActions are actions no generated role may ever hold: account
// and organization takeover plus IAM user and access-key creation.
var DeniedActions = map[string]struct{}{
	"organizations:LeaveOrganization":  {},
	"organizations:DeleteOrganization": {},
	"account:CloseAccount":             {},
	"account:PutAlternateContact":      {},
	"account:DeleteAlternateContact":   {},
	"iam:CreateUser":                   {},
	"iam:CreateAccessKey":              {},
	"iam:CreateLoginProfile":           {},
	"iam:UpdateLoginProfile":           {},
	"iam:DeleteAccountPasswordPolicy":  {},
	"iam:DeactivateMFADevice":          {},
	"sts:GetFederationToken":           {},
}

// HighRiskServices get an extra "overly broad" warning when a
// service-level wildcard grants everything they can do.
var HighRiskServices = map[string]struct{}{
	"iam":            {},
	"sts":            {},
	"organizations":  {},
	"kms":            {},
	"secretsmanager": {},
	"ec2":            {},
	"s3":             {},
}

// RegionScopedServices are services whose wildcard-resource actions
// should be pinned to a region via aws:RequestedRegion.
var RegionScopedServices = map[string]struct{}{
	"ec2":         {},
	"rds":         {},
	"lambda":      {},
	"ecs":         {},
	"eks":         {},
	"dynamodb":    {},
	"elasticache": {},
	"sqs":         {},
	"sns":         {},
	"logs":        {},
}
