package policy

// Formulation is the document produced by the statement formulation
// stage and consumed by the orchestrator: the full set of roles to be
// created, each with its permission policies and trust policy, plus
// the declared template variables.
type Formulation struct {
	Roles             []*Role           `json:"roles"`
	TemplateVariables map[string]string `json:"template_variables,omitempty"`
}

// Role is one IAM role definition awaiting validation.
type Role struct {
	RoleName              string              `json:"role_name"`
	RolePath              string              `json:"role_path,omitempty"`
	Description           string              `json:"description,omitempty"`
	MaxSessionDuration    int                 `json:"max_session_duration,omitempty"`
	PermissionBoundaryARN string              `json:"permission_boundary_arn,omitempty"`
	TrustPolicy           *TrustDocument      `json:"trust_policy"`
	PermissionPolicies    []*PermissionPolicy `json:"permission_policies"`
}

// PermissionPolicy is one named inline policy attached to a role.
type PermissionPolicy struct {
	PolicyName         string    `json:"policy_name"`
	PolicyDocument     *Document `json:"policy_document"`
	EstimatedSizeBytes int       `json:"estimated_size_bytes,omitempty"`
}

// Clone returns a deep copy of the formulation. The orchestrator
// builds its fixed output on a clone so the input tree is never
// mutated.
func (f *Formulation) Clone() *Formulation {
	out := &Formulation{}
	if f.TemplateVariables != nil {
		out.TemplateVariables = make(map[string]string, len(f.TemplateVariables))
		for k, v := range f.TemplateVariables {
			out.TemplateVariables[k] = v
		}
	}
	if f.Roles != nil {
		out.Roles = make([]*Role, len(f.Roles))
		for i, r := range f.Roles {
			out.Roles[i] = r.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the role.
func (r *Role) Clone() *Role {
	out := &Role{
		RoleName:              r.RoleName,
		RolePath:              r.RolePath,
		Description:           r.Description,
		MaxSessionDuration:    r.MaxSessionDuration,
		PermissionBoundaryARN: r.PermissionBoundaryARN,
	}
	if r.TrustPolicy != nil {
		out.TrustPolicy = r.TrustPolicy.Clone()
	}
	if r.PermissionPolicies != nil {
		out.PermissionPolicies = make([]*PermissionPolicy, len(r.PermissionPolicies))
		for i, p := range r.PermissionPolicies {
			out.PermissionPolicies[i] = p.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the permission policy.
func (p *PermissionPolicy) Clone() *PermissionPolicy {
	out := &PermissionPolicy{
		PolicyName:         p.PolicyName,
		EstimatedSizeBytes: p.EstimatedSizeBytes,
	}
	if p.PolicyDocument != nil {
		out.PolicyDocument = p.PolicyDocument.Clone()
	}
	return out
}
