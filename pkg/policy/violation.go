package policy

// Severity classifies a violation. Errors block synthesis; warnings
// are surfaced but never affect validity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one finding from a validator pass.
//
// AutoFixable=true implies RuleID is in the fixer's known rule set;
// the fixer silently ignores fixable violations whose rule it does not
// recognize, so new rules can ship in the validator first.
type Violation struct {
	RuleID         RuleID         `json:"rule_id"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	StatementSid   string         `json:"statement_sid,omitempty"`
	StatementIndex int            `json:"statement_index"`
	Field          string         `json:"field"`
	CurrentValue   any            `json:"current_value"`
	AutoFixable    bool           `json:"auto_fixable"`
	FixHint        string         `json:"fix_hint"`
	FixData        map[string]any `json:"fix_data,omitempty"`
}

// Stats aggregates counts for one policy. Always computed from the
// post-fix document and its final violation set, never carried over
// from pre-fix state.
type Stats struct {
	TotalStatements     int `json:"total_statements"`
	TotalActions        int `json:"total_actions"`
	Errors              int `json:"errors"`
	Warnings            int `json:"warnings"`
	AutoFixableErrors   int `json:"auto_fixable_errors"`
	AutoFixableWarnings int `json:"auto_fixable_warnings"`
}

// CountViolations folds a violation list into the stats counters.
func (s *Stats) CountViolations(violations []Violation) {
	for _, v := range violations {
		switch v.Severity {
		case SeverityError:
			s.Errors++
			if v.AutoFixable {
				s.AutoFixableErrors++
			}
		case SeverityWarning:
			s.Warnings++
			if v.AutoFixable {
				s.AutoFixableWarnings++
			}
		}
	}
}
