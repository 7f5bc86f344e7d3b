package validate

import (
	"fmt"
	"strings"
)

// Rule names the check a violation failed.
type Rule string

const (
	RuleInvalidEntity   Rule = "invalid-entity"
	RuleDuplicateID     Rule = "duplicate-id"
	RuleUnresolvedRef   Rule = "unresolved-reference"
	RuleUnknownUnit     Rule = "unknown-unit"
	RuleMissingCitation Rule = "missing-citation"
	RuleDimensionClash  Rule = "dimension-conflict"
	RuleAmbiguousPolicy Rule = "ambiguous-policy"
)

// Violation is one failed check.
type Violation struct {
	Rule      Rule
	Entity    string
	File      string
	Parameter string
	Detail    string
}

func (v Violation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: entity %q", v.Rule, v.Entity)
	if v.File != "" {
		fmt.Fprintf(&b, " (%s)", v.File)
	}
	if v.Parameter != "" {
		fmt.Fprintf(&b, ": parameter %q", v.Parameter)
	}
	b.WriteString(": ")
	b.WriteString(v.Detail)
	return b.String()
}

// ValidationError carries every violation found in one run.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("entity validation failed with %d violation(s):\n- %s", len(lines), strings.Join(lines, "\n- "))
}

// Has reports whether any violation matches rule.
func (e *ValidationError) Has(rule Rule) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}
