package rewrite

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed rules.yaml
var embeddedRules []byte

// Scope controls how a rule is applied.
type Scope string

const (
	// ScopeGlobal applies against the whole source text.
	ScopeGlobal Scope = "global"
	// ScopeLine applies line by line, skipping lines that already
	// reference the target namespace.
	ScopeLine Scope = "line"
)

// Rule is one ordered pattern/replacement entry.
type Rule struct {
	ID          string `yaml:"id"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Scope       Scope  `yaml:"scope"`

	re *regexp.Regexp
}

// Table is the ordered, validated rule set. Built once at startup and
// read-only afterwards.
type Table struct {
	Namespace string `yaml:"namespace"`
	Rules     []Rule `yaml:"rules"`
}

// LoadTable parses and validates a YAML rule table.
func LoadTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("rewrite: parse rule table: %w", err)
	}
	if t.Namespace == "" {
		return nil, fmt.Errorf("rewrite: rule table has no target namespace")
	}

	seen := make(map[string]bool, len(t.Rules))
	for i := range t.Rules {
		r := &t.Rules[i]
		if r.ID == "" {
			return nil, fmt.Errorf("rewrite: rule %d has no id", i)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("rewrite: duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true

		switch r.Scope {
		case ScopeGlobal, ScopeLine:
		default:
			return nil, fmt.Errorf("rewrite: rule %q has unknown scope %q", r.ID, r.Scope)
		}

		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rewrite: rule %q: %w", r.ID, err)
		}
		r.re = re
	}

	if err := t.checkReplacements(); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultTable loads the embedded rule table.
func DefaultTable() (*Table, error) {
	return LoadTable(embeddedRules)
}

// checkReplacements enforces the no-retrigger invariant: no rule's
// replacement text may match any rule's pattern, so a rewritten line can
// never be rewritten again.
func (t *Table) checkReplacements() error {
	for _, r := range t.Rules {
		repl := stripCaptures(r.Replacement)
		for _, other := range t.Rules {
			if other.re.MatchString(repl) {
				return fmt.Errorf(
					"rewrite: replacement of rule %q matches pattern of rule %q",
					r.ID, other.ID)
			}
		}
	}
	return nil
}

var captureRef = regexp.MustCompile(`\$\{\d+\}|\$\d+`)

func stripCaptures(replacement string) string {
	return captureRef.ReplaceAllString(replacement, "")
}

// guarded reports whether a line already carries a fully-qualified
// reference to the target namespace, on either side of an import keyword.
func (t *Table) guarded(line string) bool {
	return strings.Contains(line, t.Namespace)
}
