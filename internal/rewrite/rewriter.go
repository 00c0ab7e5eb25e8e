package rewrite

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Rewriter applies the rule table to snippets. The table is read-only, so a
// single Rewriter serves all callers; only the cumulative statistics are
// guarded by a lock.
type Rewriter struct {
	table *Table

	mu         sync.Mutex
	totalCalls int
	ruleTotals map[string]int

	doublePrefix *regexp.Regexp
	oldPrefix    *regexp.Regexp
	emptyImport  *regexp.Regexp
}

// New creates a rewriter for a validated table.
func New(table *Table) *Rewriter {
	ns := regexp.QuoteMeta(table.Namespace)
	return &Rewriter{
		table:      table,
		ruleTotals: make(map[string]int),

		doublePrefix: regexp.MustCompile(ns + `\.` + ns),
		oldPrefix:    regexp.MustCompile(`(?m)^\s*(?:from|import)\s+src[.\s]`),
		emptyImport:  regexp.MustCompile(`(?m)^\s*from\s+(?:src|` + ns + `)(?:\.[\w.]*)?\s+import\s*$`),
	}
}

// NewDefault creates a rewriter backed by the embedded rule table.
func NewDefault() (*Rewriter, error) {
	table, err := DefaultTable()
	if err != nil {
		return nil, err
	}
	return New(table), nil
}

// Namespace returns the target namespace the table rewrites into.
func (r *Rewriter) Namespace() string {
	return r.table.Namespace
}

// Transform rewrites recognized import forms and returns the transformed
// text with a diagnostics record. It never fails: unrecognized or malformed
// input comes back unchanged with the issues noted in the diagnostics.
func (r *Rewriter) Transform(source string) (string, *Diagnostics) {
	diags := &Diagnostics{}

	// Pass 1: global prefix rules against the whole text, in table order.
	text := source
	for i := range r.table.Rules {
		rule := &r.table.Rules[i]
		if rule.Scope != ScopeGlobal {
			continue
		}
		count := len(rule.re.FindAllStringIndex(text, -1))
		if count == 0 {
			continue
		}
		text = rule.re.ReplaceAllString(text, rule.Replacement)
		diags.record(rule.ID, count)
	}

	// Pass 2: line-guarded rules. At most the first matching rule fires
	// per line; lines already referencing the target namespace are left
	// alone so re-running Transform is idempotent.
	lines := strings.Split(text, "\n")
	for li, line := range lines {
		if r.table.guarded(line) {
			continue
		}
		for i := range r.table.Rules {
			rule := &r.table.Rules[i]
			if rule.Scope != ScopeLine || !rule.re.MatchString(line) {
				continue
			}
			lines[li] = rule.re.ReplaceAllString(line, rule.Replacement)
			diags.record(rule.ID, 1)
			break
		}
	}
	text = strings.Join(lines, "\n")

	r.validate(source, text, diags)
	r.trackStats(diags)

	return text, diags
}

// Diagnose runs Transform without exposing the rewritten text. Used by the
// dry-run API.
func (r *Rewriter) Diagnose(source string) *Diagnostics {
	_, diags := r.Transform(source)
	return diags
}

// validate annotates the diagnostics; it never changes the text.
func (r *Rewriter) validate(source, transformed string, diags *Diagnostics) {
	if r.doublePrefix.MatchString(transformed) {
		diags.warn(fmt.Sprintf("double prefix detected: %s appears twice consecutively", r.table.Namespace))
	}
	if r.oldPrefix.MatchString(transformed) && strings.Contains(transformed, r.table.Namespace) {
		diags.warn("mixed import prefixes: old src imports coexist with rewritten imports")
	}
	for _, loc := range r.emptyImport.FindAllString(transformed, -1) {
		diags.fail(fmt.Sprintf("syntactically empty import: %q", strings.TrimSpace(loc)))
	}
	if source == transformed {
		diags.warn("no transformation applied")
	}
}

func (r *Rewriter) trackStats(diags *Diagnostics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalCalls++
	for _, tr := range diags.Transformations {
		r.ruleTotals[tr.RuleID] += tr.Occurrences
	}
}

// Stats returns cumulative rule-fire counts and the number of Transform
// calls since the last reset.
func (r *Rewriter) Stats() (calls int, ruleTotals map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.ruleTotals))
	for k, v := range r.ruleTotals {
		out[k] = v
	}
	return r.totalCalls, out
}

// ResetStats clears cumulative statistics. Called by the engine's Reset.
func (r *Rewriter) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalCalls = 0
	r.ruleTotals = make(map[string]int)
}
