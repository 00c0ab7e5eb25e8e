package testrun

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/perfbook/companion-backend/internal/lang"
)

// heuristicLine matches "name :: STATUS" shaped lines, optionally followed
// by a parenthesized duration, e.g. "test_append :: PASSED (1.3ms)".
var heuristicLine = regexp.MustCompile(
	`(?m)^\s*(.+?)\s*::\s*(PASSED|FAILED|ERROR|SKIPPED)\b(?:\s*\((\d+(?:\.\d+)?)\s*ms\))?`)

// parseOutcomes parses harness output, structured-first. Returns the
// outcomes and which parser produced them ("structured" or "heuristic").
func parseOutcomes(output string) ([]Outcome, string) {
	if outcomes, ok := parseFramed(output); ok {
		return outcomes, "structured"
	}
	return parseHeuristic(output), "heuristic"
}

// parseFramed extracts the sentinel-framed JSON payload.
func parseFramed(output string) ([]Outcome, bool) {
	start := strings.Index(output, lang.TestResultsStart)
	if start < 0 {
		return nil, false
	}
	rest := output[start+len(lang.TestResultsStart):]
	end := strings.Index(rest, lang.TestResultsEnd)
	if end < 0 {
		return nil, false
	}
	payload := strings.TrimSpace(rest[:end])

	var outcomes []Outcome
	if err := sonic.UnmarshalString(payload, &outcomes); err != nil {
		return nil, false
	}
	return outcomes, true
}

// parseHeuristic scans for result-shaped lines. Used when the harness died
// before printing the sentinel frame.
func parseHeuristic(output string) []Outcome {
	var outcomes []Outcome
	for _, m := range heuristicLine.FindAllStringSubmatch(output, -1) {
		outcome := Outcome{
			Name:   strings.TrimSpace(m[1]),
			Status: strings.ToLower(m[2]),
		}
		if m[3] != "" {
			if ms, err := strconv.ParseFloat(m[3], 64); err == nil {
				outcome.DurationMs = ms
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
