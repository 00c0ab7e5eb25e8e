package rewrite

// Transformation records how many times one rule fired during a Transform
// call.
type Transformation struct {
	RuleID      string `json:"rule_id"`
	Occurrences int    `json:"occurrences"`
}

// Diagnostics is the per-call transformation report. Constructed fresh by
// every Transform call and never mutated afterwards.
type Diagnostics struct {
	Transformations []Transformation `json:"transformations"`
	Warnings        []string         `json:"warnings"`
	Errors          []string         `json:"errors"`
}

// Changed reports whether any rule fired.
func (d *Diagnostics) Changed() bool {
	return len(d.Transformations) > 0
}

func (d *Diagnostics) record(ruleID string, count int) {
	if count <= 0 {
		return
	}
	for i := range d.Transformations {
		if d.Transformations[i].RuleID == ruleID {
			d.Transformations[i].Occurrences += count
			return
		}
	}
	d.Transformations = append(d.Transformations, Transformation{
		RuleID:      ruleID,
		Occurrences: count,
	})
}

func (d *Diagnostics) warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

func (d *Diagnostics) fail(msg string) {
	d.Errors = append(d.Errors, msg)
}
