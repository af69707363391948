package metric

// TechnicalDebtTarget is an explicitly accepted exception: while the value is
// not worse than AcceptedValue the metric reports grey instead of its
// threshold status.
type TechnicalDebtTarget struct {
	AcceptedValue float64 `yaml:"accepted_value" json:"accepted_value"`
	Explanation   string  `yaml:"explanation" json:"explanation"`
}

// covers reports whether v is within the accepted debt under dir.
func (t *TechnicalDebtTarget) covers(dir Direction, v float64) bool {
	return t != nil && dir.Covers(v, t.AcceptedValue)
}
