package metric

import "strconv"

// Value is a measured number or the missing sentinel. The zero Value is
// Missing, so a missing measurement is never confused with 0.
type Value struct {
	n  float64
	ok bool
}

// Missing is the value of a metric whose source could not deliver a number.
var Missing = Value{}

// Of returns a present Value holding n.
func Of(n float64) Value { return Value{n: n, ok: true} }

// Float returns the number and whether it is present.
func (v Value) Float() (float64, bool) { return v.n, v.ok }

// IsMissing reports whether v is the missing sentinel.
func (v Value) IsMissing() bool { return !v.ok }

// Ptr returns a pointer to the number, or nil when missing. It is the form
// stored in history entries and wire reports.
func (v Value) Ptr() *float64 {
	if !v.ok {
		return nil
	}
	n := v.n
	return &n
}

func (v Value) String() string {
	if !v.ok {
		return "missing"
	}
	return strconv.FormatFloat(v.n, 'f', -1, 64)
}
