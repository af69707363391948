package types

import "time"

// Report is the result of one reporting pass over a project. The agent ships
// it to the server as JSON after the pass has committed its history.
type Report struct {
	Project     string         `json:"project"`
	PassID      string         `json:"pass_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Metrics     []MetricReport `json:"metrics"`
}

// MetricReport is one evaluated metric within a Report.
type MetricReport struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	SubjectID   string   `json:"subject_id"`
	SubjectName string   `json:"subject_name,omitempty"`
	Status      Status   `json:"status"`
	Value       *float64 `json:"value"` // nil when the measurement is missing
	Numerical   float64  `json:"numerical_value"`
	Missing     bool     `json:"missing"`
	Escalated   bool     `json:"escalated,omitempty"`
	Text        string   `json:"text"`
	Norm        string   `json:"norm"`
	Comment     string   `json:"comment,omitempty"`
	URL         string   `json:"url,omitempty"`
	AgeSeconds  float64  `json:"age_seconds"`
	YAxisMin    float64  `json:"y_axis_min"`
	YAxisMax    float64  `json:"y_axis_max"`
	Meta        bool     `json:"meta,omitempty"`
}

// Counts tallies the statuses of all metrics in r.
func (r *Report) Counts() map[Status]int {
	out := make(map[Status]int, len(AllStatuses))
	for _, m := range r.Metrics {
		out[m.Status]++
	}
	return out
}

// Metric returns the metric with the given ID, or nil.
func (r *Report) Metric(id string) *MetricReport {
	for i := range r.Metrics {
		if r.Metrics[i].ID == id {
			return &r.Metrics[i]
		}
	}
	return nil
}
