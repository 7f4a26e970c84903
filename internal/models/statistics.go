package models

import (
	"encoding/json"
	"math"
)

// StatisticsFilters control which values enter the statistics
type StatisticsFilters struct {
	// ZeroUsers drops records whose collected counters are all zero
	ZeroUsers bool `json:"zero_users"`
	// ZeroValues drops individual zero values per field
	ZeroValues bool `json:"zero_values"`
}

// FieldSummary holds descriptive statistics for one field
type FieldSummary struct {
	Field  string  `json:"field"`
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

// StatisticsReport is the result of the statistics stage
type StatisticsReport struct {
	// Source names where the records were read from
	Source    string            `json:"source,omitempty"`
	Records   int               `json:"records"`
	Used      int               `json:"used"`
	Filters   StatisticsFilters `json:"filters"`
	Summaries []FieldSummary    `json:"summaries"`
}

// MarshalJSON encodes undefined statistics (empty sequences) as null
func (s FieldSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Field  string   `json:"field"`
		Label  string   `json:"label"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Median *float64 `json:"median"`
		StdDev *float64 `json:"std_dev"`
		Max    *float64 `json:"max"`
	}{
		Field:  s.Field,
		Label:  s.Label,
		Count:  s.Count,
		Mean:   finite(s.Mean),
		Median: finite(s.Median),
		StdDev: finite(s.StdDev),
		Max:    finite(s.Max),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
