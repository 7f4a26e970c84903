package services

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/rickstaa/get-stargazers-info/internal/models"
)

// StatisticsService computes descriptive statistics over collected records
type StatisticsService struct{}

// NewStatisticsService creates a new StatisticsService
func NewStatisticsService() *StatisticsService {
	return &StatisticsService{}
}

// Compute builds the per-field report for the records of a checkpoint
func (s *StatisticsService) Compute(infos []models.StargazerInfo, filters models.StatisticsFilters) *models.StatisticsReport {
	records := make([]*models.StargazerInfo, 0, len(infos))
	for i := range infos {
		if filters.ZeroUsers && infos[i].IsZero() {
			continue
		}
		records = append(records, &infos[i])
	}

	report := &models.StatisticsReport{
		Records:   len(infos),
		Used:      len(records),
		Filters:   filters,
		Summaries: make([]models.FieldSummary, 0, len(models.Fields)),
	}

	for _, field := range models.Fields {
		values := extractValues(records, field, filters.ZeroValues)
		report.Summaries = append(report.Summaries, models.FieldSummary{
			Field:  field.Key,
			Label:  field.Label,
			Count:  len(values),
			Mean:   Mean(values),
			Median: Median(values),
			StdDev: StandardDeviation(values),
			Max:    Max(values),
		})
	}

	return report
}

// WriteReport prints the report in the plain text layout of the stats stage
func (s *StatisticsService) WriteReport(w io.Writer, report *models.StatisticsReport) error {
	if _, err := fmt.Fprintf(w, "Retrieved info of %d stargazers (%d used).\n", report.Records, report.Used); err != nil {
		return err
	}
	for _, summary := range report.Summaries {
		_, err := fmt.Fprintf(w,
			"Mean %[1]s: %[2]v\nMedian %[1]s: %[3]v\nStandard deviation %[1]s: %[4]v\nMax %[1]s: %[5]v\n",
			summary.Label, summary.Mean, summary.Median, summary.StdDev, summary.Max)
		if err != nil {
			return err
		}
	}
	return nil
}

// extractValues collects the present values of field, optionally dropping zeros
func extractValues(records []*models.StargazerInfo, field models.Field, dropZeros bool) []float64 {
	values := make([]float64, 0, len(records))
	for _, record := range records {
		v, ok := field.Value(record)
		if !ok || (dropZeros && v == 0) {
			continue
		}
		values = append(values, float64(v))
	}
	return values
}

// Mean returns the arithmetic mean, NaN for an empty sequence
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value, or the mean of the two middle values for
// even-length sequences. NaN for an empty sequence.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 != 0 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// StandardDeviation returns the population standard deviation
func StandardDeviation(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	avg := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - avg) * (v - avg)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Max returns the largest value, NaN for an empty sequence
func Max(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
