package services

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rickstaa/get-stargazers-info/internal/models"
	"github.com/rickstaa/get-stargazers-info/internal/repositories"
	"github.com/rickstaa/get-stargazers-info/pkg/logger"
)

const (
	infoSheet       = "Info"
	statisticsSheet = "Statistics"
)

// ExportService copies collection results into a database or a workbook
type ExportService struct {
	infoRepo *repositories.StargazerInfoRepository
}

// NewExportService creates a new ExportService; infoRepo may be nil when
// only workbook exports are used.
func NewExportService(infoRepo *repositories.StargazerInfoRepository) *ExportService {
	return &ExportService{infoRepo: infoRepo}
}

// ExportToDatabase upserts every record for repository and returns the export id
func (s *ExportService) ExportToDatabase(repository string, infos []models.StargazerInfo) (string, error) {
	if s.infoRepo == nil {
		return "", fmt.Errorf("no database configured for export")
	}

	exportID := uuid.New().String()
	if err := s.infoRepo.UpsertBatch(repository, exportID, infos); err != nil {
		return "", fmt.Errorf("failed to export stargazer info: %w", err)
	}
	written, err := s.infoRepo.CountByExportID(exportID)
	if err != nil {
		return "", fmt.Errorf("failed to verify export %s: %w", exportID, err)
	}
	if written != len(infos) {
		return "", fmt.Errorf("export %s wrote %d of %d stargazers", exportID, written, len(infos))
	}

	logger.WithField("export_id", exportID).Infof("Exported %d stargazers to the database", len(infos))
	return exportID, nil
}

// LoadFromDatabase reads back the exported records of repository
func (s *ExportService) LoadFromDatabase(repository string) ([]models.StargazerInfo, error) {
	if s.infoRepo == nil {
		return nil, fmt.Errorf("no database configured for export")
	}
	infos, err := s.infoRepo.GetByRepository(repository)
	if err != nil {
		return nil, fmt.Errorf("failed to load exported stargazer info: %w", err)
	}
	return infos, nil
}

// ExportToWorkbook writes the records and, when given, the statistics report to an xlsx file
func (s *ExportService) ExportToWorkbook(path string, infos []models.StargazerInfo, report *models.StatisticsReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", infoSheet); err != nil {
		return err
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	header := []interface{}{"name"}
	for _, field := range models.Fields {
		header = append(header, field.Key)
	}
	if err := writeRow(f, infoSheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(infoSheet, 1, 1, boldStyle); err != nil {
		return err
	}

	for i := range infos {
		row := []interface{}{infos[i].Name}
		for _, field := range models.Fields {
			if v, ok := field.Value(&infos[i]); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		if err := writeRow(f, infoSheet, i+2, row); err != nil {
			return err
		}
	}

	if report != nil {
		if _, err := f.NewSheet(statisticsSheet); err != nil {
			return err
		}
		if err := writeRow(f, statisticsSheet, 1, []interface{}{"field", "count", "mean", "median", "std_dev", "max"}); err != nil {
			return err
		}
		if err := f.SetRowStyle(statisticsSheet, 1, 1, boldStyle); err != nil {
			return err
		}
		for i, summary := range report.Summaries {
			row := []interface{}{
				summary.Field,
				summary.Count,
				cellFloat(summary.Mean),
				cellFloat(summary.Median),
				cellFloat(summary.StdDev),
				cellFloat(summary.Max),
			}
			if err := writeRow(f, statisticsSheet, i+2, row); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	logger.WithField("path", path).Infof("Exported %d stargazers to workbook", len(infos))
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// cellFloat leaves undefined statistics as empty cells
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
