package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rickstaa/get-stargazers-info/internal/models"
	"github.com/rickstaa/get-stargazers-info/internal/repositories"
	"github.com/rickstaa/get-stargazers-info/pkg/database"
)

func exportFixture() []models.StargazerInfo {
	return []models.StargazerInfo{
		{Name: "alice", Stars: models.Int(12), Followers: models.Int(3), TotalCommits: models.Int(400)},
		{Name: "bob", Stars: models.Int(0), Followers: models.Int(1)},
	}
}

func TestExportToWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stargazers.xlsx")
	infos := exportFixture()
	report := NewStatisticsService().Compute(infos, models.StatisticsFilters{})

	service := NewExportService(nil)
	require.NoError(t, service.ExportToWorkbook(path, infos, report))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Info", "Statistics"}, f.GetSheetList())

	name, err := f.GetCellValue("Info", "A2")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	stars, err := f.GetCellValue("Info", "B2")
	require.NoError(t, err)
	assert.Equal(t, "12", stars)

	// totalCommits is the last column and absent for bob
	rows, err := f.GetRows("Info")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "totalCommits", rows[0][len(models.Fields)])
	assert.Equal(t, "400", rows[1][len(models.Fields)])
	assert.Less(t, len(rows[2]), len(models.Fields)+1, "missing counters are empty cells")

	field, err := f.GetCellValue("Statistics", "A2")
	require.NoError(t, err)
	assert.Equal(t, "stars", field)
	mean, err := f.GetCellValue("Statistics", "C2")
	require.NoError(t, err)
	assert.Equal(t, "6", mean)
}

func TestExportToWorkbookWithoutReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.xlsx")
	require.NoError(t, NewExportService(nil).ExportToWorkbook(path, exportFixture(), nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Info"}, f.GetSheetList())
}

func TestExportToDatabase(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	defer db.Close()

	repo := repositories.NewStargazerInfoRepository(db)
	service := NewExportService(repo)

	exportID, err := service.ExportToDatabase("octo/hello", exportFixture())
	require.NoError(t, err)
	assert.NotEmpty(t, exportID)

	count, err := repo.CountByExportID(exportID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := service.LoadFromDatabase("octo/hello")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, exportFixture(), stored)
}

func TestExportToDatabaseWithoutRepository(t *testing.T) {
	_, err := NewExportService(nil).ExportToDatabase("octo/hello", exportFixture())
	assert.Error(t, err)

	_, err = NewExportService(nil).LoadFromDatabase("octo/hello")
	assert.Error(t, err)
}

func TestExportToDatabaseReexportMovesRows(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	defer db.Close()

	repo := repositories.NewStargazerInfoRepository(db)
	service := NewExportService(repo)

	first, err := service.ExportToDatabase("octo/hello", exportFixture())
	require.NoError(t, err)
	second, err := service.ExportToDatabase("octo/hello", exportFixture())
	require.NoError(t, err)

	count, err := repo.CountByExportID(first)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "upsert retags rows with the latest export")

	stored, err := service.LoadFromDatabase("octo/hello")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.NotEqual(t, first, second)
}
