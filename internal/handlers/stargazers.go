package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rickstaa/get-stargazers-info/internal/models"
	"github.com/rickstaa/get-stargazers-info/internal/repositories"
	"github.com/rickstaa/get-stargazers-info/internal/services"
	"github.com/rickstaa/get-stargazers-info/pkg/logger"
)

// StargazerHandler serves the stage outputs of one repository read-only
type StargazerHandler struct {
	repository        string
	listRepo          *repositories.StargazerListRepository
	infoRepo          *repositories.InfoCheckpointRepository
	statisticsService *services.StatisticsService
	defaults          models.StatisticsFilters
}

func NewStargazerHandler(repository string, listRepo *repositories.StargazerListRepository,
	infoRepo *repositories.InfoCheckpointRepository, statisticsService *services.StatisticsService,
	defaults models.StatisticsFilters) *StargazerHandler {
	return &StargazerHandler{
		repository:        repository,
		listRepo:          listRepo,
		infoRepo:          infoRepo,
		statisticsService: statisticsService,
		defaults:          defaults,
	}
}

// Stargazers returns the enumerated stargazer list
func (h *StargazerHandler) Stargazers(c *gin.Context) {
	list, err := h.listRepo.Load()
	if err != nil {
		h.loadError(c, err, h.listRepo.Path())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"repository":  h.repository,
		"count":       len(list.Stargazers),
		"complete":    list.Complete(),
		"hasNextPage": list.HasNextPage,
		"stargazers":  list.Stargazers,
	})
}

// Info returns the collected stargazer info checkpoint
func (h *StargazerHandler) Info(c *gin.Context) {
	checkpoint, err := h.infoRepo.Load()
	if err != nil {
		h.loadError(c, err, h.infoRepo.Path())
		return
	}

	c.JSON(http.StatusOK, checkpoint)
}

// Stats computes the statistics report; filterZeros and filterZeroUsers
// override the configured filters.
func (h *StargazerHandler) Stats(c *gin.Context) {
	filters := h.defaults
	var err error
	if filters.ZeroValues, err = queryBool(c, "filterZeros", filters.ZeroValues); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filters.ZeroUsers, err = queryBool(c, "filterZeroUsers", filters.ZeroUsers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checkpoint, err := h.infoRepo.Load()
	if err != nil {
		h.loadError(c, err, h.infoRepo.Path())
		return
	}

	report := h.statisticsService.Compute(checkpoint.Info, filters)
	report.Source = h.infoRepo.Path()
	c.JSON(http.StatusOK, report)
}

func (h *StargazerHandler) loadError(c *gin.Context, err error, path string) {
	if errors.Is(err, repositories.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "stage output not found", "path": path})
		return
	}
	logger.WithError(err).WithField("path", path).Error("Failed to load stage output")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stage output"})
}

func queryBool(c *gin.Context, key string, fallback bool) (bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New("invalid value for " + key + ": " + raw)
	}
	return v, nil
}
