package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickstaa/get-stargazers-info/internal/models"
	"github.com/rickstaa/get-stargazers-info/internal/repositories"
	"github.com/rickstaa/get-stargazers-info/internal/services"
)

type testServer struct {
	router   *gin.Engine
	listRepo *repositories.StargazerListRepository
	infoRepo *repositories.InfoCheckpointRepository
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	listRepo := repositories.NewStargazerListRepository(filepath.Join(dir, "octo-hello-stargazers.json"))
	infoRepo := repositories.NewInfoCheckpointRepository(filepath.Join(dir, "octo-hello-stargazers-info.json"))
	handler := NewStargazerHandler("octo/hello", listRepo, infoRepo, services.NewStatisticsService(), models.StatisticsFilters{})

	router := gin.New()
	router.GET("/health", NewHealthHandler().HealthCheck)
	router.GET("/stargazers", handler.Stargazers)
	router.GET("/info", handler.Info)
	router.GET("/stats", handler.Stats)
	router.NoRoute(NewNotFoundHandler().NotFound)

	return &testServer{router: router, listRepo: listRepo, infoRepo: infoRepo}
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seedInfo(t *testing.T) {
	require.NoError(t, s.infoRepo.Save(&models.InfoCheckpoint{
		LastStargazer: "d",
		Finished:      true,
		Info: []models.StargazerInfo{
			{Name: "a", Stars: models.Int(0)},
			{Name: "b", Stars: models.Int(0)},
			{Name: "c", Stars: models.Int(5)},
			{Name: "d", Stars: models.Int(10)},
		},
	}))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func starsSummary(t *testing.T, body map[string]interface{}) map[string]interface{} {
	summaries, ok := body["summaries"].([]interface{})
	require.True(t, ok)
	for _, s := range summaries {
		summary := s.(map[string]interface{})
		if summary["field"] == "stars" {
			return summary
		}
	}
	t.Fatal("stars summary missing")
	return nil
}

func TestHealthCheck(t *testing.T) {
	w := newTestServer(t).get("/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestStargazers(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.listRepo.Save(&models.StargazerList{Stargazers: []string{"a", "b"}}))

	w := s.get("/stargazers")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "octo/hello", body["repository"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, true, body["complete"])
	assert.Equal(t, []interface{}{"a", "b"}, body["stargazers"])
}

func TestStageOutputsMissing(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/stargazers", "/info", "/stats"} {
		w := s.get(path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestCorruptStageOutput(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(s.infoRepo.Path(), []byte("{not json"), 0o644))

	w := s.get("/info")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestInfo(t *testing.T) {
	s := newTestServer(t)
	s.seedInfo(t)

	w := s.get("/info")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["finished"])
	assert.Equal(t, "d", body["lastStargazer"])
	assert.Len(t, body["info"], 4)
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	s.seedInfo(t)

	testCases := []struct {
		name  string
		path  string
		count float64
		mean  float64
	}{
		{name: "No filters", path: "/stats", count: 4, mean: 3.75},
		{name: "Zero values filtered", path: "/stats?filterZeros=true", count: 2, mean: 7.5},
		{name: "Zero users filtered", path: "/stats?filterZeroUsers=1", count: 2, mean: 7.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.get(tc.path)
			require.Equal(t, http.StatusOK, w.Code)

			body := decode(t, w)
			assert.Equal(t, s.infoRepo.Path(), body["source"])
			stars := starsSummary(t, body)
			assert.Equal(t, tc.count, stars["count"])
			assert.Equal(t, tc.mean, stars["mean"])
		})
	}
}

func TestStatsEmptyFieldIsNull(t *testing.T) {
	s := newTestServer(t)
	s.seedInfo(t)

	w := s.get("/stats")
	require.Equal(t, http.StatusOK, w.Code)

	summaries := decode(t, w)["summaries"].([]interface{})
	for _, raw := range summaries {
		summary := raw.(map[string]interface{})
		if summary["field"] == "followers" {
			assert.Nil(t, summary["mean"])
			assert.Equal(t, float64(0), summary["count"])
		}
	}
}

func TestStatsInvalidFilter(t *testing.T) {
	s := newTestServer(t)
	s.seedInfo(t)

	w := s.get("/stats?filterZeros=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotFound(t *testing.T) {
	w := newTestServer(t).get("/nope")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/nope", decode(t, w)["path"])
}
