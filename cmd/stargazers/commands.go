package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rickstaa/get-stargazers-info/internal/handlers"
	"github.com/rickstaa/get-stargazers-info/internal/middleware"
	"github.com/rickstaa/get-stargazers-info/internal/models"
	"github.com/rickstaa/get-stargazers-info/internal/repositories"
	"github.com/rickstaa/get-stargazers-info/internal/services"
	"github.com/rickstaa/get-stargazers-info/pkg/config"
	"github.com/rickstaa/get-stargazers-info/pkg/database"
	"github.com/rickstaa/get-stargazers-info/pkg/logger"
)

func newGitHubClient(cfg *config.Config) (*services.GitHubClient, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}
	throttle := services.NewThrottle(
		cfg.RateLimit.Retries,
		time.Duration(cfg.RateLimit.SecondaryWaitSecs)*time.Second,
		time.Duration(cfg.RateLimit.MaxPrimaryWaitSecs)*time.Second,
	)
	return services.NewGitHubClient(cfg.GitHub.Token, cfg.GitHub.BaseURL, throttle)
}

func runEnumerate(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("enumerate", flag.ContinueOnError)
	resume := fs.Bool("resume", cfg.Collection.Resume, "continue from the saved stargazer checkpoint")
	pagination := fs.String("pagination", cfg.Collection.Pagination, "pagination strategy: graphql or rest")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}

	var pager services.StargazerPager
	switch *pagination {
	case config.PaginationGraphQL:
		pager = services.NewGraphQLStargazerPager(client)
	case config.PaginationREST:
		pager = services.NewRESTStargazerPager(client)
	default:
		return fmt.Errorf("invalid pagination %q", *pagination)
	}

	store := repositories.NewStargazerListRepository(cfg.StargazersFile())
	service := services.NewStargazerService(pager, store, cfg.Collection.SaveFrequency, *resume)

	list, err := service.Enumerate(ctx, cfg.Repository.Owner, cfg.Repository.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Retrieved %d stargazers of %s/%s into %s\n",
		len(list.Stargazers), cfg.Repository.Owner, cfg.Repository.Name, store.Path())
	return nil
}

func runCollect(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	resume := fs.Bool("resume", cfg.Collection.Resume, "continue from the saved info checkpoint")
	input := fs.String("input", cfg.StargazersFile(), "stargazer list produced by enumerate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !cfg.Collection.GetInfo && !cfg.Collection.GetTotalCommits {
		return errors.New("nothing to collect: GET_INFO and GET_TOTAL_COMMITS are both disabled")
	}

	list, err := repositories.NewStargazerListRepository(*input).Load()
	if err != nil {
		return fmt.Errorf("could not load stargazer list: %w", err)
	}
	if len(list.Stargazers) == 0 {
		return fmt.Errorf("%s: %w", *input, models.ErrEmptyStargazerList)
	}
	if !list.Complete() {
		logger.WithField("input", *input).Warn("Stargazer list is incomplete, collecting the stargazers retrieved so far")
	}

	client, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}

	store := repositories.NewInfoCheckpointRepository(cfg.InfoFile())
	service := services.NewInfoService(client, store, services.InfoOptions{
		GetInfo:         cfg.Collection.GetInfo,
		GetTotalCommits: cfg.Collection.GetTotalCommits,
		Resume:          *resume,
		LogFrequency:    cfg.Collection.LogFrequency,
		SaveFrequency:   cfg.Collection.SaveFrequency,
	})

	checkpoint, err := service.Collect(ctx, list.Stargazers)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Retrieved info of %d stargazers into %s\n", len(checkpoint.Info), store.Path())
	return nil
}

func runStats(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	input := fs.String("input", cfg.InfoFile(), "stargazer info produced by collect")
	filterZeros := fs.Bool("filter-zeros", cfg.Statistics.FilterZeros, "drop zero values per field")
	filterZeroUsers := fs.Bool("filter-zero-users", cfg.Statistics.FilterZeroUsers, "drop users whose counters are all zero")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	xlsx := fs.String("xlsx", "", "also write the records and report to this workbook")
	source := fs.String("source", "file", "where to read records from: file or db")
	if err := fs.Parse(args); err != nil {
		return err
	}

	infos, sourceName, err := loadStatsSource(cfg, *source, *input)
	if err != nil {
		return err
	}

	statisticsService := services.NewStatisticsService()
	report := statisticsService.Compute(infos, models.StatisticsFilters{
		ZeroUsers:  *filterZeroUsers,
		ZeroValues: *filterZeros,
	})
	report.Source = sourceName

	if *xlsx != "" {
		if err := services.NewExportService(nil).ExportToWorkbook(*xlsx, infos, report); err != nil {
			return err
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return statisticsService.WriteReport(stdout, report)
}

// loadStatsSource reads the records either from the collection output or from
// the export database, and names the source for the report.
func loadStatsSource(cfg *config.Config, source, input string) ([]models.StargazerInfo, string, error) {
	switch source {
	case "file":
		checkpoint, err := repositories.NewInfoCheckpointRepository(input).Load()
		if err != nil {
			return nil, "", fmt.Errorf("could not load stargazer info: %w", err)
		}
		if !checkpoint.Finished {
			logger.WithField("input", input).Warn("Stargazer info collection has not finished")
		}
		return checkpoint.Info, input, nil
	case "db":
		if err := database.Init(cfg.Database.Path); err != nil {
			return nil, "", fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()

		repository := cfg.Repository.Owner + "/" + cfg.Repository.Name
		exportService := services.NewExportService(repositories.NewStargazerInfoRepository(database.DB))
		infos, err := exportService.LoadFromDatabase(repository)
		if err != nil {
			return nil, "", err
		}
		if len(infos) == 0 {
			return nil, "", fmt.Errorf("no exported stargazers for %s in %s", repository, cfg.Database.Path)
		}
		return infos, cfg.Database.Path, nil
	default:
		return nil, "", fmt.Errorf("invalid source %q: expected file or db", source)
	}
}

func runExport(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	input := fs.String("input", cfg.InfoFile(), "stargazer info produced by collect")
	toDB := fs.Bool("db", true, "upsert the records into the SQLite database at DB_PATH")
	xlsx := fs.String("xlsx", "", "write the records and statistics to this workbook")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*toDB && *xlsx == "" {
		return errors.New("nothing to export: pass -db or -xlsx")
	}

	checkpoint, err := repositories.NewInfoCheckpointRepository(*input).Load()
	if err != nil {
		return fmt.Errorf("could not load stargazer info: %w", err)
	}

	var infoRepo *repositories.StargazerInfoRepository
	if *toDB {
		if err := database.Init(cfg.Database.Path); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()
		infoRepo = repositories.NewStargazerInfoRepository(database.DB)
	}
	exportService := services.NewExportService(infoRepo)

	if *toDB {
		exportID, err := exportService.ExportToDatabase(cfg.Repository.Owner+"/"+cfg.Repository.Name, checkpoint.Info)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Exported %d stargazers to %s (export %s)\n", len(checkpoint.Info), cfg.Database.Path, exportID)
	}

	if *xlsx != "" {
		report := services.NewStatisticsService().Compute(checkpoint.Info, models.StatisticsFilters{
			ZeroUsers:  cfg.Statistics.FilterZeroUsers,
			ZeroValues: cfg.Statistics.FilterZeros,
		})
		if err := exportService.ExportToWorkbook(*xlsx, checkpoint.Info, report); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Exported %d stargazers to %s\n", len(checkpoint.Info), *xlsx)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.String("port", cfg.Server.Port, "listen port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	setupRoutes(router, cfg)

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": server.Addr, "data_dir": cfg.Collection.DataDir}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func setupRoutes(router *gin.Engine, cfg *config.Config) {
	stargazerHandler := handlers.NewStargazerHandler(
		cfg.Repository.Owner+"/"+cfg.Repository.Name,
		repositories.NewStargazerListRepository(cfg.StargazersFile()),
		repositories.NewInfoCheckpointRepository(cfg.InfoFile()),
		services.NewStatisticsService(),
		models.StatisticsFilters{
			ZeroUsers:  cfg.Statistics.FilterZeroUsers,
			ZeroValues: cfg.Statistics.FilterZeros,
		},
	)
	healthHandler := handlers.NewHealthHandler()
	notFoundHandler := handlers.NewNotFoundHandler()

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/stargazers", stargazerHandler.Stargazers)
	router.GET("/info", stargazerHandler.Info)
	router.GET("/stats", stargazerHandler.Stats)
	router.NoRoute(notFoundHandler.NotFound)
}
