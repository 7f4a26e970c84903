package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Pagination strategies for stargazer enumeration
const (
	PaginationGraphQL = "graphql"
	PaginationREST    = "rest"
)

// FrequencyStep is the granularity log and save frequencies must follow.
const FrequencyStep = 100

type Config struct {
	GitHub     GitHubConfig
	Repository RepositoryConfig
	Collection CollectionConfig
	Statistics StatisticsConfig
	RateLimit  RateLimitConfig
	Database   DatabaseConfig
	Server     ServerConfig
}

type GitHubConfig struct {
	Token   string
	BaseURL string
}

type RepositoryConfig struct {
	Owner string
	Name  string
}

type CollectionConfig struct {
	DataDir         string
	Pagination      string
	GetInfo         bool
	GetTotalCommits bool
	Resume          bool
	LogFrequency    int
	SaveFrequency   int
}

type StatisticsConfig struct {
	FilterZeroUsers bool
	FilterZeros     bool
}

type RateLimitConfig struct {
	Retries            int
	SecondaryWaitSecs  int
	MaxPrimaryWaitSecs int
}

type DatabaseConfig struct {
	Path string
}

type ServerConfig struct {
	Port string
	Mode string
}

var AppConfig *Config

// Load loads configuration from .env file and environment variables
func Load() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dataDir := getEnv("DATA_DIR", "data")

	AppConfig = &Config{
		GitHub: GitHubConfig{
			Token:   getEnv("GITHUB_TOKEN", ""),
			BaseURL: getEnv("GITHUB_API_URL", "https://api.github.com/"),
		},
		Repository: RepositoryConfig{
			Owner: getEnv("OWNER", ""),
			Name:  getEnv("REPO", ""),
		},
		Collection: CollectionConfig{
			DataDir:         dataDir,
			Pagination:      strings.ToLower(getEnv("PAGINATION", PaginationGraphQL)),
			GetInfo:         getEnvAsBool("GET_INFO", true),
			GetTotalCommits: getEnvAsBool("GET_TOTAL_COMMITS", false),
			Resume:          getEnvAsBool("RESUME", false),
			LogFrequency:    getEnvAsInt("LOG_FREQUENCY", FrequencyStep),
			SaveFrequency:   getEnvAsInt("SAVE_FREQUENCY", FrequencyStep),
		},
		Statistics: StatisticsConfig{
			FilterZeroUsers: getEnvAsBool("FILTER_ZERO_USERS", false),
			FilterZeros:     getEnvAsBool("FILTER_ZEROS", false),
		},
		RateLimit: RateLimitConfig{
			Retries:            getEnvAsInt("RATE_LIMIT_RETRIES", 1),
			SecondaryWaitSecs:  getEnvAsInt("SECONDARY_RATE_LIMIT_WAIT", 60),
			MaxPrimaryWaitSecs: getEnvAsInt("RATE_LIMIT_MAX_WAIT", 3600),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", filepath.Join(dataDir, "stargazers.db")),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Mode: getEnv("GIN_MODE", "release"),
		},
	}

	return nil
}

// Validate checks the settings every stage depends on
func (c *Config) Validate() error {
	if c.Repository.Owner == "" || c.Repository.Name == "" {
		return errors.New("OWNER and REPO must be set")
	}
	if c.Collection.Pagination != PaginationGraphQL && c.Collection.Pagination != PaginationREST {
		return fmt.Errorf("invalid PAGINATION %q: expected %q or %q",
			c.Collection.Pagination, PaginationGraphQL, PaginationREST)
	}
	if err := validateFrequency("LOG_FREQUENCY", c.Collection.LogFrequency); err != nil {
		return err
	}
	if err := validateFrequency("SAVE_FREQUENCY", c.Collection.SaveFrequency); err != nil {
		return err
	}
	if c.RateLimit.Retries < 0 {
		return errors.New("RATE_LIMIT_RETRIES cannot be negative")
	}
	return nil
}

// RequireToken reports an error when no GitHub token is configured
func (c *Config) RequireToken() error {
	if c.GitHub.Token == "" {
		return errors.New("GITHUB_TOKEN must be set")
	}
	return nil
}

// StargazersFile is the enumeration output for the configured repository
func (c *Config) StargazersFile() string {
	return filepath.Join(c.Collection.DataDir,
		fmt.Sprintf("%s-%s-stargazers.json", c.Repository.Owner, c.Repository.Name))
}

// InfoFile is the collection output; total commit runs are kept apart
// because they take much longer and hit a different rate limit.
func (c *Config) InfoFile() string {
	name := fmt.Sprintf("%s-%s-stargazers-info.json", c.Repository.Owner, c.Repository.Name)
	if c.Collection.GetTotalCommits {
		name = "total-commits-" + name
	}
	return filepath.Join(c.Collection.DataDir, name)
}

func validateFrequency(name string, value int) error {
	if value <= 0 || value%FrequencyStep != 0 {
		return fmt.Errorf("%s must be a positive multiple of %d, got %d", name, FrequencyStep, value)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
