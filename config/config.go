package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	WorkspaceRoot  string
	FuzzImage      string
	LogLevel       string
	DatabaseURL    string // optional crash sink
	RedisURL       string // optional container journal
	FuzzWorkers    int
	FuzzIterations int
	BuildTimeout   time.Duration
	StopTimeout    time.Duration
	CacheTTL       time.Duration
}

// ProjectConfig is the optional codeforge.yaml at the workspace root. Values
// set there override the environment defaults for that workspace.
type ProjectConfig struct {
	Image      string `yaml:"image"`
	Workers    int    `yaml:"workers"`
	Iterations int    `yaml:"iterations"`
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	godotenv.Load()

	workspaceRoot := os.Getenv("WORKSPACE_ROOT")
	if workspaceRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			logger.Fatal("WORKSPACE_ROOT not set and cannot determine working directory", zap.Error(err))
		}
		workspaceRoot = cwd
	}

	config := &AppConfig{
		WorkspaceRoot:  workspaceRoot,
		FuzzImage:      getEnv("FUZZ_IMAGE", "codeforge-fuzz:latest"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		FuzzWorkers:    parseInt(os.Getenv("FUZZ_WORKERS"), 4),
		FuzzIterations: parseInt(os.Getenv("FUZZ_ITERATIONS"), 1000000),
		BuildTimeout:   parseDuration(os.Getenv("BUILD_TIMEOUT"), 30*time.Minute),
		StopTimeout:    parseDuration(os.Getenv("STOP_TIMEOUT"), 10*time.Second),
		CacheTTL:       parseDuration(os.Getenv("CACHE_TTL"), 5*time.Minute),
	}

	if project, err := loadProjectConfig(workspaceRoot); err == nil {
		if project.Image != "" {
			config.FuzzImage = project.Image
		}
		if project.Workers > 0 {
			config.FuzzWorkers = project.Workers
		}
		if project.Iterations > 0 {
			config.FuzzIterations = project.Iterations
		}
	}

	return config
}

// FuzzingDir is the central directory all built fuzzers and their output
// directories are collected under.
func (c *AppConfig) FuzzingDir() string {
	return filepath.Join(c.WorkspaceRoot, "fuzzing")
}

func loadProjectConfig(workspaceRoot string) (*ProjectConfig, error) {
	content, err := os.ReadFile(filepath.Join(workspaceRoot, "codeforge.yaml"))
	if err != nil {
		return nil, err
	}
	var project ProjectConfig
	if err := yaml.Unmarshal(content, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
