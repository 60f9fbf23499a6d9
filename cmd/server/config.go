package main

import (
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/api"
)

// Config is the server environment.
type Config struct {
	Port     string `envconfig:"PORT" default:"2000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	DataDir  string `envconfig:"DATA_DIR" default:"data"`
	// DBPath defaults to DataDir/fault-triage.db.
	DBPath string `envconfig:"FAULT_TRIAGE_DB_PATH"`

	ArtifactBackend  string `envconfig:"ARTIFACT_BACKEND" default:"file"`
	ArtifactDir      string `envconfig:"ARTIFACT_DIR"`
	CategoryArtifact string `envconfig:"CATEGORY_MODEL_PATH" default:"category_model.json"`
	PriorityArtifact string `envconfig:"PRIORITY_MODEL_PATH" default:"priority_model.json"`

	AllowedOrigins       []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://127.0.0.1:3000"`
	MaxDescriptionLength int      `envconfig:"MAX_DESCRIPTION_LENGTH" default:"5000"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "fault-triage.db")
	}
	return cfg, nil
}

func (c Config) apiConfig() api.Config {
	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" && trimmed != "*" {
			origins = append(origins, trimmed)
		}
	}
	return api.Config{
		DBPath:               c.DBPath,
		SilentDB:             true,
		ArtifactBackend:      c.ArtifactBackend,
		ArtifactDir:          c.ArtifactDir,
		CategoryArtifact:     c.CategoryArtifact,
		PriorityArtifact:     c.PriorityArtifact,
		AllowedOrigins:       origins,
		MaxDescriptionLength: c.MaxDescriptionLength,
	}
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		logrus.WithField("level", level).Warn("unknown log level, using info")
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}
