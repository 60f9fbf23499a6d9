package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/api"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	configureLogging(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	server, err := api.NewServer(cfg.apiConfig())
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"model_state": server.Predictor().State(),
		"artifacts":   cfg.ArtifactBackend,
	}).Info("starting fault-triage backend")
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
