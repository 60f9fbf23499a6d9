package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/artifact"
	"fault-triage/backend/internal/classify"
	"fault-triage/backend/internal/store"
	"fault-triage/backend/internal/trainer"
)

func main() {
	_ = godotenv.Load()

	var (
		corpusPath  = flag.String("corpus", "", "Training CSV with description,category,priority columns (env TRAINING_DATA_PATH)")
		categoryOut = flag.String("category-out", "", "Category artifact name (env CATEGORY_MODEL_PATH)")
		priorityOut = flag.String("priority-out", "", "Priority artifact name (env PRIORITY_MODEL_PATH)")
		artifactDir = flag.String("artifact-dir", "", "Directory relative artifact names resolve under (env ARTIFACT_DIR)")
		backend     = flag.String("backend", "", "Artifact backend: file or sqlite (env ARTIFACT_BACKEND)")
		dbPath      = flag.String("db", "", "SQLite database for the sqlite backend and run ledger (env FAULT_TRIAGE_DB_PATH)")
		alpha       = flag.Float64("alpha", classify.DefaultAlpha, "Additive smoothing for naive Bayes")
		holdout     = flag.Float64("holdout", 0, "Fraction held out to report accuracy, 0 disables")
		noLedger    = flag.Bool("no-ledger", false, "Do not record the run in the database")
	)
	flag.Parse()

	envDefault(corpusPath, "TRAINING_DATA_PATH", "fault_data.csv")
	envDefault(categoryOut, "CATEGORY_MODEL_PATH", "category_model.json")
	envDefault(priorityOut, "PRIORITY_MODEL_PATH", "priority_model.json")
	envDefault(artifactDir, "ARTIFACT_DIR", "")
	envDefault(backend, "ARTIFACT_BACKEND", "file")
	envDefault(dbPath, "FAULT_TRIAGE_DB_PATH", "")
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}
	if *holdout < 0 || *holdout >= 1 {
		logrus.Fatalf("holdout must be in [0,1), got %s", strconv.FormatFloat(*holdout, 'f', -1, 64))
	}

	var db *store.Database
	if *dbPath != "" {
		opened, err := store.Open(*dbPath, true)
		if err != nil {
			logrus.Fatalf("open database: %v", err)
		}
		db = opened
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logrus.WithError(cerr).Warn("close database")
			}
		}()
	}

	var artifacts artifact.Store
	switch strings.ToLower(*backend) {
	case "file":
		artifacts = artifact.NewFileStore(*artifactDir)
	case "sqlite":
		if db == nil {
			logrus.Fatalf("sqlite backend requires -db or FAULT_TRIAGE_DB_PATH")
		}
		artifacts = artifact.NewDBStore(db)
	default:
		logrus.Fatalf("unknown artifact backend %q", *backend)
	}

	opts := trainer.Options{
		CorpusPath:   *corpusPath,
		CategoryPath: *categoryOut,
		PriorityPath: *priorityOut,
		Store:        artifacts,
		Alpha:        *alpha,
		Holdout:      *holdout,
	}
	if db != nil && !*noLedger {
		opts.Ledger = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := trainer.TrainAndSave(ctx, opts)
	if err != nil {
		logrus.Fatalf("train models: %v", err)
	}
	renderSummary(os.Stdout, summary, opts)
}

func envDefault(value *string, key, fallback string) {
	if strings.TrimSpace(*value) != "" {
		return
	}
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*value = v
		return
	}
	*value = fallback
}
