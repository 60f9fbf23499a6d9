package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/artifact"
	"fault-triage/backend/internal/classify"
	"fault-triage/backend/internal/corpus"
	"fault-triage/backend/internal/store"
	"fault-triage/backend/internal/util"
)

const (
	TargetCategory = "category"
	TargetPriority = "priority"
)

// Options configures a training run.
type Options struct {
	CorpusPath   string
	CategoryPath string
	PriorityPath string
	Store        artifact.Store
	Alpha        float64
	// Holdout, when in (0,1), additionally reports accuracy on a held-out slice.
	// The persisted pipelines are always fit on every usable record.
	Holdout float64
	// Ledger optionally records the run.
	Ledger *store.Database
}

// Summary describes a finished training run.
type Summary struct {
	RunID            string
	RowsRead         int
	RowsDropped      int
	RowsUsed         int
	VocabularySize   int
	CategoryLabels   []string
	PriorityLabels   []string
	CategoryCounts   map[string]int
	PriorityCounts   map[string]int
	CategoryAccuracy *float64
	PriorityAccuracy *float64
	Duration         time.Duration
}

// TrainAndSave fits the category and priority pipelines on the corpus and writes both
// artifacts. Nothing is written unless both pipelines fit and encode.
func TrainAndSave(ctx context.Context, opts Options) (summary *Summary, err error) {
	if opts.Store == nil {
		return nil, errors.New("artifact store is required")
	}
	if opts.CategoryPath == "" || opts.PriorityPath == "" {
		return nil, errors.New("category and priority output paths are required")
	}
	if opts.Alpha <= 0 {
		opts.Alpha = classify.DefaultAlpha
	}

	timer := util.StartTimer()
	summary = &Summary{RunID: uuid.NewString()}
	log := logrus.WithField("run", summary.RunID)

	defer func() {
		summary.Duration = timer.Elapsed()
		recordRun(opts, summary, err)
	}()

	records, err := corpus.Load(opts.CorpusPath)
	if err != nil {
		return summary, err
	}
	summary.RowsRead = len(records)

	usable, dropped := corpus.Filter(records)
	summary.RowsDropped = dropped
	summary.RowsUsed = len(usable)
	log.WithFields(logrus.Fields{
		"corpus":  opts.CorpusPath,
		"rows":    len(records),
		"dropped": dropped,
	}).Info("training corpus loaded")
	if len(usable) == 0 {
		return summary, fmt.Errorf("%w: no complete records in %s", classify.ErrEmptyCorpus, opts.CorpusPath)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	docs := corpus.Descriptions(usable)
	categories := corpus.Categories(usable)
	priorities := corpus.Priorities(usable)
	summary.CategoryCounts = lo.CountValues(categories)
	summary.PriorityCounts = lo.CountValues(priorities)

	log.Info("training category classification model")
	category := classify.NewPipeline(TargetCategory, opts.Alpha)
	if err := category.Fit(docs, categories); err != nil {
		return summary, err
	}

	log.Info("training priority classification model")
	priority := classify.NewPipeline(TargetPriority, opts.Alpha)
	if err := priority.Fit(docs, priorities); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	summary.VocabularySize = category.VocabularySize()
	summary.CategoryLabels = category.Labels()
	summary.PriorityLabels = priority.Labels()

	if opts.Holdout > 0 && opts.Holdout < 1 {
		summary.CategoryAccuracy = holdoutAccuracy(TargetCategory, docs, categories, opts.Holdout, opts.Alpha)
		summary.PriorityAccuracy = holdoutAccuracy(TargetPriority, docs, priorities, opts.Holdout, opts.Alpha)
	}

	categoryData, err := artifact.Marshal(category)
	if err != nil {
		return summary, err
	}
	priorityData, err := artifact.Marshal(priority)
	if err != nil {
		return summary, err
	}
	if err := opts.Store.Write(opts.CategoryPath, categoryData); err != nil {
		return summary, err
	}
	if err := opts.Store.Write(opts.PriorityPath, priorityData); err != nil {
		return summary, err
	}

	log.WithFields(logrus.Fields{
		"category_artifact": opts.CategoryPath,
		"priority_artifact": opts.PriorityPath,
		"vocabulary":        summary.VocabularySize,
		"duration_ms":       timer.ElapsedMs(),
	}).Info("models trained and saved")
	return summary, nil
}

func recordRun(opts Options, summary *Summary, runErr error) {
	if opts.Ledger == nil || summary == nil {
		return
	}
	run := &store.TrainingRun{
		ID:               summary.RunID,
		CorpusPath:       opts.CorpusPath,
		CategoryArtifact: opts.CategoryPath,
		PriorityArtifact: opts.PriorityPath,
		Status:           "completed",
		RowsRead:         summary.RowsRead,
		RowsDropped:      summary.RowsDropped,
		VocabularySize:   summary.VocabularySize,
		Holdout:          opts.Holdout,
		CategoryAccuracy: summary.CategoryAccuracy,
		PriorityAccuracy: summary.PriorityAccuracy,
		DurationMs:       summary.Duration.Milliseconds(),
	}
	run.SetLabels(summary.CategoryLabels, summary.PriorityLabels)
	if runErr != nil {
		run.Status = "failed"
		run.Message = truncate(runErr.Error(), 512)
	}
	if err := opts.Ledger.SaveTrainingRun(run); err != nil {
		logrus.WithError(err).WithField("run", summary.RunID).Warn("record training run")
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
