package predict

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/artifact"
	"fault-triage/backend/internal/classify"
)

// State is the service lifecycle state.
type State string

const (
	StateReady    State = "READY"
	StateDegraded State = "DEGRADED"
)

// Fallback labels returned whenever a pipeline is unavailable.
const (
	FallbackPriority = "Low"
	FallbackCategory = "General"
)

// ErrModelsNotLoaded is reported in Result.Error while the service is degraded.
var ErrModelsNotLoaded = errors.New("models not loaded")

// Result is the triage outcome for one description.
type Result struct {
	Priority string `json:"priority"`
	Category string `json:"category"`
	Error    string `json:"error,omitempty"`
}

// Fallback reports whether the result carries the default labels.
func (r Result) Fallback() bool {
	return r.Error != ""
}

// PipelineStatus describes one loaded (or missing) pipeline.
type PipelineStatus struct {
	Name           string   `json:"name"`
	Target         string   `json:"target"`
	Loaded         bool     `json:"loaded"`
	Labels         []string `json:"labels,omitempty"`
	VocabularySize int      `json:"vocabulary_size,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Status is a snapshot of the service state.
type Status struct {
	State    State          `json:"state"`
	Category PipelineStatus `json:"category"`
	Priority PipelineStatus `json:"priority"`
}

type slot struct {
	name     string
	target   string
	pipeline *classify.Pipeline
	loadErr  error
}

func (s slot) status() PipelineStatus {
	st := PipelineStatus{Name: s.name, Target: s.target, Loaded: s.pipeline != nil}
	if s.pipeline != nil {
		st.Labels = s.pipeline.Labels()
		st.VocabularySize = s.pipeline.VocabularySize()
	}
	if s.loadErr != nil {
		st.Error = s.loadErr.Error()
	}
	return st
}

// Service answers triage requests from the two persisted pipelines. It is immutable
// after New returns and safe for concurrent use.
type Service struct {
	category slot
	priority slot
}

// New loads both artifacts before returning. Each load failure is recorded on its own
// pipeline and leaves the service DEGRADED; New itself never fails.
func New(store artifact.Store, categoryName, priorityName string) *Service {
	s := &Service{
		category: load(store, categoryName, "category"),
		priority: load(store, priorityName, "priority"),
	}
	logrus.WithFields(logrus.Fields{
		"state":    s.State(),
		"category": s.category.loadErr == nil,
		"priority": s.priority.loadErr == nil,
	}).Info("prediction service initialised")
	return s
}

// NewFromPipelines builds a service around already-fitted pipelines. A nil or unfitted
// pipeline counts as missing.
func NewFromPipelines(category, priority *classify.Pipeline) *Service {
	return &Service{
		category: fromPipeline("category", category),
		priority: fromPipeline("priority", priority),
	}
}

func fromPipeline(target string, p *classify.Pipeline) slot {
	if !p.Fitted() {
		return slot{name: target, target: target, loadErr: fmt.Errorf("%s pipeline: %w", target, classify.ErrNotFitted)}
	}
	return slot{name: target, target: target, pipeline: p}
}

func load(store artifact.Store, name, target string) slot {
	sl := slot{name: name, target: target}
	if store == nil {
		sl.loadErr = errors.New("no artifact store configured")
		return sl
	}
	p, err := artifact.LoadPipeline(store, name)
	if err != nil {
		sl.loadErr = err
		logrus.WithError(err).WithField("artifact", name).Warn("model unavailable, serving fallback labels")
		return sl
	}
	if p.Target() != "" && p.Target() != target {
		logrus.WithFields(logrus.Fields{
			"artifact": name,
			"expected": target,
			"found":    p.Target(),
		}).Warn("artifact target does not match its slot")
	}
	sl.pipeline = p
	logrus.WithFields(logrus.Fields{
		"artifact":   name,
		"labels":     p.Labels(),
		"vocabulary": p.VocabularySize(),
	}).Info("model loaded")
	return sl
}

// State reports READY only when both pipelines are loaded.
func (s *Service) State() State {
	if s.category.pipeline != nil && s.priority.pipeline != nil {
		return StateReady
	}
	return StateDegraded
}

// Status returns the current per-pipeline state.
func (s *Service) Status() Status {
	return Status{
		State:    s.State(),
		Category: s.category.status(),
		Priority: s.priority.status(),
	}
}

// Predict classifies one description. It never fails: when either pipeline is missing
// or errors, the fallback labels are returned with Error populated.
func (s *Service) Predict(description string) Result {
	if s.State() != StateReady {
		return fallback(ErrModelsNotLoaded)
	}

	docs := []string{description}
	priority, err := s.priority.pipeline.Predict(docs)
	if err != nil {
		logrus.WithError(err).Error("priority prediction failed")
		return fallback(err)
	}
	category, err := s.category.pipeline.Predict(docs)
	if err != nil {
		logrus.WithError(err).Error("category prediction failed")
		return fallback(err)
	}
	return Result{Priority: priority[0], Category: category[0]}
}

func fallback(err error) Result {
	return Result{
		Priority: FallbackPriority,
		Category: FallbackCategory,
		Error:    err.Error(),
	}
}
