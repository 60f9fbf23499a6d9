package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Fault statuses accepted by the status workflow.
const (
	StatusSubmitted  = "Submitted"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusRejected   = "Rejected"
)

// AllowedStatuses lists valid fault statuses in workflow order.
var AllowedStatuses = []string{StatusSubmitted, StatusInProgress, StatusResolved, StatusRejected}

// Fault is a reported maintenance issue with its predicted triage labels.
type Fault struct {
	ID          uint   `gorm:"primaryKey"`
	Description string `gorm:"type:text"`
	Location    string `gorm:"size:255"`
	HostelName  string `gorm:"size:128;index"`
	Floor       string `gorm:"size:32"`
	Category    string `gorm:"size:64;index"`
	Priority    string `gorm:"size:32;index"`
	Status      string `gorm:"size:32;index"`
	// PredictionError is set when the labels are the fallback defaults.
	PredictionError string `gorm:"size:255"`
	AssignedToID    *uint  `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Employee is a maintenance worker who can be assigned faults in the categories
// they specialize in.
type Employee struct {
	ID              uint                     `gorm:"primaryKey"`
	Name            string                   `gorm:"size:128"`
	Email           string                   `gorm:"size:255;uniqueIndex"`
	Specializations []EmployeeSpecialization `gorm:"foreignKey:EmployeeID"`
	CreatedAt       time.Time
}

// Categories returns the fault categories the employee handles.
func (e Employee) Categories() []string {
	return lo.Map(e.Specializations, func(s EmployeeSpecialization, _ int) string { return s.Category })
}

// EmployeeSpecialization links an employee to one fault category.
type EmployeeSpecialization struct {
	ID         uint   `gorm:"primaryKey"`
	EmployeeID uint   `gorm:"uniqueIndex:idx_employee_category"`
	Category   string `gorm:"size:64;uniqueIndex:idx_employee_category;index"`
}

// Comment is a note left on a fault.
type Comment struct {
	ID        uint   `gorm:"primaryKey"`
	FaultID   uint   `gorm:"index"`
	Author    string `gorm:"size:128"`
	Text      string `gorm:"type:text"`
	CreatedAt time.Time
}

// ModelArtifact stores a serialized pipeline keyed by name.
type ModelArtifact struct {
	Name      string `gorm:"primaryKey;size:255"`
	Data      []byte
	Size      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrainingRun records one execution of the trainer.
type TrainingRun struct {
	ID                 string `gorm:"primaryKey;size:64"`
	CorpusPath         string `gorm:"size:512"`
	CategoryArtifact   string `gorm:"size:512"`
	PriorityArtifact   string `gorm:"size:512"`
	Status             string `gorm:"size:32;index"`
	Message            string `gorm:"size:512"`
	RowsRead           int
	RowsDropped        int
	VocabularySize     int
	CategoryLabelsJSON string `gorm:"type:text"`
	PriorityLabelsJSON string `gorm:"type:text"`
	Holdout            float64
	CategoryAccuracy   *float64
	PriorityAccuracy   *float64
	DurationMs         int64
	CreatedAt          time.Time `gorm:"autoCreateTime"`
}

// SetLabels stores both label sets as JSON.
func (r *TrainingRun) SetLabels(category, priority []string) {
	r.CategoryLabelsJSON = encodeStrings(category)
	r.PriorityLabelsJSON = encodeStrings(priority)
}

// CategoryLabels returns the decoded category label set.
func (r *TrainingRun) CategoryLabels() []string {
	return decodeStrings(r.CategoryLabelsJSON)
}

// PriorityLabels returns the decoded priority label set.
func (r *TrainingRun) PriorityLabels() []string {
	return decodeStrings(r.PriorityLabelsJSON)
}

func encodeStrings(values []string) string {
	if values == nil {
		return "[]"
	}
	payload, _ := json.Marshal(values)
	return string(payload)
}

func decodeStrings(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
