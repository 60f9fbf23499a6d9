package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrInvalidStatus is returned when a fault status outside AllowedStatuses is requested.
var ErrInvalidStatus = errors.New("invalid fault status")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Fault{}, &Employee{}, &EmployeeSpecialization{}, &Comment{}, &ModelArtifact{}, &TrainingRun{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PutArtifact inserts or fully replaces the named artifact.
func (d *Database) PutArtifact(name string, data []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("artifact name is empty")
	}
	row := &ModelArtifact{Name: name, Data: data, Size: len(data)}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
	}).Create(row).Error
}

// GetArtifact loads the named artifact. Missing rows return gorm.ErrRecordNotFound.
func (d *Database) GetArtifact(name string) (*ModelArtifact, error) {
	var row ModelArtifact
	if err := d.gorm.Where("name = ?", strings.TrimSpace(name)).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveTrainingRun creates or updates a training run row.
func (d *Database) SaveTrainingRun(run *TrainingRun) error {
	if run == nil {
		return errors.New("training run is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Save(run).Error
}

// ListTrainingRuns returns the most recent runs first.
func (d *Database) ListTrainingRuns(limit int) ([]TrainingRun, error) {
	query := d.gorm.Model(&TrainingRun{}).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []TrainingRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateFault inserts a new fault report. Empty status defaults to Submitted.
func (d *Database) CreateFault(f *Fault) error {
	if f == nil {
		return errors.New("fault is nil")
	}
	if f.Status == "" {
		f.Status = StatusSubmitted
	}
	if !ValidStatus(f.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(f).Error
}

// GetFault retrieves a fault by ID.
func (d *Database) GetFault(id uint) (*Fault, error) {
	var f Fault
	if err := d.gorm.First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateFaultStatus moves a fault to the given status and returns the updated row.
func (d *Database) UpdateFaultStatus(id uint, status string) (*Fault, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	d.mu.Lock()
	res := d.gorm.Model(&Fault{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"updated_at": time.Now(),
	})
	d.mu.Unlock()
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return d.GetFault(id)
}

// FaultQuery encapsulates filters and pagination for listing faults.
type FaultQuery struct {
	Status   string
	Category string
	Priority string
	Offset   int
	Limit    int
}

// ListFaults returns faults newest first with the total matching count.
func (d *Database) ListFaults(opts FaultQuery) ([]Fault, int64, error) {
	base := d.gorm.Model(&Fault{})
	if s := strings.TrimSpace(opts.Status); s != "" {
		base = base.Where("status = ?", s)
	}
	if c := strings.TrimSpace(opts.Category); c != "" {
		base = base.Where("category = ?", c)
	}
	if p := strings.TrimSpace(opts.Priority); p != "" {
		base = base.Where("priority = ?", p)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order("created_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []Fault
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// GroupCount is one bucket of a GROUP BY count.
type GroupCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// FaultStats holds fault counts grouped by status, priority and category.
type FaultStats struct {
	Status   []GroupCount `json:"status_counts"`
	Priority []GroupCount `json:"priority_counts"`
	Category []GroupCount `json:"category_counts"`
}

// Stats aggregates fault counts per status, priority and category.
func (d *Database) Stats() (*FaultStats, error) {
	var stats FaultStats
	for column, dest := range map[string]*[]GroupCount{
		"status":   &stats.Status,
		"priority": &stats.Priority,
		"category": &stats.Category,
	} {
		err := d.gorm.Model(&Fault{}).
			Select(column + " AS value, COUNT(*) AS count").
			Group(column).
			Order(column).
			Scan(dest).Error
		if err != nil {
			return nil, fmt.Errorf("count faults by %s: %w", column, err)
		}
	}
	return &stats, nil
}

// ValidStatus reports whether status is one of AllowedStatuses.
func ValidStatus(status string) bool {
	for _, allowed := range AllowedStatuses {
		if status == allowed {
			return true
		}
	}
	return false
}
