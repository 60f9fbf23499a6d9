package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

var (
	// ErrNotAssignable is returned when the fault has already left the Submitted state.
	ErrNotAssignable = errors.New("fault not found or is already assigned")
	// ErrNoAssignee is returned when no employee specializes in the fault's category.
	ErrNoAssignee = errors.New("no available employees for category")
)

// CreateEmployee registers an employee with one or more specializations.
func (d *Database) CreateEmployee(name, email string, categories []string) (*Employee, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, errors.New("employee name and email are required")
	}
	categories = lo.Uniq(lo.Compact(lo.Map(categories, func(c string, _ int) string {
		return strings.TrimSpace(c)
	})))
	if len(categories) == 0 {
		return nil, errors.New("at least one specialization is required")
	}

	e := &Employee{
		Name:  name,
		Email: email,
		Specializations: lo.Map(categories, func(c string, _ int) EmployeeSpecialization {
			return EmployeeSpecialization{Category: c}
		}),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListEmployees returns every employee with specializations, oldest first.
func (d *Database) ListEmployees() ([]Employee, error) {
	var rows []Employee
	if err := d.gorm.Preload("Specializations").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type assignCandidate struct {
	ID        uint
	OpenTasks int64
}

// AssignFault hands a Submitted fault to the least busy employee specializing
// in its category and moves it to In Progress. Busy means assigned faults that
// are Submitted or In Progress; ties go to the lowest employee ID.
func (d *Database) AssignFault(id uint) (*Fault, *Employee, error) {
	var (
		fault    Fault
		employee Employee
	)
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", id, StatusSubmitted).First(&fault).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAssignable
			}
			return err
		}

		var candidates []assignCandidate
		err := tx.Table("employees AS e").
			Select("e.id AS id, COUNT(f.id) AS open_tasks").
			Joins("JOIN employee_specializations es ON es.employee_id = e.id").
			Joins("LEFT JOIN faults f ON f.assigned_to_id = e.id AND f.status IN ?",
				[]string{StatusSubmitted, StatusInProgress}).
			Where("es.category = ?", fault.Category).
			Group("e.id").
			Order("open_tasks ASC, e.id ASC").
			Scan(&candidates).Error
		if err != nil {
			return fmt.Errorf("rank employees: %w", err)
		}
		if len(candidates) == 0 {
			return fmt.Errorf("%w %q", ErrNoAssignee, fault.Category)
		}

		if err := tx.Preload("Specializations").First(&employee, candidates[0].ID).Error; err != nil {
			return err
		}
		now := time.Now()
		err = tx.Model(&fault).Updates(map[string]any{
			"assigned_to_id": employee.ID,
			"status":         StatusInProgress,
			"updated_at":     now,
		}).Error
		if err != nil {
			return err
		}
		return tx.First(&fault, id).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &fault, &employee, nil
}

// AddComment records a comment on an existing fault.
func (d *Database) AddComment(faultID uint, author, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("comment text cannot be empty")
	}
	if _, err := d.GetFault(faultID); err != nil {
		return nil, err
	}
	c := &Comment{FaultID: faultID, Author: strings.TrimSpace(author), Text: text}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns a fault's comments oldest first. A missing fault
// returns gorm.ErrRecordNotFound.
func (d *Database) ListComments(faultID uint) ([]Comment, error) {
	if _, err := d.GetFault(faultID); err != nil {
		return nil, err
	}
	var rows []Comment
	if err := d.gorm.Where("fault_id = ?", faultID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
