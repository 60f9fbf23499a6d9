package api

import (
	"time"

	"github.com/samber/lo"

	"fault-triage/backend/internal/store"
)

// PredictRequest is the body of a triage request.
type PredictRequest struct {
	Description *string `json:"description"`
}

// FaultRequest is the body used to report a new fault.
type FaultRequest struct {
	Description string `json:"description" binding:"required"`
	Location    string `json:"location" binding:"required"`
	HostelName  string `json:"hostel_name" binding:"required"`
	Floor       string `json:"floor" binding:"required"`
}

// StatusRequest moves a fault through the status workflow.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// FaultDTO is the API representation for a persisted fault.
type FaultDTO struct {
	ID              uint      `json:"id"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	HostelName      string    `json:"hostel_name"`
	Floor           string    `json:"floor"`
	Category        string    `json:"category"`
	Priority        string    `json:"priority"`
	Status          string    `json:"status"`
	PredictionError string    `json:"prediction_error,omitempty"`
	AssignedToID    *uint     `json:"assigned_to_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FaultFromModel converts a store fault into its DTO.
func FaultFromModel(f store.Fault) FaultDTO {
	return FaultDTO{
		ID:              f.ID,
		Description:     f.Description,
		Location:        f.Location,
		HostelName:      f.HostelName,
		Floor:           f.Floor,
		Category:        f.Category,
		Priority:        f.Priority,
		Status:          f.Status,
		PredictionError: f.PredictionError,
		AssignedToID:    f.AssignedToID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// CreateFaultResponse is returned after a fault is stored.
type CreateFaultResponse struct {
	Message string   `json:"message"`
	FaultID uint     `json:"fault_id"`
	Fault   FaultDTO `json:"fault"`
}

// FaultsResponse holds a page of faults and the total matching count.
type FaultsResponse struct {
	Items []FaultDTO `json:"items"`
	Total int64      `json:"total"`
}

// EmployeeRequest registers a maintenance employee.
type EmployeeRequest struct {
	Name            string   `json:"name" binding:"required"`
	Email           string   `json:"email" binding:"required"`
	Specializations []string `json:"specializations" binding:"required"`
}

// EmployeeDTO is the API representation of an employee.
type EmployeeDTO struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Specializations []string  `json:"specializations"`
	CreatedAt       time.Time `json:"created_at"`
}

// EmployeeFromModel converts a store employee into its DTO.
func EmployeeFromModel(e store.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              e.ID,
		Name:            e.Name,
		Email:           e.Email,
		Specializations: e.Categories(),
		CreatedAt:       e.CreatedAt,
	}
}

// AssignResponse is returned after a fault is handed to an employee.
type AssignResponse struct {
	Message  string      `json:"message"`
	Fault    FaultDTO    `json:"fault"`
	Employee EmployeeDTO `json:"employee"`
}

// CommentRequest adds a comment to a fault. Author is free text.
type CommentRequest struct {
	Author  string `json:"author"`
	Comment string `json:"comment"`
}

// CommentDTO is the API representation of a comment.
type CommentDTO struct {
	ID        uint      `json:"id"`
	FaultID   uint      `json:"fault_id"`
	Author    string    `json:"author,omitempty"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentFromModel converts a store comment into its DTO.
func CommentFromModel(c store.Comment) CommentDTO {
	return CommentDTO{ID: c.ID, FaultID: c.FaultID, Author: c.Author, Comment: c.Text, CreatedAt: c.CreatedAt}
}

func commentsFromModels(rows []store.Comment) []CommentDTO {
	return lo.Map(rows, func(c store.Comment, _ int) CommentDTO { return CommentFromModel(c) })
}
