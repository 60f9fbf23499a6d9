package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"fault-triage/backend/internal/store"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
	maxPage         = 100000
)

func (s *Server) handleCreateFault(c *gin.Context) {
	var req FaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, errors.New("description, location, hostel_name and floor are required"))
		return
	}
	description, err := s.validateDescription(req.Description)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	result := s.classify(description)
	fault := &store.Fault{
		Description:     description,
		Location:        strings.TrimSpace(req.Location),
		HostelName:      strings.TrimSpace(req.HostelName),
		Floor:           strings.TrimSpace(req.Floor),
		Category:        result.Category,
		Priority:        result.Priority,
		Status:          store.StatusSubmitted,
		PredictionError: result.Error,
	}
	if err := s.db.CreateFault(fault); err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("save fault: %w", err))
		return
	}

	dto := FaultFromModel(*fault)
	s.metrics.FaultsCreated.WithLabelValues(fault.Category, fault.Priority).Inc()
	s.notifier.Broadcast(FaultEvent{Type: EventNewFault, FaultID: fault.ID, Fault: &dto})
	logrus.WithFields(logrus.Fields{
		"fault":    fault.ID,
		"category": fault.Category,
		"priority": fault.Priority,
		"fallback": result.Fallback(),
	}).Info("fault reported")

	c.JSON(http.StatusCreated, CreateFaultResponse{
		Message: "Fault report submitted successfully.",
		FaultID: fault.ID,
		Fault:   dto,
	})
}

func (s *Server) handleListFaults(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	if page > maxPage {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("page must be at most %d", maxPage))
		return
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	status := strings.TrimSpace(c.Query("status"))
	if status != "" && !store.ValidStatus(status) {
		s.renderError(c, http.StatusBadRequest, invalidStatusError(status))
		return
	}

	rows, total, err := s.db.ListFaults(store.FaultQuery{
		Status:   status,
		Category: c.Query("category"),
		Priority: c.Query("priority"),
		Offset:   page * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, FaultsResponse{
		Items: lo.Map(rows, func(f store.Fault, _ int) FaultDTO { return FaultFromModel(f) }),
		Total: total,
	})
}

func (s *Server) handleGetFault(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	fault, err := s.db.GetFault(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("fault %d not found", id))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, FaultFromModel(*fault))
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, errors.New("status is required"))
		return
	}
	status := strings.TrimSpace(req.Status)
	if !store.ValidStatus(status) {
		s.renderError(c, http.StatusBadRequest, invalidStatusError(status))
		return
	}

	previous, err := s.db.GetFault(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("fault %d not found", id))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	fault, err := s.db.UpdateFaultStatus(id, status)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.renderError(c, http.StatusNotFound, fmt.Errorf("fault %d not found", id))
		case errors.Is(err, store.ErrInvalidStatus):
			s.renderError(c, http.StatusBadRequest, err)
		default:
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	dto := FaultFromModel(*fault)
	s.metrics.StatusChanges.WithLabelValues(status).Inc()
	s.notifier.Broadcast(FaultEvent{Type: EventFaultUpdated, FaultID: id, Fault: &dto, PreviousStatus: previous.Status})
	logrus.WithFields(logrus.Fields{
		"fault": id,
		"from":  previous.Status,
		"to":    status,
	}).Info("fault status updated")

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Fault #%d status updated to '%s'.", id, status),
		"fault":   dto,
	})
}

func (s *Server) handleAssignFault(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	fault, employee, err := s.db.AssignFault(id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotAssignable):
			s.metrics.Assignments.WithLabelValues("", "not_assignable").Inc()
			s.renderError(c, http.StatusNotFound, store.ErrNotAssignable)
		case errors.Is(err, store.ErrNoAssignee):
			s.metrics.Assignments.WithLabelValues(s.faultCategory(id), "no_employee").Inc()
			s.renderError(c, http.StatusNotFound, err)
		default:
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	dto := FaultFromModel(*fault)
	assignee := EmployeeFromModel(*employee)
	s.metrics.Assignments.WithLabelValues(fault.Category, "assigned").Inc()
	s.metrics.StatusChanges.WithLabelValues(fault.Status).Inc()
	s.notifier.Broadcast(FaultEvent{
		Type:           EventFaultUpdated,
		FaultID:        id,
		Fault:          &dto,
		PreviousStatus: store.StatusSubmitted,
		AssignedTo:     &assignee,
	})
	logrus.WithFields(logrus.Fields{
		"fault":    id,
		"employee": employee.ID,
		"category": fault.Category,
	}).Info("fault assigned")

	c.JSON(http.StatusOK, AssignResponse{
		Message:  fmt.Sprintf("Fault #%d automatically assigned to employee #%d.", id, employee.ID),
		Fault:    dto,
		Employee: assignee,
	})
}

func (s *Server) faultCategory(id uint) string {
	fault, err := s.db.GetFault(id)
	if err != nil {
		return ""
	}
	return fault.Category
}

func (s *Server) handleListComments(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	comments, err := s.db.ListComments(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("fault %d not found", id))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, commentsFromModels(comments))
}

func (s *Server) handleAddComment(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Comment) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("comment text cannot be empty"))
		return
	}

	comment, err := s.db.AddComment(id, req.Author, req.Comment)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("fault %d not found", id))
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}

	dto := CommentFromModel(*comment)
	s.metrics.Comments.Inc()
	s.notifier.Broadcast(FaultEvent{Type: EventNewComment, FaultID: id, Comment: &dto})
	c.JSON(http.StatusCreated, dto)
}

func (s *Server) handleFaultStats(c *gin.Context) {
	stats, err := s.db.Stats()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func invalidStatusError(status string) error {
	return fmt.Errorf("invalid status %q, must be one of: %s", status, strings.Join(store.AllowedStatuses, ", "))
}
