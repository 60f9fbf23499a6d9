package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/store"
)

func (s *Server) handleCreateEmployee(c *gin.Context) {
	var req EmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, errors.New("name, email and specializations are required"))
		return
	}
	employee, err := s.db.CreateEmployee(req.Name, req.Email, req.Specializations)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"employee":        employee.ID,
		"specializations": employee.Categories(),
	}).Info("employee registered")
	c.JSON(http.StatusCreated, EmployeeFromModel(*employee))
}

func (s *Server) handleListEmployees(c *gin.Context) {
	employees, err := s.db.ListEmployees()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(employees, func(e store.Employee, _ int) EmployeeDTO { return EmployeeFromModel(e) }))
}
