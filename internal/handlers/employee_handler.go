package handlers

import (
	"net/http"

	"decal_manager/internal/models"
	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
)

type EmployeeHandler struct {
	employeeService services.EmployeeService
}

func NewEmployeeHandler(employeeService services.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{employeeService: employeeService}
}

type CreateEmployeeRequest struct {
	FullName    string              `json:"full_name" binding:"required"`
	PhoneNumber string              `json:"phone_number"`
	Role        models.EmployeeRole `json:"role"`
}

func (h *EmployeeHandler) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	employee, err := h.employeeService.CreateEmployee(c.Request.Context(), req.FullName, req.PhoneNumber, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

func (h *EmployeeHandler) ListEmployees(c *gin.Context) {
	employees, err := h.employeeService.ListEmployees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees})
}

func (h *EmployeeHandler) GetEmployee(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	employee, err := h.employeeService.GetEmployee(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}
