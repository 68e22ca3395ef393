package handlers

import (
	"net/http"
	"strconv"

	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService      services.OrderService
	schedulingService services.SchedulingService
}

func NewOrderHandler(orderService services.OrderService, schedulingService services.SchedulingService) *OrderHandler {
	return &OrderHandler{orderService: orderService, schedulingService: schedulingService}
}

type CreateOrderRequest struct {
	OrderNumber   string `json:"order_number"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerPhone string `json:"customer_phone"`
	VehiclePlate  string `json:"vehicle_plate"`
	CreatedBy     *uint  `json:"created_by"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		OrderNumber:   req.OrderNumber,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		VehiclePlate:  req.VehiclePlate,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.orderService.ListOrders(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "limit": limit, "offset": offset})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.orderService.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) RecomputeStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.schedulingService.RecomputeOrderStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.ID, "order_status": order.Status, "version": order.Version})
}
