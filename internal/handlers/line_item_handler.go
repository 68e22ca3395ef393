package handlers

import (
	"net/http"

	"decal_manager/internal/services"

	"github.com/gin-gonic/gin"
)

type LineItemHandler struct {
	lineItemService services.LineItemService
}

func NewLineItemHandler(lineItemService services.LineItemService) *LineItemHandler {
	return &LineItemHandler{lineItemService: lineItemService}
}

type LineItemRequest struct {
	ServiceID uint `json:"service_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

func (h *LineItemHandler) ListLineItems(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	items, err := h.lineItemService.ListLineItems(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"line_items": items})
}

func (h *LineItemHandler) CreateLineItem(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req LineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	item, err := h.lineItemService.CreateLineItem(c.Request.Context(), orderID, req.ServiceID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *LineItemHandler) UpdateLineItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req LineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	item, err := h.lineItemService.UpdateLineItem(c.Request.Context(), id, req.ServiceID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *LineItemHandler) DeleteLineItem(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.lineItemService.DeleteLineItem(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
