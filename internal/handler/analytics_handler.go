package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fastpay-sz/payment-orchestrator/internal/dto"
	"github.com/fastpay-sz/payment-orchestrator/internal/service"
)

type AnalyticsHandler struct {
	svc *service.PaymentService
}

func NewAnalyticsHandler(svc *service.PaymentService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
