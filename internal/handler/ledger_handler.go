package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fastpay-sz/payment-orchestrator/internal/dto"
	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/service"
)

type LedgerHandler struct {
	svc *service.PaymentService
}

func NewLedgerHandler(svc *service.PaymentService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// List is the reporting read over the ledger: time range, status and rail
// filters, all optional. Timestamps are RFC 3339.
func (h *LedgerHandler) List(c *gin.Context) {
	var filter model.LedgerFilter

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid 'from' timestamp"})
			return
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid 'to' timestamp"})
			return
		}
		filter.To = &t
	}
	if raw := c.Query("status"); raw != "" {
		status := model.Status(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unknown status filter"})
			return
		}
		filter.Status = status
	}
	filter.Rail = c.Query("rail")

	entries, err := h.svc.ListLedger(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	views := dto.NewLedgerEntryViews(entries)
	c.JSON(http.StatusOK, dto.LedgerListResponse{Count: len(views), Entries: views})
}
