package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fastpay-sz/payment-orchestrator/internal/dto"
	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/repository"
	"github.com/fastpay-sz/payment-orchestrator/internal/service"
)

type PaymentHandler struct {
	svc *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Initiate accepts a payment synchronously; settlement completes
// asynchronously and is observable through the status endpoint.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation failed: " + err.Error()})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "SZL"
	}

	txn, err := h.svc.Initiate(c.Request.Context(), &service.InitiateRequest{
		MerchantID: req.MerchantID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Currency:   currency,
		Method:     model.PaymentMethod(req.Method),
		QRTokenID:  req.QRTokenID,
	})
	if err != nil {
		status := http.StatusBadRequest
		var inputErr *service.InputError
		switch {
		case errors.As(err, &inputErr):
		case service.IsQRRejection(err):
			status = http.StatusUnprocessableEntity
		default:
			status = http.StatusInternalServerError
		}
		c.JSON(status, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.InitiatePaymentResponse{
		TransactionID: txn.ID,
		Status:        string(txn.Status),
		Message:       "payment accepted",
	})
}

func (h *PaymentHandler) GetStatus(c *gin.Context) {
	txn, entries, err := h.svc.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.NewPaymentStatusResponse(txn, entries))
}
