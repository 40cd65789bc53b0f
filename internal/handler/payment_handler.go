package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/internal/dto"
	"github.com/tixgate/tixgate/internal/service"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PaymentHandler handles payment collaborator callbacks
type PaymentHandler struct {
	bookingService service.BookingService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(bookingService service.BookingService) *PaymentHandler {
	return &PaymentHandler{
		bookingService: bookingService,
	}
}

// Callback handles POST /payments/callback. The payment collaborator
// reports the outcome here: success confirms the booking, failure
// cancels it and releases its seats.
func (h *PaymentHandler) Callback(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.payment.callback")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("booking_id", req.BookingID),
		attribute.String("payment_status", req.Status),
	)

	result, err := h.bookingService.HandlePaymentResult(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// handleError converts domain errors to HTTP responses
func (h *PaymentHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "BOOKING_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrBookingExpired):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "BOOKING_EXPIRED",
		})
	case errors.Is(err, domain.ErrInvalidBookingStatus):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_BOOKING_STATUS",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
