package orderserver

import (
	"errors"
	"log/slog"

	ordersapp "github.com/Apurer/delivery-order-engine/internal/domains/orders/application"
	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	paymentsdomain "github.com/Apurer/delivery-order-engine/internal/domains/payments/domain"
	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	apierrors "github.com/Apurer/delivery-order-engine/internal/shared/errors"
)

// NewResponder builds the problem responder with the order and payment mappers.
func NewResponder(logger *slog.Logger) *apierrors.Responder {
	return apierrors.NewResponder("", mapOrderError, mapPaymentError).WithLogger(logger)
}

func mapOrderError(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ordersports.ErrNotFound), errors.Is(err, ordersdomain.ErrAlreadyDeleted):
		return apierrors.ErrNotFound.WithDetail(err.Error()).WithExtension("resourceType", "order"), true
	case errors.Is(err, ordersports.ErrProductNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()).WithExtension("resourceType", "product"), true
	case errors.Is(err, ordersports.ErrStoreNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()).WithExtension("resourceType", "store"), true
	case errors.Is(err, ordersdomain.ErrCancelWindowExpired):
		return apierrors.ErrInvalidTransition.WithDetail(err.Error()).WithExtension("reason", "cancel_window_expired"), true
	case errors.Is(err, ordersdomain.ErrInvalidStateTransition):
		return apierrors.ErrInvalidTransition.WithDetail(err.Error()), true
	case errors.Is(err, ordersapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, ordersports.ErrIdempotencyConflict):
		return apierrors.ErrIdempotencyConflict.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

func mapPaymentError(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, paymentsports.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()).WithExtension("resourceType", "payment"), true
	case errors.Is(err, paymentsports.ErrDuplicatePayment):
		return apierrors.ErrDuplicatePayment.WithDetail(err.Error()), true
	case errors.Is(err, paymentsdomain.ErrInvalidStateTransition):
		return apierrors.ErrInvalidTransition.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}
