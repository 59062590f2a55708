package orderserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	orderhttpmapper "github.com/Apurer/delivery-order-engine/internal/domains/orders/adapters/http/mapper"
	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	paymenthttpmapper "github.com/Apurer/delivery-order-engine/internal/domains/payments/adapters/http/mapper"
	paymentsports "github.com/Apurer/delivery-order-engine/internal/domains/payments/ports"
	apierrors "github.com/Apurer/delivery-order-engine/internal/shared/errors"
)

// HeaderIdempotencyKey lets clients retry placement safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// OrderAPI wires HTTP transport with the orders and payments bounded contexts.
type OrderAPI struct {
	orders    ordersports.Service
	payments  paymentsports.Service
	authz     *Authorizer
	responder *apierrors.Responder
}

// NewOrderAPI creates an OrderAPI. The store reader backs owner authorization.
func NewOrderAPI(orders ordersports.Service, payments paymentsports.Service, stores ordersports.StoreReader, responder *apierrors.Responder) OrderAPI {
	if responder == nil {
		responder = NewResponder(nil)
	}
	return OrderAPI{
		orders:    orders,
		payments:  payments,
		authz:     NewAuthorizer(stores),
		responder: responder,
	}
}

// Post /v1/orders
// Places an order awaiting payment
func (api *OrderAPI) PlaceOrder(c *gin.Context) {
	viewer := viewerFrom(c)
	if !api.authz.CanPlace(viewer) {
		api.responder.Respond(c, apierrors.ErrForbidden.WithDetail("role may not place orders"))
		return
	}
	var payload orderhttpmapper.PlaceOrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.responder.Respond(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	order, err := api.orders.PlaceOrder(c.Request.Context(), orderhttpmapper.ToPlaceOrderInput(viewer.UserID, key, payload))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.Header("Location", "/v1/orders/"+order.ID)
	c.JSON(http.StatusCreated, orderhttpmapper.StatusResponse{OrderID: order.ID, Status: string(order.Status)})
}

// Get /v1/orders/:orderId
// Returns an order with its line items
func (api *OrderAPI) GetOrder(c *gin.Context) {
	order, ok := api.loadViewable(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromOrder(order))
}

// Post /v1/orders/:orderId/cancel
func (api *OrderAPI) CancelOrder(c *gin.Context) {
	api.transition(c, ActionCancel, api.orders.CancelOrder)
}

// Post /v1/orders/:orderId/accept
func (api *OrderAPI) AcceptOrder(c *gin.Context) {
	api.transition(c, ActionAccept, api.orders.AcceptOrder)
}

// Post /v1/orders/:orderId/reject
func (api *OrderAPI) RejectOrder(c *gin.Context) {
	api.transition(c, ActionReject, api.orders.RejectOrder)
}

// Post /v1/orders/:orderId/dispatch
func (api *OrderAPI) StartDelivery(c *gin.Context) {
	api.transition(c, ActionDispatch, api.orders.StartDelivery)
}

// Post /v1/orders/:orderId/deliver
func (api *OrderAPI) CompleteDelivery(c *gin.Context) {
	api.transition(c, ActionDeliver, api.orders.CompleteDelivery)
}

// Delete /v1/orders/:orderId
// Soft deletes a finished order
func (api *OrderAPI) DeleteOrder(c *gin.Context) {
	order, viewer, ok := api.loadAuthorized(c, ActionDelete)
	if !ok {
		return
	}
	if err := api.orders.DeleteOrder(c.Request.Context(), order.ID, viewer.UserID); err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get /v1/orders/:orderId/payment
// Returns the payment attached to an order
func (api *OrderAPI) GetPayment(c *gin.Context) {
	order, ok := api.loadViewable(c)
	if !ok {
		return
	}
	if api.payments == nil {
		api.responder.Respond(c, apierrors.NewNotFoundProblem("payment", order.ID))
		return
	}
	payment, err := api.payments.GetByOrderID(c.Request.Context(), order.ID)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymenthttpmapper.FromPayment(payment))
}

type transitionFunc func(ctx context.Context, orderID, actor string) (ordersports.TransitionResult, error)

func (api *OrderAPI) transition(c *gin.Context, action Action, fn transitionFunc) {
	order, viewer, ok := api.loadAuthorized(c, action)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), order.ID, viewer.UserID)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderhttpmapper.FromTransition(result))
}

func (api *OrderAPI) loadViewable(c *gin.Context) (*ordersdomain.Order, bool) {
	order, err := api.orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		api.responder.RespondError(c, err)
		return nil, false
	}
	allowed, err := api.authz.CanView(c.Request.Context(), viewerFrom(c), order)
	if err != nil {
		api.responder.RespondError(c, err)
		return nil, false
	}
	if !allowed {
		api.responder.Respond(c, apierrors.ErrForbidden.WithDetail("order is not visible to caller"))
		return nil, false
	}
	return order, true
}

func (api *OrderAPI) loadAuthorized(c *gin.Context, action Action) (*ordersdomain.Order, Viewer, bool) {
	viewer := viewerFrom(c)
	order, err := api.orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		api.responder.RespondError(c, err)
		return nil, viewer, false
	}
	allowed, err := api.authz.CanTransition(c.Request.Context(), viewer, action, order)
	if err != nil {
		api.responder.RespondError(c, err)
		return nil, viewer, false
	}
	if !allowed {
		api.responder.Respond(c, apierrors.ErrForbidden.WithDetail("caller may not "+string(action)+" this order"))
		return nil, viewer, false
	}
	return order, viewer, true
}
