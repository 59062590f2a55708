package orderserver

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	ordersdomain "github.com/Apurer/delivery-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/delivery-order-engine/internal/domains/orders/ports"
	apierrors "github.com/Apurer/delivery-order-engine/internal/shared/errors"
)

// Identity headers are set by the gateway in front of this service after it
// authenticated the caller.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Role is the caller's role as asserted by the upstream gateway.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOwner    Role = "OWNER"
	RoleManager  Role = "MANAGER"
	RoleMaster   Role = "MASTER"
)

// Action names a state-changing operation on an order.
type Action string

const (
	ActionCancel   Action = "cancel"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionDispatch Action = "dispatch"
	ActionDeliver  Action = "deliver"
	ActionDelete   Action = "delete"
)

// Viewer is the authenticated caller.
type Viewer struct {
	UserID string
	Role   Role
}

func (v Viewer) staff() bool {
	return v.Role == RoleManager || v.Role == RoleMaster
}

const viewerKey = "orderserver.viewer"

// RequireViewer rejects requests without a usable identity.
func RequireViewer(responder *apierrors.Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		role := Role(strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
		if userID == "" {
			responder.Respond(c, apierrors.ErrUnauthorized.WithDetail("missing "+HeaderUserID))
			return
		}
		switch role {
		case RoleCustomer, RoleOwner, RoleManager, RoleMaster:
		default:
			responder.Respond(c, apierrors.ErrUnauthorized.WithDetail("unknown role "+string(role)))
			return
		}
		c.Set(viewerKey, Viewer{UserID: userID, Role: role})
		c.Next()
	}
}

func viewerFrom(c *gin.Context) Viewer {
	v, _ := c.Get(viewerKey)
	viewer, _ := v.(Viewer)
	return viewer
}

// Authorizer decides who may see and change an order.
type Authorizer struct {
	stores ordersports.StoreReader
}

func NewAuthorizer(stores ordersports.StoreReader) *Authorizer {
	return &Authorizer{stores: stores}
}

// CanPlace reports whether the viewer may place orders for themselves.
func (a *Authorizer) CanPlace(viewer Viewer) bool {
	return viewer.Role == RoleCustomer || viewer.staff()
}

// CanView allows the ordering customer, the owner of the order's store, and staff.
func (a *Authorizer) CanView(ctx context.Context, viewer Viewer, order *ordersdomain.Order) (bool, error) {
	switch {
	case viewer.staff():
		return true, nil
	case viewer.Role == RoleCustomer:
		return order.CustomerID == viewer.UserID, nil
	case viewer.Role == RoleOwner:
		return a.ownsStore(ctx, viewer, order.StoreID)
	}
	return false, nil
}

// CanTransition lets customers cancel their own orders and store owners drive the
// kitchen and delivery steps. Staff may do anything, including soft deletion.
func (a *Authorizer) CanTransition(ctx context.Context, viewer Viewer, action Action, order *ordersdomain.Order) (bool, error) {
	if viewer.staff() {
		return true, nil
	}
	switch viewer.Role {
	case RoleCustomer:
		return action == ActionCancel && order.CustomerID == viewer.UserID, nil
	case RoleOwner:
		switch action {
		case ActionAccept, ActionReject, ActionDispatch, ActionDeliver:
			return a.ownsStore(ctx, viewer, order.StoreID)
		}
	}
	return false, nil
}

func (a *Authorizer) ownsStore(ctx context.Context, viewer Viewer, storeID string) (bool, error) {
	if a.stores == nil {
		return false, nil
	}
	store, err := a.stores.ResolveSummary(ctx, storeID)
	if err != nil {
		if errors.Is(err, ordersports.ErrStoreNotFound) {
			return false, nil
		}
		return false, err
	}
	return store.OwnerID == viewer.UserID, nil
}
