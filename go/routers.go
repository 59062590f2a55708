package orderserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	apierrors "github.com/Apurer/delivery-order-engine/internal/shared/errors"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
}

// ApiHandleFunctions groups the API implementations mounted under /v1.
type ApiHandleFunctions struct {
	OrderAPI OrderAPI
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries the cross-cutting pieces of the router.
type RouterConfig struct {
	ServiceName    string
	Responder      *apierrors.Responder
	AllowedOrigins []string
	Metrics        http.Handler
	HealthChecks   map[string]HealthCheck
}

// NewRouter returns a new router.
func NewRouter(cfg RouterConfig, handleFunctions ApiHandleFunctions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:  []string{"Content-Type", HeaderUserID, HeaderUserRole, HeaderIdempotencyKey},
			ExposeHeaders: []string{"Location"},
			MaxAge:        12 * time.Hour,
		}))
	}
	responder := cfg.Responder
	if responder == nil {
		responder = NewResponder(nil)
	}

	router.GET("/healthz", healthHandler(cfg.HealthChecks))
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/v1", RequireViewer(responder))
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		v1.Handle(route.Method, route.Pattern, route.HandlerFunc)
	}
	return router
}

// DefaultHandleFunc is used for routes without an implementation.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{"PlaceOrder", http.MethodPost, "/orders", handleFunctions.OrderAPI.PlaceOrder},
		{"GetOrder", http.MethodGet, "/orders/:orderId", handleFunctions.OrderAPI.GetOrder},
		{"CancelOrder", http.MethodPost, "/orders/:orderId/cancel", handleFunctions.OrderAPI.CancelOrder},
		{"AcceptOrder", http.MethodPost, "/orders/:orderId/accept", handleFunctions.OrderAPI.AcceptOrder},
		{"RejectOrder", http.MethodPost, "/orders/:orderId/reject", handleFunctions.OrderAPI.RejectOrder},
		{"StartDelivery", http.MethodPost, "/orders/:orderId/dispatch", handleFunctions.OrderAPI.StartDelivery},
		{"CompleteDelivery", http.MethodPost, "/orders/:orderId/deliver", handleFunctions.OrderAPI.CompleteDelivery},
		{"DeleteOrder", http.MethodDelete, "/orders/:orderId", handleFunctions.OrderAPI.DeleteOrder},
		{"GetPayment", http.MethodGet, "/orders/:orderId/payment", handleFunctions.OrderAPI.GetPayment},
	}
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
