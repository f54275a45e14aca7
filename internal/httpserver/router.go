package httpserver

import (
	"context"
	"errors"
	"time"

	"cakeshop-cart/internal/domain"
	cartsvc "cakeshop-cart/internal/service/cart"
	"cakeshop-cart/internal/service/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the durable cart store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SessionService interface {
	Issue(ctx context.Context) (session.Session, error)
	Lookup(ctx context.Context, token string) (string, error)
	Cart(ctx context.Context, sessionID string) (*cartsvc.Store, error)
	TTLSeconds() int
}

// ProductCatalog supplies the price, name and image snapshotted into new lines.
type ProductCatalog interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Deps struct {
	Sessions SessionService
	// Catalog is optional. Without it clients send unitPrice themselves.
	Catalog        ProductCatalog
	Backend        Pinger
	CORSOrigins    []string
	Currency       string
	CurrencyDigits int32
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil {
		return nil, errors.New("httpserver: session service is required")
	}
	if deps.Currency == "" {
		deps.Currency = "USD"
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Backend))

	h := &cartHandlers{
		sessions: deps.Sessions,
		catalog:  deps.Catalog,
		present:  presenter{currency: deps.Currency, digits: deps.CurrencyDigits},
		logger:   logger.Named("http"),
	}

	router.POST("/sessions", h.createSession)
	if deps.Catalog != nil {
		router.GET("/products", h.listProducts)
	}

	cart := router.Group("/cart", sessionMiddleware(deps.Sessions))
	cart.GET("", h.getCart)
	cart.POST("/items", h.addItem)
	cart.PATCH("/items/:lineId", h.updateItem)
	cart.DELETE("/items/:lineId", h.removeItem)
	cart.PUT("/discount", h.applyDiscount)
	cart.DELETE("", h.clearCart)
	cart.POST("/checkout", h.checkout)

	return router, nil
}
