package httpserver

import (
	"errors"
	"net/http"

	"cakeshop-cart/internal/domain"
	cartsvc "cakeshop-cart/internal/service/cart"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cartHandlers struct {
	sessions SessionService
	catalog  ProductCatalog
	present  presenter
	logger   *zap.Logger
}

type addItemRequest struct {
	ProductID       string            `json:"productId"`
	Quantity        *int              `json:"quantity"`
	UnitPrice       *decimal.Decimal  `json:"unitPrice"`
	SelectedOptions map[string]string `json:"selectedOptions"`
	Name            string            `json:"name"`
	ImageURL        string            `json:"imageUrl"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

type discountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (h *cartHandlers) createSession(c *gin.Context) {
	s, err := h.sessions.Issue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		AccessToken: s.AccessToken,
		SessionID:   s.SessionID,
		ExpiresIn:   h.sessions.TTLSeconds(),
	})
}

func (h *cartHandlers) listProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, h.present.product(p))
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}

func (h *cartHandlers) store(c *gin.Context) (*cartsvc.Store, bool) {
	id, ok := sessionFromContext(c.Request.Context())
	if !ok {
		abortError(c, http.StatusUnauthorized, "missing session")
		return nil, false
	}
	store, err := h.sessions.Cart(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("open cart", zap.String("session_id", id), zap.Error(err))
		writeError(c, err)
		return nil, false
	}
	return store, true
}

func (h *cartHandlers) getCart(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.present.cart(store.State()))
}

func (h *cartHandlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	in := cartsvc.AddItemInput{
		ProductID:       req.ProductID,
		Name:            req.Name,
		ImageURL:        req.ImageURL,
		Quantity:        1,
		SelectedOptions: req.SelectedOptions,
	}
	if req.Quantity != nil {
		in.Quantity = *req.Quantity
	}

	if h.catalog != nil {
		if req.ProductID == "" {
			abortError(c, http.StatusBadRequest, "productId is required")
			return
		}
		p, err := h.catalog.GetByID(c.Request.Context(), req.ProductID)
		if err != nil {
			writeError(c, err)
			return
		}
		in.UnitPrice = p.Price
		in.Name = p.Name
		in.ImageURL = p.ImageURL
	} else {
		if req.UnitPrice == nil {
			abortError(c, http.StatusBadRequest, "unitPrice is required")
			return
		}
		in.UnitPrice = *req.UnitPrice
	}

	store, ok := h.store(c)
	if !ok {
		return
	}
	snap, err := store.AddItem(c.Request.Context(), in)
	h.respond(c, http.StatusOK, snap, err)
}

func (h *cartHandlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		abortError(c, http.StatusBadRequest, "quantity is required")
		return
	}
	store, ok := h.store(c)
	if !ok {
		return
	}
	snap, err := store.UpdateQuantity(c.Request.Context(), c.Param("lineId"), *req.Quantity)
	h.respond(c, http.StatusOK, snap, err)
}

func (h *cartHandlers) removeItem(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	snap, err := store.RemoveItem(c.Request.Context(), c.Param("lineId"))
	h.respond(c, http.StatusOK, snap, err)
}

func (h *cartHandlers) applyDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		abortError(c, http.StatusBadRequest, "amount is required")
		return
	}
	store, ok := h.store(c)
	if !ok {
		return
	}
	snap, err := store.ApplyDiscount(c.Request.Context(), *req.Amount)
	h.respond(c, http.StatusOK, snap, err)
}

func (h *cartHandlers) clearCart(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	snap, err := store.Clear(c.Request.Context())
	h.respond(c, http.StatusOK, snap, err)
}

func (h *cartHandlers) checkout(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}
	order, cart, err := store.Checkout(c.Request.Context())
	if err != nil && !errors.Is(err, domain.ErrPersistenceSync) {
		writeError(c, err)
		return
	}
	resp := checkoutResponse{Order: h.present.cart(order), Cart: h.present.cart(cart)}
	if err != nil {
		h.logSyncFailure(c, err)
		resp.Cart.Warnings = append(resp.Cart.Warnings, syncWarning)
	}
	c.JSON(http.StatusOK, resp)
}

// respond writes the cart after a mutation. A failed persistence write still
// returns the updated cart, with a warning.
func (h *cartHandlers) respond(c *gin.Context, status int, snap domain.Snapshot, err error) {
	if err != nil && !errors.Is(err, domain.ErrPersistenceSync) {
		writeError(c, err)
		return
	}
	resp := h.present.cart(snap)
	if err != nil {
		h.logSyncFailure(c, err)
		resp.Warnings = append(resp.Warnings, syncWarning)
	}
	c.JSON(status, resp)
}

func (h *cartHandlers) logSyncFailure(c *gin.Context, err error) {
	id, _ := sessionFromContext(c.Request.Context())
	h.logger.Warn("cart not persisted", zap.String("session_id", id), zap.Error(err))
}
