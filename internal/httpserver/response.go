package httpserver

import (
	"errors"
	"net/http"
	"time"

	"cakeshop-cart/internal/domain"
	"cakeshop-cart/internal/service/session"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cartResponse struct {
	Items      []lineResponse `json:"items"`
	ItemCount  int            `json:"itemCount"`
	Subtotal   string         `json:"subtotal"`
	Tax        string         `json:"tax"`
	Discount   string         `json:"discount"`
	GrandTotal string         `json:"grandTotal"`
	Currency   string         `json:"currency"`
	Warnings   []string       `json:"warnings"`
}

type lineResponse struct {
	LineID          string            `json:"lineId"`
	ProductID       string            `json:"productId"`
	Name            string            `json:"name,omitempty"`
	ImageURL        string            `json:"imageUrl,omitempty"`
	UnitPrice       string            `json:"unitPrice"`
	Quantity        int               `json:"quantity"`
	LineTotal       string            `json:"lineTotal"`
	SelectedOptions map[string]string `json:"selectedOptions,omitempty"`
	AddedAt         time.Time         `json:"addedAt"`
}

type checkoutResponse struct {
	Order cartResponse `json:"order"`
	Cart  cartResponse `json:"cart"`
}

type sessionResponse struct {
	AccessToken string `json:"accessToken"`
	SessionID   string `json:"sessionId"`
	ExpiresIn   int    `json:"expiresIn"`
}

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// presenter rounds money to the currency's minor unit. Totals are computed
// at full precision before this point.
type presenter struct {
	currency string
	digits   int32
}

func (p presenter) money(d decimal.Decimal) string {
	return d.StringFixed(p.digits)
}

func (p presenter) cart(s domain.Snapshot) cartResponse {
	items := make([]lineResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, lineResponse{
			LineID:          it.LineID,
			ProductID:       it.ProductID,
			Name:            it.Name,
			ImageURL:        it.ImageURL,
			UnitPrice:       p.money(it.UnitPrice),
			Quantity:        it.Quantity,
			LineTotal:       p.money(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))),
			SelectedOptions: it.SelectedOptions,
			AddedAt:         it.AddedAt,
		})
	}
	return cartResponse{
		Items:      items,
		ItemCount:  s.Totals.ItemCount,
		Subtotal:   p.money(s.Totals.Subtotal),
		Tax:        p.money(s.Totals.Tax),
		Discount:   p.money(s.Totals.Discount),
		GrandTotal: p.money(s.Totals.GrandTotal),
		Currency:   p.currency,
		Warnings:   []string{},
	}
}

func (p presenter) product(prod domain.Product) productResponse {
	currency := prod.Currency
	if currency == "" {
		currency = p.currency
	}
	return productResponse{
		ID:          prod.ID,
		Name:        prod.Name,
		Description: prod.Description,
		Price:       p.money(prod.Price),
		Currency:    currency,
		ImageURL:    prod.ImageURL,
	}
}

const syncWarning = "your cart was updated but could not be saved; changes may be lost if the page is reloaded"

// statusFor maps service errors onto HTTP statuses. Persistence sync failures
// are not errors to the client and must be handled before calling it.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid or expired token"
	default:
		return http.StatusServiceUnavailable, "cart temporarily unavailable"
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	_ = c.Error(err)
	abortError(c, status, msg)
}
