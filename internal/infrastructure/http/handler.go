package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appcart "github.com/minimart/storefront/internal/application/cart"
	apporder "github.com/minimart/storefront/internal/application/order"
	apppayment "github.com/minimart/storefront/internal/application/payment"
	domcart "github.com/minimart/storefront/internal/domain/cart"
	domcatalog "github.com/minimart/storefront/internal/domain/catalog"
	domidentity "github.com/minimart/storefront/internal/domain/identity"
	domorder "github.com/minimart/storefront/internal/domain/order"
	dompayment "github.com/minimart/storefront/internal/domain/payment"
)

type Handler struct {
	carts    *appcart.Service
	orders   *apporder.Service
	payments *apppayment.Service
	verifier domidentity.Verifier
}

func NewHandler(
	carts *appcart.Service,
	orders *apporder.Service,
	payments *apppayment.Service,
	verifier domidentity.Verifier,
) *Handler {
	return &Handler{
		carts:    carts,
		orders:   orders,
		payments: payments,
		verifier: verifier,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/items", h.handleAddCartItem)
	mux.HandleFunc("PUT /cart/items/{productID}", h.handleUpdateCartItem)
	mux.HandleFunc("DELETE /cart/items/{productID}", h.handleRemoveCartItem)

	mux.HandleFunc("POST /orders", h.handleCreateOrder)
	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /orders/{id}/cancel", h.handleCancelOrder)

	mux.HandleFunc("POST /payments", h.handleProcessPayment)
	mux.HandleFunc("GET /payments/order/{orderID}", h.handleGetPaymentByOrder)

	protected := h.requireIdentity(mux)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Handle("/", protected)
	return root
}

type cartItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Name      string `json:"name,omitempty"`
}

type cartResponse struct {
	UserID    string             `json:"user_id"`
	Items     []cartItemResponse `json:"items"`
	Total     int64              `json:"total"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, cartItemResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			Name:      l.DisplayName,
		})
	}
	return cartResponse{
		UserID:    c.UserID,
		Items:     items,
		Total:     c.Total(),
		UpdatedAt: c.UpdatedAt,
	}
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())
	c, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.carts.AddItem(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.carts.UpdateItem(r.Context(), id.UserID, r.PathValue("productID"), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	c, err := h.carts.RemoveItem(r.Context(), id.UserID, r.PathValue("productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Name      string `json:"name,omitempty"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Items       []orderItemResponse `json:"items"`
	TotalAmount int64               `json:"total_amount"`
	Status      domorder.Status     `json:"status"`
	PaymentID   string              `json:"payment_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, orderItemResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			Name:      l.DisplayName,
		})
	}
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		PaymentID:   o.PaymentID,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	o, err := h.orders.Create(r.Context(), id.UserID, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	orders, err := h.orders.List(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	o, err := h.orders.Get(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	o, err := h.orders.Cancel(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type processPaymentRequest struct {
	OrderID       string         `json:"order_id"`
	PaymentMethod string         `json:"payment_method"`
	CardDetails   map[string]any `json:"card_details"`
}

type paymentResponse struct {
	ID            string            `json:"id"`
	OrderID       string            `json:"order_id"`
	UserID        string            `json:"user_id"`
	Amount        int64             `json:"amount"`
	Status        dompayment.Status `json:"status"`
	TransactionID string            `json:"transaction_id"`
	PaymentMethod dompayment.Method `json:"payment_method"`
	ProcessedAt   time.Time         `json:"processed_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toPaymentResponse(p *dompayment.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Status:        p.Status,
		TransactionID: p.TransactionID,
		PaymentMethod: p.Method,
		ProcessedAt:   p.ProcessedAt,
		CreatedAt:     p.CreatedAt,
	}
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	var req processPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.payments.Process(r.Context(), id.UserID, req.OrderID, req.PaymentMethod, req.CardDetails)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// A declined settlement is still a processed payment.
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) handleGetPaymentByOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := domidentity.FromContext(r.Context())

	p, err := h.payments.GetByOrder(r.Context(), id.UserID, r.PathValue("orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, dompayment.ErrInvalidMethod),
		errors.Is(err, domorder.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domcart.ErrLineNotFound),
		errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dompayment.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domcatalog.ErrInsufficientStock),
		errors.Is(err, domorder.ErrInvalidState),
		errors.Is(err, domorder.ErrConflict),
		errors.Is(err, dompayment.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domcatalog.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
