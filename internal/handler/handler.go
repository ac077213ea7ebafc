// Package handler exposes the order lifecycle over JSON HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/weprixetechnologies/cly-backend-sub000/internal/database"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/models"
	"github.com/weprixetechnologies/cly-backend-sub000/internal/store"
)

// Service is the lifecycle engine contract consumed by the handlers.
type Service interface {
	CreateUser(ctx context.Context, email, name string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateProduct(ctx context.Context, req store.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	SetInventory(ctx context.Context, productID int64, inventory int) error

	GetCart(ctx context.Context, userID int64) ([]models.CartItem, error)
	SetCartItem(ctx context.Context, userID, productID int64, units, packQty, boxQty int) error
	ClearCart(ctx context.Context, userID int64) error

	Checkout(ctx context.Context, userID int64, shippingAddress, remarks string) (string, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]store.OrderSummary, error)
	GetOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]store.OrderSummary, error)
	ListOrders(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error)
	GetOrderByID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID string, target models.OrderStatus) error
	UpdateOrderAcceptance(ctx context.Context, orderID string, productID int64, acceptedUnits int, adminNotes string) error
	OrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error)
	RecordPayment(ctx context.Context, orderID string, amount decimal.Decimal, method, reference string) (*models.Payment, error)
	GetPayments(ctx context.Context, orderID string) ([]models.Payment, error)
}

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrItemNotFound):
		h.respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, database.ErrEmptyCart),
		errors.Is(err, database.ErrInvalidStatus),
		errors.Is(err, database.ErrInvalidQuantity):
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrLockTimeout):
		h.respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
		h.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.Email, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU           string  `json:"sku"`
		Name          string  `json:"name"`
		Description   string  `json:"description"`
		FeaturedImage string  `json:"featured_image"`
		Price         float64 `json:"price"`
		Inventory     int     `json:"inventory"`
		MinQty        int     `json:"min_qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SKU == "" {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	product, err := h.service.CreateProduct(r.Context(), store.CreateProductRequest{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		FeaturedImage: req.FeaturedImage,
		Price:         decimal.NewFromFloat(req.Price),
		Inventory:     req.Inventory,
		MinQty:        req.MinQty,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, product)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathInt64(r, "productID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	result, err := h.service.ListProducts(r.Context(), page, pageSize)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handler) SetInventory(w http.ResponseWriter, r *http.Request) {
	productID, err := pathInt64(r, "productID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req struct {
		Inventory int `json:"inventory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.service.SetInventory(r.Context(), productID, req.Inventory); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	items, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}
	productID, err := pathInt64(r, "productID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req struct {
		Units   int `json:"units"`
		PackQty int `json:"pack_qty"`
		BoxQty  int `json:"box_qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.service.SetCartItem(r.Context(), userID, productID, req.Units, req.PackQty, req.BoxQty); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	var req struct {
		ShippingAddress string `json:"shipping_address"`
		Remarks         string `json:"remarks"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	orderID, err := h.service.Checkout(r.Context(), userID, req.ShippingAddress, req.Remarks)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]string{"order_id": orderID})
}

func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	if cursor, paged := r.URL.Query().Get("cursor"), r.URL.Query().Has("limit"); paged || cursor != "" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		page, err := h.service.ListOrders(r.Context(), userID, cursor, limit)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, page)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	items, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.OrderStatusPending
	}

	orders, err := h.service.GetOrdersByStatus(r.Context(), status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.service.UpdateOrderStatus(r.Context(), orderID, models.OrderStatus(req.Status)); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) UpdateOrderAcceptance(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	productID, err := pathInt64(r, "productID")
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req struct {
		AcceptedUnits int    `json:"accepted_units"`
		AdminNotes    string `json:"admin_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.service.UpdateOrderAcceptance(r.Context(), orderID, productID, req.AcceptedUnits, req.AdminNotes); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handler) GetOrderTotal(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	total, err := h.service.OrderTotal(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"order_id": orderID,
		"total":    total.StringFixed(2),
	})
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req struct {
		Amount    float64 `json:"amount"`
		Method    string  `json:"method"`
		Reference string  `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), orderID, decimal.NewFromFloat(req.Amount), req.Method, req.Reference)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, payment)
}

func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	payments, err := h.service.GetPayments(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}
