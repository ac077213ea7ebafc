package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Post("/users", h.CreateUser)
	r.Get("/users/{userID}", h.GetUser)

	r.Post("/products", h.CreateProduct)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{productID}", h.GetProduct)
	r.Put("/products/{productID}/inventory", h.SetInventory)

	r.Route("/users/{userID}/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Put("/{productID}", h.SetCartItem)
		r.Delete("/", h.ClearCart)
	})

	r.Post("/users/{userID}/orders/checkout", h.Checkout)
	r.Get("/users/{userID}/orders", h.GetOrders)

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.GetOrder)
		r.Patch("/status", h.UpdateOrderStatus)
		r.Patch("/items/{productID}", h.UpdateOrderAcceptance)
		r.Get("/total", h.GetOrderTotal)
		r.Post("/payments", h.RecordPayment)
		r.Get("/payments", h.GetPayments)
	})

	r.Get("/admin/orders", h.AdminOrders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	return r
}
