package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acmecorp/orderflow/internal/order/application"
	orderpg "github.com/acmecorp/orderflow/internal/order/infrastructure/postgres"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

type itemReq struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type createOrderReq struct {
	CustomerID string    `json:"customer_id"`
	Email      string    `json:"email"`
	Items      []itemReq `json:"items"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.CustomerID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "customer_id and email are required")
		return
	}

	cmd := application.PlaceOrder{CustomerID: req.CustomerID, Email: req.Email}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, application.ItemRequest{SKU: it.SKU, Qty: it.Qty})
	}

	o, err := h.service.PlaceOrder(ctx, cmd)
	switch {
	case errors.Is(err, application.ErrUnknownProduct),
		errors.Is(err, application.ErrEmptyOrder),
		errors.Is(err, application.ErrInvalidQty):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("place order failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"order_id": o.ID.String(),
		"status":   string(o.Status),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.service.Get(r.Context(), id)
	if errors.Is(err, orderpg.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.log.Error("get order failed", "order_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"order_id":     o.ID.String(),
		"customer_id":  o.CustomerID,
		"email":        o.Email,
		"status":       string(o.Status),
		"total_amount": o.TotalAmount,
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
