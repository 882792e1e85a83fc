// Package httptransport exposes the order workflow and catalog over a JSON
// HTTP surface. Responses carry a human-readable message; errors map the
// domain taxonomy onto status codes.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	appcatalog "github.com/sproutworks/nursery/internal/app/catalog"
	apporder "github.com/sproutworks/nursery/internal/app/order"
	domcatalog "github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/domain/identity"
	domorder "github.com/sproutworks/nursery/internal/domain/order"
	"github.com/sproutworks/nursery/internal/observability"
	"github.com/sproutworks/nursery/internal/store"
)

const componentHTTPHandler = "http_server"

type Handler struct {
	orders  *apporder.Service
	catalog *appcatalog.Service

	log      observability.Logger
	requests observability.Counter
	duration observability.Histogram
}

func NewHandler(orders *apporder.Service, catalog *appcatalog.Service, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		orders:   orders,
		catalog:  catalog,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		requests: tel.Metrics().Counter(observability.MHTTPRequests),
		duration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.handle(mux, "POST /orders", h.handlePlaceOrder)
	h.handle(mux, "GET /orders", h.handleListOrders)
	h.handle(mux, "GET /orders/my", h.handleMyOrders)
	h.handle(mux, "GET /orders/{id}", h.handleGetOrder)
	h.handle(mux, "PUT /orders/{id}/status", h.handleUpdateStatus)
	h.handle(mux, "DELETE /orders/{id}", h.handleDeleteOrder)

	h.handle(mux, "POST /products", h.handleCreateProduct)
	h.handle(mux, "GET /products", h.handleListProducts)
	h.handle(mux, "GET /products/{id}", h.handleGetProduct)
	h.handle(mux, "PUT /products/{id}", h.handleUpdateProduct)
	h.handle(mux, "DELETE /products/{id}", h.handleDeleteProduct)
	h.handle(mux, "POST /products/{id}/stock", h.handleCorrectStock)

	h.handle(mux, "POST /suppliers", h.handleCreateSupplier)
	h.handle(mux, "GET /suppliers", h.handleListSuppliers)
	h.handle(mux, "GET /suppliers/{id}", h.handleGetSupplier)
	h.handle(mux, "PUT /suppliers/{id}", h.handleUpdateSupplier)
	h.handle(mux, "DELETE /suppliers/{id}", h.handleDeleteSupplier)

	mux.HandleFunc("GET /health", h.handleHealth)

	return mux
}

// handle wires a route with the middleware chain:
// Trace → Identity → Request logger → Metrics → Access log → Handler.
func (h *Handler) handle(mux *http.ServeMux, route string, handler http.HandlerFunc) {
	wrapped := h.withTrace(route,
		h.withIdentity(
			h.withRequestLogger(
				h.withHTTPMetrics(route,
					h.withAccessLog(route, handler),
				),
			),
		),
	)
	mux.Handle(route, wrapped)
}

type placeOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	CustomerID string           `json:"customer_id"`
	Items      []placeOrderItem `json:"items"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]apporder.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, apporder.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	view, err := h.orders.PlaceOrder(r.Context(), actor, apporder.PlaceOrderInput{
		CustomerID: req.CustomerID,
		Items:      items,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "order placed",
		"order":   view,
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	views, err := h.orders.GetOrders(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "orders fetched",
		"orders":  views,
	})
}

func (h *Handler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	views, err := h.orders.GetMyOrders(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "orders fetched",
		"orders":  views,
	})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	view, err := h.orders.GetOrderByID(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "order fetched",
		"order":   view,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.orders.UpdateStatus(r.Context(), actor, r.PathValue("id"), req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "order status updated",
		"order":   view,
	})
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	if err := h.orders.DeleteOrder(r.Context(), actor, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "order deleted")
}

type productRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Batch          string `json:"batch"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SupplierID     string `json:"supplier_id"`
}

type productResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Batch          string `json:"batch"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Status         string `json:"status"`
	SupplierID     string `json:"supplier_id,omitempty"`
}

func toProductResponse(p *domcatalog.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Type:           string(p.Type),
		Batch:          p.Batch,
		Quantity:       p.Quantity,
		UnitPriceCents: p.UnitPriceCents,
		Status:         p.DisplayStatus(),
		SupplierID:     p.SupplierID,
	}
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), actor, appcatalog.ProductInput{
		Name:           req.Name,
		Type:           req.Type,
		Batch:          req.Batch,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
		SupplierID:     req.SupplierID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "product created",
		"product": toProductResponse(p),
	})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.ListProducts(r.Context())
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "products fetched",
		"products": out,
	})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "product fetched",
		"product": toProductResponse(p),
	})
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), actor, r.PathValue("id"), appcatalog.ProductInput{
		Name:           req.Name,
		Type:           req.Type,
		Batch:          req.Batch,
		UnitPriceCents: req.UnitPriceCents,
		SupplierID:     req.SupplierID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "product updated",
		"product": toProductResponse(p),
	})
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	if err := h.catalog.DeleteProduct(r.Context(), actor, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "product deleted")
}

type correctStockRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) handleCorrectStock(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req correctStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.catalog.CorrectStock(r.Context(), actor, r.PathValue("id"), req.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "stock corrected",
		"product": toProductResponse(p),
	})
}

type supplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type supplierResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

func toSupplierResponse(s *domcatalog.Supplier) supplierResponse {
	return supplierResponse{ID: s.ID, Name: s.Name, Contact: s.Contact}
}

func (h *Handler) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req supplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sup, err := h.catalog.CreateSupplier(r.Context(), actor, appcatalog.SupplierInput{Name: req.Name, Contact: req.Contact})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "supplier created",
		"supplier": toSupplierResponse(sup),
	})
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers := h.catalog.ListSuppliers(r.Context())
	out := make([]supplierResponse, 0, len(suppliers))
	for _, s := range suppliers {
		out = append(out, toSupplierResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "suppliers fetched",
		"suppliers": out,
	})
}

func (h *Handler) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := h.catalog.GetSupplier(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "supplier fetched",
		"supplier": toSupplierResponse(sup),
	})
}

func (h *Handler) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req supplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sup, err := h.catalog.UpdateSupplier(r.Context(), actor, r.PathValue("id"), appcatalog.SupplierInput{Name: req.Name, Contact: req.Contact})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "supplier updated",
		"supplier": toSupplierResponse(sup),
	})
}

func (h *Handler) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	if err := h.catalog.DeleteSupplier(r.Context(), actor, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "supplier deleted")
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
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

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, domcatalog.ErrSupplierNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domorder.ErrEmptyCart),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrProductRequired),
		errors.Is(err, domorder.ErrCustomerRequired),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, domorder.ErrTerminalStatus),
		errors.Is(err, domcatalog.ErrInvalidQuantity),
		errors.Is(err, domcatalog.ErrInsufficientStock),
		errors.Is(err, domcatalog.ErrInvalidPrice),
		errors.Is(err, domcatalog.ErrInvalidType),
		errors.Is(err, domcatalog.ErrNameRequired),
		errors.Is(err, domcatalog.ErrNegativeStock):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrLockWait):
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}

type actorKey struct{}

func contextWithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFromContext(ctx context.Context) (identity.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(identity.Actor)
	return actor, ok
}
