package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const requestIDHeader = "X-Request-ID"

// Services bundles the core services exposed by the transports.
type Services struct {
	Cart      *service.CartStore
	Catalog   *service.CatalogFeed
	Directory *service.DirectoryLoader
	Checkout  *service.CheckoutService

	// Token is the auth token resolved at startup. It is never served.
	Token            string
	PlaceholderToken string
}

type HTTPHandler struct {
	svc Services
	log *zap.Logger
}

// TokenStatus reports the startup token without revealing it.
type TokenStatus struct {
	Present     bool `json:"present"`
	Placeholder bool `json:"placeholder"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AddItemRequest struct {
	ProductID int64 `json:"product_id"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	domain.CartState
	TotalPrice decimal.Decimal `json:"total_price"`
}

type CatalogResponse struct {
	Page     int              `json:"page"`
	Total    int              `json:"total"`
	Products []domain.Product `json:"products"`
}

type DirectoryResponse struct {
	service.LoadResult
	Status service.DirectoryStatus `json:"status"`
	Online bool                    `json:"online"`
}

func NewHTTPHandler(svc Services, log *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, log: log}
}

// Routes registers every endpoint on a new router.
func (h *HTTPHandler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	r.HandleFunc("/api/catalog", h.GetCatalog).Methods(http.MethodGet)
	r.HandleFunc("/api/catalog/advance", h.AdvanceCatalog).Methods(http.MethodPost)

	r.HandleFunc("/api/cart", h.GetCart).Methods(http.MethodGet)
	r.HandleFunc("/api/cart", h.ClearCart).Methods(http.MethodDelete)
	r.HandleFunc("/api/cart/items", h.AddToCart).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/items/{id:[0-9]+}", h.UpdateQuantity).Methods(http.MethodPut)
	r.HandleFunc("/api/cart/items/{id:[0-9]+}", h.RemoveFromCart).Methods(http.MethodDelete)
	r.HandleFunc("/api/cart/summary", h.GetSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/cart/checkout", h.Checkout).Methods(http.MethodPost)

	r.HandleFunc("/api/orders/{id}", h.GetReceipt).Methods(http.MethodGet)

	r.HandleFunc("/api/users", h.ListUsers).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{id:[0-9]+}", h.GetUser).Methods(http.MethodGet)

	r.HandleFunc("/api/token", h.GetToken).Methods(http.MethodGet)
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{
		Page:     h.svc.Catalog.Page(),
		Total:    h.svc.Catalog.Total(),
		Products: h.svc.Catalog.Products(),
	})
}

func (h *HTTPHandler) AdvanceCatalog(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Catalog.Advance(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartResponse(h.svc.Cart.State()))
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	p, err := h.svc.Catalog.Product(req.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(h.svc.Cart.AddToCart(p)))
}

func (h *HTTPHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	state, err := h.svc.Cart.UpdateQuantity(id, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(state))
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(h.svc.Cart.RemoveFromCart(id)))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartResponse(h.svc.Cart.ClearCart()))
}

func (h *HTTPHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Checkout.Summary())
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.svc.Checkout.Confirm(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (h *HTTPHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.svc.Checkout.Receipt(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	res := h.svc.Directory.Load(r.Context())
	writeJSON(w, http.StatusOK, DirectoryResponse{
		LoadResult: res,
		Status:     h.svc.Directory.Status(),
		Online:     res.Online(),
	})
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	u, err := h.svc.Directory.Lookup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *HTTPHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TokenStatus{
		Present:     h.svc.Token != "",
		Placeholder: h.svc.Token != "" && h.svc.Token == h.svc.PlaceholderToken,
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, message := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

func cartResponse(s domain.CartState) CartResponse {
	return CartResponse{CartState: s, TotalPrice: s.TotalPrice()}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// requestID tags each response with the caller's X-Request-ID, generating
// one when absent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
