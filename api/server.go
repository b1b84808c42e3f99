// Package api exposes the agent and the shop CRUD surface over a JSON HTTP
// API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brizzle/shopagent"
	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/logging"
	"github.com/brizzle/shopagent/shop"
)

// Server routes HTTP requests to the assistant and the shop collaborators.
type Server struct {
	assistant *shopagent.Assistant
	catalog   shop.Catalog
	orders    shop.Orders
	logger    logging.Logger
}

// Options configure the server.
type Options struct {
	Logger logging.Logger
}

// NewServer constructs a Server.
func NewServer(assistant *shopagent.Assistant, catalog shop.Catalog, orders shop.Orders, optFns ...func(o *Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{assistant: assistant, catalog: catalog, orders: orders, logger: opts.Logger}
}

// Handler returns the fully routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /history/{session_id}", s.handleHistory)
	mux.HandleFunc("GET /actions/{session_id}", s.handleActions)
	mux.HandleFunc("GET /products", s.handleListProducts)
	mux.HandleFunc("POST /products", s.handleCreateProduct)
	mux.HandleFunc("GET /orders", s.handleListOrders)
	mux.HandleFunc("PATCH /orders/{id}/status", s.handleUpdateOrderStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response      string                    `json:"response"`
	FunctionCalls []core.FunctionCallRecord `json:"function_calls"`
	SessionID     string                    `json:"session_id"`
	Provider      string                    `json:"provider"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.assistant.Sessions.NewSessionID()
	}

	result, err := s.assistant.Chat(r.Context(), sessionID, req.Message)
	if err != nil {
		s.logger.Error("api.chat.error", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "the assistant could not complete your request")
		return
	}

	calls := result.FunctionCalls
	if calls == nil {
		calls = []core.FunctionCallRecord{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:      result.Text,
		FunctionCalls: calls,
		SessionID:     result.SessionID,
		Provider:      result.Provider,
	})
}

type historyEntry struct {
	Role      string         `json:"role"`
	Message   string         `json:"message"`
	CreatedAt string         `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	turns, err := s.assistant.Sessions.History(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("api.history.error", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	entries := make([]historyEntry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, historyEntry{
			Role:      string(t.Role),
			Message:   t.Text,
			CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
			Metadata:  t.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	recs, err := s.assistant.Sessions.Actions(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("api.actions.error", "session_id", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "actions unavailable")
		return
	}
	if recs == nil {
		recs = []core.ToolInvocation{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	if products == nil {
		products = []shop.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p shop.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.Name == "" || p.Price <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive price are required")
		return
	}
	created, err := s.catalog.CreateProduct(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create product")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "orders unavailable")
		return
	}
	if orders == nil {
		orders = []shop.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	order, err := s.orders.UpdateStatus(r.Context(), r.PathValue("id"), body.Status)
	if err != nil {
		if errors.Is(err, shop.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not update order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
