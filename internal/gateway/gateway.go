// Package gateway is the HTTP/WebSocket surface for human order entry
// and streaming market data, ported from the teacher's server package
// (server/server.go, server/hub.go). Where the teacher called its
// in-process OrderBook directly, this gateway drives a
// humantrader.Trader agent instead, since the book now lives behind
// the kernel's message-passing boundary; this package is pure C7
// plumbing and never imports internal/book or internal/kernel.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/realmfikri/marketsim/internal/humantrader"
	"github.com/realmfikri/marketsim/internal/types"
)

// Server is the HTTP handler wrapping one human-trader agent.
type Server struct {
	trader     *humantrader.Trader
	upgrader   websocket.Upgrader
	authToken  string
	corsOrigin string
	log        *zap.Logger
}

// Config configures a Server.
type Config struct {
	AuthToken  string
	CORSOrigin string
	Log        *zap.Logger
}

// New builds a Server bound to trader.
func New(trader *humantrader.Trader, cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return &Server{
		trader:     trader,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		authToken:  cfg.AuthToken,
		corsOrigin: corsOrigin,
		log:        log,
	}
}

// Routes returns the handler tree: REST order entry/snapshot plus WS
// trade/book streams.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/orders", s.withCORS(s.withAuth(http.HandlerFunc(s.handleOrder))))
	mux.Handle("/orders/cancel", s.withCORS(s.withAuth(http.HandlerFunc(s.handleCancel))))
	mux.Handle("/orders/modify", s.withCORS(s.withAuth(http.HandlerFunc(s.handleModify))))
	mux.Handle("/book", s.withCORS(s.withAuth(http.HandlerFunc(s.handleSnapshot))))
	mux.Handle("/orders/open", s.withCORS(s.withAuth(http.HandlerFunc(s.handleOpenOrders))))
	mux.Handle("/balances", s.withCORS(s.withAuth(http.HandlerFunc(s.handleBalances))))
	mux.Handle("/ws/trades", s.withCORS(s.withAuth(http.HandlerFunc(s.handleTradeStream))))
	mux.Handle("/ws/book", s.withCORS(s.withAuth(http.HandlerFunc(s.handleBookStream))))
	return mux
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type orderRequest struct {
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

type orderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type cancelRequest struct {
	OrderID string `json:"orderId"`
}

type modifyRequest struct {
	OrderID  string `json:"orderId"`
	Price    string `json:"price,omitempty"`
	Quantity *int64 `json:"quantity,omitempty"`
}

type priceLevelDTO struct {
	Price string `json:"price"`
	Qty   int64  `json:"qty"`
}

type snapshotResponse struct {
	Symbol string          `json:"symbol"`
	Bids   []priceLevelDTO `json:"bids"`
	Asks   []priceLevelDTO `json:"asks"`
	Last   *string         `json:"last,omitempty"`
}

type openOrderDTO struct {
	OrderID  string `json:"orderId"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

type balancesResponse struct {
	Quantity int64  `json:"quantity"`
	Cash     string `json:"cash"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("quantity must be positive"))
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch strings.ToLower(req.Type) {
	case "market", "mkt":
		if err := s.trader.PlaceMarket(ctx, side, req.Quantity); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusAccepted, orderResponse{Status: "accepted"})
	case "limit", "lmt", "":
		price, err := parsePriceCents(req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		accepted, err := s.trader.PlaceLimit(ctx, side, price, req.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusAccepted, orderResponse{OrderID: accepted.OrderID, Status: "accepted"})
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown order type %s", req.Type))
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, errors.New("orderId is required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.trader.Cancel(ctx, req.OrderID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{OrderID: req.OrderID, Status: "cancelled"})
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, errors.New("orderId is required"))
		return
	}
	var price *int64
	if req.Price != "" {
		p, err := parsePriceCents(req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		price = &p
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	accepted, err := s.trader.Modify(ctx, req.OrderID, price, req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{OrderID: accepted.OrderID, Status: "modified"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 {
			depth = parsed
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	snap, err := s.trader.Spread(ctx, depth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (s *Server) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	open := s.trader.ListOpen()
	resp := make([]openOrderDTO, len(open))
	for i, o := range open {
		resp[i] = openOrderDTO{
			OrderID:  o.ID,
			Symbol:   o.Symbol,
			Side:     o.Side.String(),
			Price:    centsToDecimal(o.Price).String(),
			Quantity: o.Quantity,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	bal := s.trader.GetBalances()
	writeJSON(w, http.StatusOK, balancesResponse{
		Quantity: bal.Qty,
		Cash:     centsToDecimal(bal.Cash).String(),
	})
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.trader.Fills().Subscribe(32)
	defer s.trader.Fills().Unsubscribe(sub)

	for fill := range sub.Chan() {
		msg := map[string]interface{}{
			"type": "fill",
			"data": map[string]interface{}{
				"orderId":  fill.OrderID,
				"symbol":   fill.Symbol,
				"price":    centsToDecimal(fill.Price).String(),
				"quantity": fill.Qty,
				"role":     fill.Role.String(),
				"side":     fill.SideForRecipient.String(),
			},
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.trader.BookUpdates().Subscribe(32)
	defer s.trader.BookUpdates().Unsubscribe(sub)

	for body := range sub.Chan() {
		snap := types.BookSnapshot{Symbol: body.Symbol, Bids: body.Bids, Asks: body.Asks, Last: body.Last}
		msg := map[string]interface{}{"type": "book", "data": toSnapshotResponse(snap)}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func toSnapshotResponse(snap types.BookSnapshot) snapshotResponse {
	resp := snapshotResponse{
		Symbol: snap.Symbol,
		Bids:   make([]priceLevelDTO, len(snap.Bids)),
		Asks:   make([]priceLevelDTO, len(snap.Asks)),
	}
	for i, lvl := range snap.Bids {
		resp.Bids[i] = priceLevelDTO{Price: centsToDecimal(lvl.Price).String(), Qty: lvl.Qty}
	}
	for i, lvl := range snap.Asks {
		resp.Asks[i] = priceLevelDTO{Price: centsToDecimal(lvl.Price).String(), Qty: lvl.Qty}
	}
	if snap.Last != nil {
		s := centsToDecimal(*snap.Last).String()
		resp.Last = &s
	}
	return resp
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func parsePriceCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func parseSide(value string) (types.Side, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return types.Buy, nil
	case "sell", "ask", "s":
		return types.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %s", value)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
