package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// MarketService defines what the market handler requires from the service
// layer. Declared locally so the handler package does not depend on the
// concrete service implementation.
type MarketService interface {
	OpenMarket(ctx context.Context, creator common.Address, subject string, duration time.Duration) (domain.Market, error)
	Submit(ctx context.Context, marketID uint64, creator common.Address, text string, stake uint64) (domain.Submission, error)
	PlaceBet(ctx context.Context, submissionID uint64, bettor common.Address, amount uint64) (domain.Bet, error)
	CloseMarket(ctx context.Context, marketID uint64) error
	GetMarket(ctx context.Context, id uint64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) []domain.Market
	GetSubmission(ctx context.Context, id uint64) (domain.Submission, error)
	ListSubmissions(ctx context.Context, marketID uint64) ([]domain.Submission, error)
	ListBets(ctx context.Context, submissionID uint64) ([]domain.Bet, error)
}

// MarketHandler serves the market lifecycle endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type openMarketRequest struct {
	Creator     string `json:"creator"`
	Subject     string `json:"subject"`
	DurationSec int64  `json:"duration_sec"`
}

// OpenMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) OpenMarket(w http.ResponseWriter, r *http.Request) {
	var req openMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Creator) {
		writeError(w, http.StatusBadRequest, "creator must be a hex address")
		return
	}

	m, err := h.markets.OpenMarket(r.Context(), common.HexToAddress(req.Creator), req.Subject, time.Duration(req.DurationSec)*time.Second)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: open market failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	markets := h.markets.ListMarkets(r.Context(), opts)
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CloseMarket freezes entry on a market past its end time.
// POST /api/markets/{id}/close
func (h *MarketHandler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	if err := h.markets.CloseMarket(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "closed",
		"market_id": id,
	})
}

type submitRequest struct {
	Creator string `json:"creator"`
	Text    string `json:"text"`
	Stake   uint64 `json:"stake"`
}

// Submit records a staked prediction on a market.
// POST /api/markets/{id}/submissions
func (h *MarketHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Creator) {
		writeError(w, http.StatusBadRequest, "creator must be a hex address")
		return
	}

	sub, err := h.markets.Submit(r.Context(), id, common.HexToAddress(req.Creator), req.Text, req.Stake)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubmissions returns a market's submissions in creation order.
// GET /api/markets/{id}/submissions
func (h *MarketHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	subs, err := h.markets.ListSubmissions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if subs == nil {
		subs = []domain.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// GetSubmission returns a single submission by its ID.
// GET /api/submissions/{id}
func (h *MarketHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	sub, err := h.markets.GetSubmission(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type betRequest struct {
	Bettor string `json:"bettor"`
	Amount uint64 `json:"amount"`
}

// PlaceBet backs a submission with a bet.
// POST /api/submissions/{id}/bets
func (h *MarketHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	var req betRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Bettor) {
		writeError(w, http.StatusBadRequest, "bettor must be a hex address")
		return
	}

	bet, err := h.markets.PlaceBet(r.Context(), id, common.HexToAddress(req.Bettor), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// ListBets returns a submission's bets in placement order.
// GET /api/submissions/{id}/bets
func (h *MarketHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	bets, err := h.markets.ListBets(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}
