package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// SettlementService defines what the settlement handler requires from the
// service layer.
type SettlementService interface {
	Resolve(ctx context.Context, marketID uint64, observedText string, evidence common.Hash, sig []byte) (domain.Settlement, error)
	Cancel(ctx context.Context, marketID uint64) (domain.Settlement, error)
	GetSettlement(ctx context.Context, marketID uint64) (domain.Settlement, error)
	ListSettlements(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error)
	ListDistributions(ctx context.Context, opts domain.ListOpts) ([]domain.FeeDistribution, error)
}

// SettlementHandler serves resolution and settlement archive endpoints.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{settlements: settlements, logger: logger}
}

type resolveRequest struct {
	ObservedText string `json:"observed_text"`
	Evidence     string `json:"evidence"`
	Signature    string `json:"signature"`
}

// Resolve settles a market from an oracle-signed observation.
// POST /api/markets/{id}/resolve
func (h *SettlementHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature must be hex")
		return
	}
	evidence := common.HexToHash(req.Evidence)

	settlement, err := h.settlements.Resolve(r.Context(), id, req.ObservedText, evidence, sig)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: resolve failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// Cancel aborts a market and refunds all stakes and bets.
// POST /api/markets/{id}/cancel
func (h *SettlementHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	settlement, err := h.settlements.Cancel(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: cancel failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// GetSettlement returns the archived settlement of a market.
// GET /api/settlements/{id}
func (h *SettlementHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	settlement, err := h.settlements.GetSettlement(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// ListSettlements returns archived settlements.
// GET /api/settlements?limit=50&offset=0&since=...&until=...
func (h *SettlementHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	rows, err := h.settlements.ListSettlements(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list settlements failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.Settlement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": rows})
}

// ListDistributions returns archived fee distributions.
// GET /api/distributions
func (h *SettlementHandler) ListDistributions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.settlements.ListDistributions(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list distributions failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.FeeDistribution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"distributions": rows})
}
