package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// TreasuryService defines what the treasury handler requires from the
// service layer.
type TreasuryService interface {
	Balance(ctx context.Context, account common.Address) uint64
	Withdraw(ctx context.Context, account common.Address) (uint64, error)
	Shares(ctx context.Context) []domain.PoolShare
	ProjectedEarnings(ctx context.Context, volume, holderTokens uint64) uint64
	ListTransfers(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.TransferRecord, error)
}

// TreasuryHandler serves payout and fee share endpoints.
type TreasuryHandler struct {
	treasury TreasuryService
	logger   *slog.Logger
}

// NewTreasuryHandler creates a TreasuryHandler.
func NewTreasuryHandler(treasury TreasuryService, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{treasury: treasury, logger: logger}
}

// GetBalance returns the withdrawable balance of an account.
// GET /api/accounts/{address}/balance
func (h *TreasuryHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account.Hex(),
		"balance": h.treasury.Balance(r.Context(), account),
	})
}

// Withdraw pays out the full balance of an account.
// POST /api/accounts/{address}/withdraw
func (h *TreasuryHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	account, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	amount, err := h.treasury.Withdraw(r.Context(), account)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: withdraw failed",
			slog.String("account", account.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account.Hex(),
		"amount":  amount,
	})
}

// ListTransfers returns an account's completed withdrawal transfers.
// GET /api/accounts/{address}/transfers
func (h *TreasuryHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	account, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}

	recs, err := h.treasury.ListTransfers(r.Context(), account, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transfers failed",
			slog.String("account", account.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": recs})
}

// GetShares returns the configured fee share table.
// GET /api/treasury/shares
func (h *TreasuryHandler) GetShares(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"shares": h.treasury.Shares(r.Context())})
}

// GetProjectedEarnings estimates a holder's token-pool earnings for a
// hypothetical market volume.
// GET /api/treasury/projected?volume=1000000&tokens=60
func (h *TreasuryHandler) GetProjectedEarnings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	volume, err := strconv.ParseUint(q.Get("volume"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "volume query parameter required")
		return
	}
	tokens, err := strconv.ParseUint(q.Get("tokens"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tokens query parameter required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"volume":    volume,
		"tokens":    tokens,
		"projected": h.treasury.ProjectedEarnings(r.Context(), volume, tokens),
	})
}
