package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// RegistryService defines what the token handler requires from the service
// layer.
type RegistryService interface {
	Mint(ctx context.Context, to common.Address, count uint64) error
	Finalize(ctx context.Context) error
	Supply(ctx context.Context) (minted, max uint64, finalized bool)
	BalanceOf(ctx context.Context, addr common.Address) uint64
	OwnerOf(ctx context.Context, tokenID uint64) common.Address
	Holders(ctx context.Context) []domain.TokenHolder
}

// TokenHandler serves the revenue-share token registry endpoints.
type TokenHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(registry RegistryService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{registry: registry, logger: logger}
}

type mintRequest struct {
	To    string `json:"to"`
	Count uint64 `json:"count"`
}

// Mint issues tokens to an address.
// POST /api/token/mint
func (h *TokenHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.To) {
		writeError(w, http.StatusBadRequest, "to must be a hex address")
		return
	}

	to := common.HexToAddress(req.To)
	if err := h.registry.Mint(r.Context(), to, req.Count); err != nil {
		h.logger.WarnContext(r.Context(), "handler: mint failed",
			slog.String("to", to.Hex()),
			slog.Uint64("count", req.Count),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	minted, max, finalized := h.registry.Supply(r.Context())
	writeJSON(w, http.StatusCreated, map[string]any{
		"to":         to.Hex(),
		"count":      req.Count,
		"minted":     minted,
		"max_supply": max,
		"finalized":  finalized,
	})
}

// Finalize permanently closes the mint.
// POST /api/token/finalize
func (h *TokenHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Finalize(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	minted, max, _ := h.registry.Supply(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "finalized",
		"minted":     minted,
		"max_supply": max,
	})
}

// GetSupply reports minted count, fixed maximum, and finalization state.
// GET /api/token/supply
func (h *TokenHandler) GetSupply(w http.ResponseWriter, r *http.Request) {
	minted, max, finalized := h.registry.Supply(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"minted":     minted,
		"max_supply": max,
		"finalized":  finalized,
	})
}

// ListHolders returns every holder with a nonzero balance.
// GET /api/token/holders
func (h *TokenHandler) ListHolders(w http.ResponseWriter, r *http.Request) {
	holders := h.registry.Holders(r.Context())
	if holders == nil {
		holders = []domain.TokenHolder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"holders": holders})
}

// GetOwner returns the holder of a token ID.
// GET /api/token/{id}/owner
func (h *TokenHandler) GetOwner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	owner := h.registry.OwnerOf(r.Context(), id)
	if owner == (common.Address{}) {
		writeError(w, http.StatusNotFound, "token not minted")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id": id,
		"owner":    owner.Hex(),
	})
}

// GetTokenBalance returns the token count held by an address.
// GET /api/accounts/{address}/tokens
func (h *TokenHandler) GetTokenBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": addr.Hex(),
		"tokens":  h.registry.BalanceOf(r.Context(), addr),
	})
}
