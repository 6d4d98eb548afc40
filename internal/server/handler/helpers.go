// Package handler serves the HTTP API over the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the engine's sentinel errors onto HTTP status codes
// and sends the matched sentinel's message. Unmatched errors become an
// opaque 500 so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	for sentinel, status := range errStatus {
		if errors.Is(err, sentinel) {
			writeError(w, status, sentinel.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// errStatus maps each sentinel error to the status code it surfaces as.
var errStatus = map[error]int{
	domain.ErrInvalidDuration:      http.StatusBadRequest,
	domain.ErrTextTooLong:          http.StatusBadRequest,
	domain.ErrStakeBelowMinimum:    http.StatusBadRequest,
	domain.ErrBatchTooLarge:        http.StatusBadRequest,
	domain.ErrEmptyBatch:           http.StatusBadRequest,
	domain.ErrZeroAddress:          http.StatusBadRequest,
	domain.ErrMarketClosedForEntry: http.StatusConflict,
	domain.ErrMarketStillOpen:      http.StatusConflict,
	domain.ErrAlreadyResolved:      http.StatusConflict,
	domain.ErrAlreadyFinalized:     http.StatusConflict,
	domain.ErrSupplyExceeded:       http.StatusConflict,
	domain.ErrBalanceOverflow:      http.StatusConflict,
	domain.ErrSumMismatch:          http.StatusConflict,
	domain.ErrNothingToWithdraw:    http.StatusConflict,
	domain.ErrNotAuthorized:        http.StatusForbidden,
	domain.ErrUnknownMarket:        http.StatusNotFound,
	domain.ErrUnknownSubmission:    http.StatusNotFound,
	domain.ErrNotFound:             http.StatusNotFound,
	domain.ErrTransferFailed:       http.StatusBadGateway,
}

// parseListOpts extracts pagination and time-window parameters from the
// query string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &t
	}
	return opts
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(name), 10, 64)
}

// pathAddress parses a hex address path parameter.
func pathAddress(r *http.Request, name string) (common.Address, bool) {
	v := r.PathValue(name)
	if !common.IsHexAddress(v) {
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}
