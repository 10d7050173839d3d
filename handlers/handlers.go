package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"massa-api/graph"
	"massa-api/logger"
	"massa-api/mempool"
	"massa-api/models"
	"massa-api/rpc"
	"massa-api/staking"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize bounds request bodies
const maxBodySize = 8 << 20

// Handler contains the HTTP handlers of the node API. The ingest handlers feed
// the local consensus, pool and staking state on development networks.
type Handler struct {
	RPC     *rpc.Dispatcher
	Store   *graph.Store
	Pool    *mempool.Pool
	Stakers *staking.Registry
}

// NewHandler creates and returns a new Handler instance
func NewHandler(d *rpc.Dispatcher, store *graph.Store, pool *mempool.Pool, stakers *staking.Registry) *Handler {
	return &Handler{RPC: d, Store: store, Pool: pool, Stakers: stakers}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// JSONRPC handles POST requests carrying a JSON-RPC call or batch
func (h *Handler) JSONRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		logger.Logger.Error("Failed to read RPC body", zap.Error(err))
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	out := h.RPC.Handle(r.Context(), body)
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		logger.Logger.Warn("Failed to write RPC response", zap.Error(err))
	}
}

// Heartbeat reports that the server is up
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddBlock handles POST requests admitting a block into the graph
func (h *Handler) AddBlock(w http.ResponseWriter, r *http.Request) {
	var block models.Block
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&block); err != nil {
		logger.Logger.Error("Failed to decode block", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	id, err := h.Store.AddBlock(&block)
	switch {
	case errors.Is(err, graph.ErrBlockExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, graph.ErrInvalidBlock), errors.Is(err, graph.ErrUnknownBlock):
		logger.Logger.Warn("Rejected block", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logger.Logger.Error("Failed to add block", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to add block")
		return
	}

	logger.Logger.Info("Added new block",
		zap.String("block_id", id.String()),
		zap.Stringer("slot", block.Header.Content.Slot))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Block added successfully",
		"id":      id,
	})
}

// FinalizeBlock handles POST requests marking a block and its ancestors final.
// Operations of newly final blocks leave the pool.
func (h *Handler) FinalizeBlock(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBlockId(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid block id")
		return
	}

	done, err := h.Store.MarkFinal(id)
	switch {
	case errors.Is(err, graph.ErrUnknownBlock):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		logger.Logger.Error("Failed to finalize block", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to finalize block")
		return
	}
	removed := h.Pool.Remove(done.Operations...)

	logger.Logger.Info("Finalized blocks",
		zap.String("block_id", id.String()),
		zap.Int("newly_final", len(done.Blocks)),
		zap.Int("pruned_operations", removed))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Block finalized successfully",
		"finalized": len(done.Blocks),
	})
}

// SetRolls handles PUT requests setting the roll count of an address for a cycle
func (h *Handler) SetRolls(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cycle, err := strconv.ParseUint(vars["cycle"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cycle")
		return
	}
	var body struct {
		Rolls uint64 `json:"rolls"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	addr := models.Address(vars["address"])
	if err := addr.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Stakers.SetRolls(cycle, addr, body.Rolls); err != nil {
		logger.Logger.Error("Failed to set rolls", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to set rolls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycle":   cycle,
		"address": addr,
		"rolls":   body.Rolls,
	})
}

// AddEndorsement handles POST requests pooling an endorsement
func (h *Handler) AddEndorsement(w http.ResponseWriter, r *http.Request) {
	var e models.Endorsement
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&e); err != nil {
		logger.Logger.Error("Failed to decode endorsement", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.Pool.AddEndorsement(e)
	switch {
	case errors.Is(err, mempool.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		logger.Logger.Error("Failed to pool endorsement", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to pool endorsement")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Endorsement pooled successfully",
		"id":      id,
	})
}
