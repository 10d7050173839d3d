package routers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"massa-api/handlers"
)

// RegisterRoutes sets up the public API routes. Ingest routes feed local
// consensus state and are only mounted when ingest is set.
func RegisterRoutes(r *mux.Router, h *handlers.Handler, registry *prometheus.Registry, ingest bool) {

	// JSON-RPC 2.0 endpoint, single calls and batches
	r.HandleFunc("/", h.JSONRPC).Methods(http.MethodPost)

	r.HandleFunc("/heartbeat", h.Heartbeat).Methods(http.MethodGet)

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if !ingest {
		return
	}

	// Admits a block into the graph
	r.HandleFunc("/graph/blocks", h.AddBlock).Methods(http.MethodPost)

	// Marks a block and its ancestors final
	r.HandleFunc("/graph/blocks/{id}/final", h.FinalizeBlock).Methods(http.MethodPost)

	// Sets the roll count of an address for a cycle
	r.HandleFunc("/staking/{cycle:[0-9]+}/{address}", h.SetRolls).Methods(http.MethodPut)

	r.HandleFunc("/pool/endorsements", h.AddEndorsement).Methods(http.MethodPost)
}
